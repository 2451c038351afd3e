package imgdec

// Format identifies an image container.
type Format int

const (
	Unknown Format = iota
	JPEG
	PNG
	WebP
	GIF
	BMP
)

var formatNames = [...]string{
	Unknown: "unknown",
	JPEG:    "jpeg",
	PNG:     "png",
	WebP:    "webp",
	GIF:     "gif",
	BMP:     "bmp",
}

func (f Format) String() string {
	if f >= 0 && int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "unknown"
}

// sniffLen is the longest prefix Sniff ever looks at.
const sniffLen = 32

const pngHeader = "\x89PNG\r\n\x1a\n"

// magics is ordered by specificity. '?' matches any byte.
var magics = [...]struct {
	format Format
	magic  string
}{
	{JPEG, "\xff\xd8\xff"},
	{PNG, pngHeader},
	{WebP, "RIFF????WEBP"},
	{GIF, "GIF8"},
	{BMP, "BM"},
}

// minMagicLen is the length of the shortest magic number.
const minMagicLen = 2

// match reports whether magic matches b. Wildcards only match present bytes.
func match(magic string, b []byte) bool {
	if len(magic) > len(b) {
		return false
	}
	for i, c := range b[:len(magic)] {
		if magic[i] != c && magic[i] != '?' {
			return false
		}
	}
	return true
}

// Sniff identifies the container of b from its first bytes. It never
// allocates and returns Unknown when nothing matches.
func Sniff(b []byte) Format {
	if len(b) > sniffLen {
		b = b[:sniffLen]
	}
	for _, m := range magics {
		if match(m.magic, b) {
			return m.format
		}
	}
	return Unknown
}

// isMagicPrefix reports whether b is a strict prefix of some magic number,
// i.e. a recognisable header cut short.
func isMagicPrefix(b []byte) bool {
	if len(b) < minMagicLen {
		return false
	}
	for _, m := range magics {
		if len(b) < len(m.magic) && match(m.magic[:len(b)], b) {
			return true
		}
	}
	return false
}
