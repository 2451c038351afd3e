package imgdec

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

// gradient returns a w x h opaque test pattern.
func gradient(w, h int) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8((x + y) * 4),
				A: 0xff,
			})
		}
	}
	return m
}

// holes returns gradient(w, h) with every third pixel fully transparent.
func holes(w, h int) *image.NRGBA {
	m := gradient(w, h)
	for i := 0; i < w*h; i += 3 {
		m.Pix[4*i+3] = 0
	}
	return m
}

func encodePNG(t testing.TB, m image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, m))
	return buf.Bytes()
}

func encodeJPEG(t testing.TB, m image.Image, quality int) []byte {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, m, &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

func encodeGIF(t testing.TB, m *image.Paletted) []byte {
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, m, nil))
	return buf.Bytes()
}

func encodeBMP(t testing.TB, m image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, m))
	return buf.Bytes()
}

func encodeWebP(t testing.TB, m image.Image, opts *webp.Options) []byte {
	var buf bytes.Buffer
	require.NoError(t, webp.Encode(&buf, m, opts))
	return buf.Bytes()
}

// rgba returns the straight RGBA8 bytes of m.
func rgba(m image.Image) []byte {
	b := m.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA)
			out = append(out, c.R, c.G, c.B, c.A)
		}
	}
	return out
}

// maxDiff returns the largest per-channel difference between a and b.
func maxDiff(t testing.TB, a, b []byte) int {
	require.Equal(t, len(a), len(b))
	d := 0
	for i := range a {
		d = max(d, absDiff(a[i], b[i]))
	}
	return d
}

func meanDiff(t testing.TB, a, b []byte) float64 {
	require.Equal(t, len(a), len(b))
	sum := 0
	for i := range a {
		sum += absDiff(a[i], b[i])
	}
	return float64(sum) / float64(len(a))
}

func absDiff(a, b byte) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// requireKind asserts err is a DecodeError of one of kinds.
func requireKind(t testing.TB, err error, kinds ...Kind) {
	t.Helper()
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Contains(t, kinds, de.Kind, "error: %v", err)
}

// checkTruncations decodes every proper prefix of data of at least two
// bytes and expects each to fail cleanly.
func checkTruncations(t *testing.T, data []byte) {
	t.Helper()
	step := 1
	if len(data) > 4096 {
		step = len(data) / 2048
	}
	for n := 2; n < len(data); n += step {
		img, err := Decode(data[:n])
		if err == nil {
			t.Fatalf("prefix of %d/%d bytes decoded to %dx%d", n, len(data), img.Width, img.Height)
		}
		require.Nil(t, img)
		requireKind(t, err, TruncatedData, CorruptData)
	}
}

// pngChunkBytes frames body as a PNG chunk with a valid CRC.
func pngChunkBytes(typ string, body []byte) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.BigEndian, uint32(len(body)))
	b.WriteString(typ)
	b.Write(body)
	binary.Write(&b, binary.BigEndian, crc32.ChecksumIEEE(append([]byte(typ), body...)))
	return b.Bytes()
}

func ihdr(w, h uint32, depth, ctype, interlace byte) []byte {
	b := make([]byte, 13)
	binary.BigEndian.PutUint32(b[0:], w)
	binary.BigEndian.PutUint32(b[4:], h)
	b[8], b[9], b[12] = depth, ctype, interlace
	return b
}

// insertChunk places a chunk right after IHDR.
func insertChunk(png []byte, chunk []byte) []byte {
	at := len(pngHeader) + 8 + 13 + 4
	out := append([]byte(nil), png[:at]...)
	out = append(out, chunk...)
	return append(out, png[at:]...)
}

// riffChunks splits a WebP file, or the payload of a container chunk, into
// its chunks.
func riffChunks(t testing.TB, b []byte) []riffChunk {
	var out []riffChunk
	c := &cursor{b: b}
	for !c.eof() {
		ch, err := nextChunk(c)
		require.NoError(t, err)
		out = append(out, ch)
	}
	return out
}

func riffChunkBytes(id string, data []byte) []byte {
	var b bytes.Buffer
	b.WriteString(id)
	binary.Write(&b, binary.LittleEndian, uint32(len(data)))
	b.Write(data)
	if len(data)%2 == 1 {
		b.WriteByte(0)
	}
	return b.Bytes()
}

func riffFile(chunks ...[]byte) []byte {
	body := bytes.Join(chunks, nil)
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(4+len(body)))
	b.WriteString("WEBP")
	b.Write(body)
	return b.Bytes()
}

func put24(b []byte, v int) {
	b[0], b[1], b[2] = byte(v), byte(v>>8), byte(v>>16)
}
