package imgdec

import (
	"bytes"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

// PNG color types.
const (
	ctGray      = 0
	ctRGB       = 2
	ctPaletted  = 3
	ctGrayAlpha = 4
	ctRGBA      = 6
)

type pngDecoder struct {
	width, height int
	depth         int
	ctype         byte
	interlaced    bool

	palette [][4]byte
	trns    []byte
	idat    [][]byte
	frames  int
}

// channels returns the number of samples per pixel.
func (d *pngDecoder) channels() int {
	switch d.ctype {
	case ctRGB:
		return 3
	case ctGrayAlpha:
		return 2
	case ctRGBA:
		return 4
	}
	return 1
}

// pngChunk reads one length-type-data-crc chunk and verifies its CRC.
func pngChunk(c *cursor) (typ string, body []byte, err error) {
	start := c.off
	n, err := c.u32be()
	if err != nil {
		return "", nil, err
	}
	if n > 0x7fffffff {
		return "", nil, corrupt("chunk length %d out of range", n)
	}
	t, err := c.next(4)
	if err != nil {
		return "", nil, err
	}
	body, err = c.next(int(n))
	if err != nil {
		return "", nil, err
	}
	sum, err := c.u32be()
	if err != nil {
		return "", nil, err
	}
	if crc32.ChecksumIEEE(c.b[start+4:start+8+int(n)]) != sum {
		return "", nil, corrupt("%s chunk checksum mismatch", t)
	}
	return string(t), body, nil
}

func (d *pngDecoder) parseIHDR(body []byte) error {
	if len(body) != 13 {
		return corrupt("IHDR length %d", len(body))
	}
	w, h := be32(body[0:]), be32(body[4:])
	if w == 0 || h == 0 || w > 0x7fffffff || h > 0x7fffffff {
		return corrupt("invalid dimensions %dx%d", w, h)
	}
	d.width, d.height = int(w), int(h)
	d.depth, d.ctype = int(body[8]), body[9]
	ok := false
	switch d.ctype {
	case ctGray:
		ok = d.depth == 1 || d.depth == 2 || d.depth == 4 || d.depth == 8 || d.depth == 16
	case ctPaletted:
		ok = d.depth == 1 || d.depth == 2 || d.depth == 4 || d.depth == 8
	case ctRGB, ctGrayAlpha, ctRGBA:
		ok = d.depth == 8 || d.depth == 16
	}
	if !ok {
		return corrupt("invalid color type %d with bit depth %d", d.ctype, d.depth)
	}
	if body[10] != 0 {
		return corrupt("unknown compression method %d", body[10])
	}
	if body[11] != 0 {
		return corrupt("unknown filter method %d", body[11])
	}
	switch body[12] {
	case 0:
	case 1:
		d.interlaced = true
	default:
		return corrupt("unknown interlace method %d", body[12])
	}
	return nil
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// readChunks walks the chunk stream up to IEND, validating the header
// against lim before anything proportional to the image is allocated.
func (d *pngDecoder) readChunks(data []byte, lim Limits) error {
	c := &cursor{b: data, off: len(pngHeader)}
	seenIHDR, seenIEND := false, false
	for !seenIEND {
		typ, body, err := pngChunk(c)
		if err != nil {
			return err
		}
		if !seenIHDR && typ != "IHDR" {
			return corrupt("first chunk is %s, want IHDR", typ)
		}
		switch typ {
		case "IHDR":
			if seenIHDR {
				return corrupt("duplicate IHDR")
			}
			seenIHDR = true
			if err := d.parseIHDR(body); err != nil {
				return err
			}
			if err := lim.check(d.width, d.height); err != nil {
				return err
			}
		case "PLTE":
			if len(body)%3 != 0 || len(body) == 0 || len(body) > 256*3 {
				return corrupt("PLTE length %d", len(body))
			}
			if len(d.idat) > 0 {
				return corrupt("PLTE after IDAT")
			}
			d.palette = make([][4]byte, len(body)/3)
			for i := range d.palette {
				d.palette[i] = [4]byte{body[3*i], body[3*i+1], body[3*i+2], 0xff}
			}
		case "tRNS":
			if len(d.idat) > 0 {
				return corrupt("tRNS after IDAT")
			}
			d.trns = body
		case "acTL":
			if len(body) != 8 {
				return corrupt("acTL length %d", len(body))
			}
			d.frames = int(be32(body))
		case "IDAT":
			d.idat = append(d.idat, body)
		case "IEND":
			seenIEND = true
		default:
			if typ[0]&0x20 == 0 {
				return unsupported("unknown critical chunk %q", typ)
			}
		}
	}
	if len(d.idat) == 0 {
		return corrupt("no IDAT chunk")
	}
	return nil
}

// native describes the scanline layout after bit depth expansion, with
// the palette and color key that the RGBA conversion needs.
func (d *pngDecoder) native() (*RawImage, error) {
	var layout Layout
	switch {
	case d.ctype == ctPaletted:
		layout = LayoutPaletted
	case d.ctype == ctGray && d.depth == 16:
		layout = LayoutGray16
	case d.ctype == ctGray:
		layout = LayoutGray
	case d.ctype == ctRGB && d.depth == 16:
		layout = LayoutRGB16
	case d.ctype == ctRGB:
		layout = LayoutRGB
	case d.ctype == ctGrayAlpha && d.depth == 16:
		layout = LayoutGrayAlpha16
	case d.ctype == ctGrayAlpha:
		layout = LayoutGrayAlpha
	case d.depth == 16:
		layout = LayoutRGBA16
	default:
		layout = LayoutRGBA
	}
	raw := newRaw(d.width, d.height, layout)

	switch d.ctype {
	case ctPaletted:
		if d.palette == nil {
			return nil, corrupt("paletted image without PLTE")
		}
		if len(d.trns) > len(d.palette) {
			return nil, corrupt("tRNS has %d entries for %d colors", len(d.trns), len(d.palette))
		}
		for i, a := range d.trns {
			d.palette[i][3] = a
		}
		raw.Palette = d.palette
	case ctGray:
		if len(d.trns) == 2 {
			k := be16(d.trns)
			if d.depth < 8 {
				k = (k & (1<<d.depth - 1)) * grayScale[d.depth]
			}
			raw.Key = &[3]uint16{k}
		}
	case ctRGB:
		if len(d.trns) == 6 {
			k := [3]uint16{be16(d.trns), be16(d.trns[2:]), be16(d.trns[4:])}
			raw.Key = &k
		}
	}
	return raw, nil
}

// grayScale maps a low bit depth gray sample to 8 bits.
var grayScale = [9]uint16{1: 0xff, 2: 0x55, 4: 0x11, 8: 1}

// expand returns n pixels of the packed scanline src in the native layout.
// Depths below 8 are unpacked into dst, one byte per pixel.
func (d *pngDecoder) expand(dst, src []byte, n int) []byte {
	if d.depth >= 8 {
		return src[:n*d.channels()*d.depth/8]
	}
	mask := byte(1<<d.depth - 1)
	scale := byte(grayScale[d.depth])
	if d.ctype == ctPaletted {
		scale = 1
	}
	perByte := 8 / d.depth
	for x := 0; x < n; x++ {
		shift := uint(8 - d.depth*(x%perByte+1))
		dst[x] = (src[x/perByte] >> shift & mask) * scale
	}
	return dst[:n]
}

// decodePixels inflates and unfilters the image one scanline at a time,
// converting each into out as soon as it is complete.
func (d *pngDecoder) decodePixels(out, native *RawImage) error {
	readers := make([]io.Reader, len(d.idat))
	for i, b := range d.idat {
		readers[i] = bytes.NewReader(b)
	}
	zr, err := zlib.NewReader(io.MultiReader(readers...))
	if err != nil {
		return errors.Wrap(err, "png: zlib header")
	}
	defer zr.Close()

	bitsPerPixel := d.channels() * d.depth
	filterBpp := (bitsPerPixel + 7) / 8
	rowBytes := func(w int) int { return (w*bitsPerPixel + 7) / 8 }

	n := rowBytes(d.width)
	cur := make([]byte, n+1)
	prev := make([]byte, n+1)
	var line []byte
	if d.depth < 8 {
		line = make([]byte, d.width)
	}

	if !d.interlaced {
		for y := 0; y < d.height; y++ {
			if err := d.readRow(zr, cur, prev, filterBpp); err != nil {
				return err
			}
			px := d.expand(line, cur[1:], d.width)
			if err := native.interleavedRow(out.row(y, 0, d.width), px); err != nil {
				return err
			}
			cur, prev = prev, cur
		}
		return pngTrailer(zr)
	}

	rgba := make([]byte, d.width*4)
	for pass := range adam7 {
		pw, ph := passSize(pass, d.width, d.height)
		if pw == 0 || ph == 0 {
			continue
		}
		p := adam7[pass]
		m := rowBytes(pw) + 1
		for i := range prev[:m] {
			prev[i] = 0
		}
		for r := 0; r < ph; r++ {
			if err := d.readRow(zr, cur[:m], prev[:m], filterBpp); err != nil {
				return err
			}
			px := d.expand(line, cur[1:m], pw)
			if err := native.interleavedRow(rgba[:pw*4], px); err != nil {
				return err
			}
			dst := out.row(p[1]+r*p[3], 0, d.width)
			for i := 0; i < pw; i++ {
				x := p[0] + i*p[2]
				copy(dst[x*4:x*4+4], rgba[i*4:])
			}
			cur, prev = prev, cur
		}
	}
	return pngTrailer(zr)
}

// readRow reads one filter byte plus scanline into cur and unfilters it.
func (d *pngDecoder) readRow(r io.Reader, cur, prev []byte, bpp int) error {
	if _, err := io.ReadFull(r, cur); err != nil {
		return errors.Wrap(err, "png: reading pixel data")
	}
	return unfilter(cur[0], cur[1:], prev[1:], bpp)
}

// pngTrailer makes the inflater reach the end of the zlib stream, which is
// where the Adler-32 checksum is verified.
func pngTrailer(r io.Reader) error {
	var b [1]byte
	n, err := io.ReadFull(r, b[:])
	if n != 0 {
		return corrupt("too much pixel data")
	}
	if err != io.EOF {
		return errors.Wrap(err, "png: end of pixel data")
	}
	return nil
}

func checkPNGSignature(data []byte) error {
	if len(data) < len(pngHeader) {
		return errShort
	}
	if string(data[:len(pngHeader)]) != pngHeader {
		return corrupt("invalid signature")
	}
	return nil
}

func decodePNG(data []byte, opts *Options) (*RawImage, error) {
	if err := checkPNGSignature(data); err != nil {
		return nil, err
	}
	d := &pngDecoder{}
	if err := d.readChunks(data, opts.Limits); err != nil {
		return nil, err
	}
	if err := opts.frames(d.frames); err != nil {
		return nil, err
	}
	native, err := d.native()
	if err != nil {
		return nil, err
	}
	out := newCanvas(d.width, d.height)
	if err := d.decodePixels(out, native); err != nil {
		return nil, err
	}
	return out, nil
}

func sizePNG(data []byte) (Size, error) {
	if err := checkPNGSignature(data); err != nil {
		return Size{}, err
	}
	c := &cursor{b: data, off: len(pngHeader)}
	typ, body, err := pngChunk(c)
	if err != nil {
		return Size{}, err
	}
	if typ != "IHDR" {
		return Size{}, corrupt("first chunk is %s, want IHDR", typ)
	}
	var d pngDecoder
	if err := d.parseIHDR(body); err != nil {
		return Size{}, err
	}
	return Size{Width: d.width, Height: d.height}, nil
}
