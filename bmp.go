// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The BMP specification is at http://www.digicamsoft.com/bmp/bmp.html.

package imgdec

import "math/bits"

// BMP compression methods.
const (
	biRGB            = 0
	biRLE8           = 1
	biRLE4           = 2
	biBitfields      = 3
	biJPEG           = 4
	biPNG            = 5
	biAlphaBitfields = 6
)

// DIB header sizes.
const (
	fileHeaderLen   = 14
	coreHeaderLen   = 12
	infoHeaderLen   = 40
	v2InfoHeaderLen = 52
	v3InfoHeaderLen = 56
	v4InfoHeaderLen = 108
	v5InfoHeaderLen = 124
)

type bmpHeader struct {
	offset      int
	infoLen     int
	width       int
	height      int
	topDown     bool
	bpp         int
	compression uint32
	colorsUsed  int
	masks       [4]uint32 // red, green, blue, alpha
}

func readBMPHeader(c *cursor) (h bmpHeader, err error) {
	b, err := c.next(fileHeaderLen + 4)
	if err != nil {
		return h, err
	}
	if string(b[:2]) != "BM" {
		return h, corrupt("invalid format")
	}
	h.offset = int(readUint32(b[10:14]))
	h.infoLen = int(readUint32(b[14:18]))
	switch h.infoLen {
	case coreHeaderLen, infoHeaderLen, v2InfoHeaderLen, v3InfoHeaderLen, v4InfoHeaderLen, v5InfoHeaderLen:
	default:
		return h, unsupported("DIB header of %d bytes", h.infoLen)
	}
	info, err := c.next(h.infoLen - 4)
	if err != nil {
		return h, err
	}

	var planes int
	if h.infoLen == coreHeaderLen {
		// BITMAPCOREHEADER: unsigned 16-bit dimensions, no compression.
		h.width = int(readUint16(info[0:2]))
		h.height = int(readUint16(info[2:4]))
		planes, h.bpp = int(readUint16(info[4:6])), int(readUint16(info[6:8]))
	} else {
		h.width = int(int32(readUint32(info[0:4])))
		h.height = int(int32(readUint32(info[4:8])))
		planes, h.bpp = int(readUint16(info[8:10])), int(readUint16(info[10:12]))
		h.compression = readUint32(info[12:16])
		h.colorsUsed = int(readUint32(info[28:32]))
		if h.infoLen >= v2InfoHeaderLen {
			h.masks[0], h.masks[1], h.masks[2] = readUint32(info[36:40]), readUint32(info[40:44]), readUint32(info[44:48])
		}
		if h.infoLen >= v3InfoHeaderLen {
			h.masks[3] = readUint32(info[48:52])
		}
	}
	if h.height < 0 {
		h.height, h.topDown = -h.height, true
	}
	if h.width <= 0 || h.height == 0 {
		return h, corrupt("invalid dimensions %dx%d", h.width, h.height)
	}
	if planes != 1 {
		return h, corrupt("%d color planes", planes)
	}

	switch h.compression {
	case biRGB:
	case biRLE8, biRLE4:
		if (h.compression == biRLE8 && h.bpp != 8) || (h.compression == biRLE4 && h.bpp != 4) {
			return h, corrupt("RLE compression with %d bits per pixel", h.bpp)
		}
		if h.topDown {
			return h, corrupt("top-down RLE bitmap")
		}
	case biBitfields, biAlphaBitfields:
		if h.bpp != 16 && h.bpp != 32 {
			return h, corrupt("bitfields with %d bits per pixel", h.bpp)
		}
		if h.infoLen == infoHeaderLen {
			// Masks follow a BITMAPINFOHEADER.
			n := 12
			if h.compression == biAlphaBitfields {
				n = 16
			}
			m, err := c.next(n)
			if err != nil {
				return h, err
			}
			for i := 0; i < n/4; i++ {
				h.masks[i] = readUint32(m[4*i:])
			}
		}
	case biJPEG, biPNG:
		return h, unsupported("embedded %s", map[uint32]string{biJPEG: "JPEG", biPNG: "PNG"}[h.compression])
	default:
		return h, unsupported("compression method %d", h.compression)
	}

	switch h.bpp {
	case 1, 4, 8, 16, 24, 32:
	default:
		return h, unsupported("%d bits per pixel", h.bpp)
	}
	return h, nil
}

func (h *bmpHeader) readPalette(c *cursor) ([][4]byte, error) {
	n := h.colorsUsed
	if n == 0 || n > 1<<h.bpp {
		n = 1 << h.bpp
	}
	entry := 4
	if h.infoLen == coreHeaderLen {
		entry = 3
	}
	b, err := c.next(n * entry)
	if err != nil {
		return nil, err
	}
	pal := make([][4]byte, n)
	for i := range pal {
		// BMP images are stored in BGR order rather than RGB order.
		// The fourth byte, if any, is padding.
		p := b[i*entry:]
		pal[i] = [4]byte{p[2], p[1], p[0], 0xff}
	}
	return pal, nil
}

func decodeBMP(data []byte, opts *Options) (*RawImage, error) {
	c := &cursor{b: data}
	h, err := readBMPHeader(c)
	if err != nil {
		return nil, err
	}
	if err := opts.Limits.check(h.width, h.height); err != nil {
		return nil, err
	}

	var palette [][4]byte
	if h.bpp <= 8 {
		if palette, err = h.readPalette(c); err != nil {
			return nil, err
		}
	}
	if h.offset < c.off {
		return nil, corrupt("pixel data offset %d overlaps the headers", h.offset)
	}
	if h.offset > len(data) {
		return nil, errShort
	}
	c.off = h.offset

	switch h.compression {
	case biRLE8, biRLE4:
		return decodeBMPRLE(c, &h, palette)
	case biBitfields, biAlphaBitfields:
		return decodeBMPBitfields(c, &h)
	}
	if h.bpp == 16 {
		h.masks = [4]uint32{0x7c00, 0x03e0, 0x001f, 0}
		return decodeBMPBitfields(c, &h)
	}

	// 32 bits per pixel is possibly RGBX (X is padding) or RGBA (A is
	// alpha transparency). Alpha is only honored when a V3+ header says
	// where it is; for BITMAPINFOHEADER it is ignored as browsers do.
	native := &RawImage{Palette: palette}
	switch h.bpp {
	case 1, 4, 8:
		native.Layout = LayoutPaletted
	case 24:
		native.Layout = LayoutBGR
	case 32:
		native.Layout = LayoutBGRX
		if h.infoLen >= v3InfoHeaderLen && h.masks[3] != 0 {
			h.masks[0], h.masks[1], h.masks[2] = 0xff0000, 0xff00, 0xff
			return decodeBMPBitfields(c, &h)
		}
	}
	out := newCanvas(h.width, h.height)
	var line []byte
	if h.bpp < 8 {
		line = make([]byte, h.width)
	}
	stride := bmpStride(&h)
	for y := 0; y < h.height; y++ {
		row, err := c.next(stride)
		if err != nil {
			return nil, err
		}
		if h.bpp < 8 {
			unpackIndices(line, row, h.bpp)
			row = line
		}
		if err := native.interleavedRow(out.row(bmpRow(&h, y), 0, h.width), row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// bmpStride returns the stored row length, padded to 4 bytes.
func bmpStride(h *bmpHeader) int {
	return ((h.width*h.bpp + 31) / 32) * 4
}

// bmpRow maps the y-th stored row to its top-down position.
func bmpRow(h *bmpHeader, y int) int {
	if h.topDown {
		return y
	}
	return h.height - 1 - y
}

// unpackIndices splits MSB-first packed palette indices into one byte each.
func unpackIndices(dst, src []byte, bpp int) {
	perByte := 8 / bpp
	mask := byte(1<<bpp - 1)
	for x := range dst {
		shift := uint(8 - bpp*(x%perByte+1))
		dst[x] = src[x/perByte] >> shift & mask
	}
}

type bitfield struct {
	mask  uint32
	shift int
	max   uint32
}

func newBitfield(mask uint32) bitfield {
	if mask == 0 {
		return bitfield{}
	}
	shift := bits.TrailingZeros32(mask)
	return bitfield{mask: mask, shift: shift, max: mask >> uint(shift)}
}

// scale extracts the field from v and stretches it to 8 bits.
func (f bitfield) scale(v uint32) byte {
	if f.max == 0 {
		return 0
	}
	x := uint64((v & f.mask) >> uint(f.shift))
	return byte((x*255 + uint64(f.max)/2) / uint64(f.max))
}

func decodeBMPBitfields(c *cursor, h *bmpHeader) (*RawImage, error) {
	var fields [4]bitfield
	for i, m := range h.masks {
		fields[i] = newBitfield(m)
	}
	if fields[0].mask == 0 && fields[1].mask == 0 && fields[2].mask == 0 {
		return nil, corrupt("empty color masks")
	}
	raw := newCanvas(h.width, h.height)
	stride := bmpStride(h)
	for y := 0; y < h.height; y++ {
		row, err := c.next(stride)
		if err != nil {
			return nil, err
		}
		dst := raw.Pix[bmpRow(h, y)*raw.Stride:]
		for x := 0; x < h.width; x++ {
			var v uint32
			if h.bpp == 16 {
				v = uint32(readUint16(row[2*x:]))
			} else {
				v = readUint32(row[4*x:])
			}
			d := dst[4*x : 4*x+4]
			d[0], d[1], d[2] = fields[0].scale(v), fields[1].scale(v), fields[2].scale(v)
			d[3] = 0xff
			if fields[3].mask != 0 {
				d[3] = fields[3].scale(v)
			}
		}
	}
	return raw, nil
}

// decodeBMPRLE expands RLE8/RLE4 data. Pixels skipped by delta or
// end-of-line escapes keep palette index 0.
func decodeBMPRLE(c *cursor, h *bmpHeader, palette [][4]byte) (*RawImage, error) {
	out := newCanvas(h.width, h.height)
	for i := 0; i < len(out.Pix); i += 4 {
		copy(out.Pix[i:i+4], palette[0][:])
	}
	var bad error
	put := func(x, y int, v byte) {
		if x >= h.width || y >= h.height {
			return
		}
		if int(v) >= len(palette) {
			bad = corrupt("palette index %d out of range [0,%d)", v, len(palette))
			return
		}
		copy(out.row(h.height-1-y, x, 1), palette[v][:])
	}
	x, y := 0, 0
	for bad == nil {
		p, err := c.next(2)
		if err != nil {
			return nil, err
		}
		n, v := int(p[0]), p[1]
		if n > 0 {
			for i := 0; i < n; i++ {
				if h.compression == biRLE8 {
					put(x, y, v)
				} else if i%2 == 0 {
					put(x, y, v>>4)
				} else {
					put(x, y, v&0x0f)
				}
				x++
			}
			continue
		}
		switch v {
		case 0: // end of line
			x, y = 0, y+1
		case 1: // end of bitmap
			return out, nil
		case 2: // delta
			d, err := c.next(2)
			if err != nil {
				return nil, err
			}
			x, y = x+int(d[0]), y+int(d[1])
		default: // absolute run of v pixels
			n := int(v)
			size := n
			if h.compression == biRLE4 {
				size = (n + 1) / 2
			}
			lit, err := c.next((size + 1) &^ 1)
			if err != nil {
				return nil, err
			}
			for i := 0; i < n; i++ {
				if h.compression == biRLE8 {
					put(x, y, lit[i])
				} else if i%2 == 0 {
					put(x, y, lit[i/2]>>4)
				} else {
					put(x, y, lit[i/2]&0x0f)
				}
				x++
			}
		}
		if y > h.height {
			return nil, corrupt("RLE data runs past the last row")
		}
	}
	return nil, bad
}

func sizeBMP(data []byte) (Size, error) {
	h, err := readBMPHeader(&cursor{b: data})
	if err != nil {
		return Size{}, err
	}
	return Size{Width: h.width, Height: h.height}, nil
}
