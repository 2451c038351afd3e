package imgdec

import (
	"encoding/binary"
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBMPRoundTrip(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 5, 3))
	for i := range gray.Pix {
		gray.Pix[i] = uint8(i * 17)
	}
	pal := color.Palette{
		color.RGBA{R: 200, G: 10, B: 10, A: 255},
		color.RGBA{R: 10, G: 200, B: 10, A: 255},
		color.RGBA{R: 10, G: 10, B: 200, A: 255},
	}
	paletted := image.NewPaletted(image.Rect(0, 0, 7, 4), pal)
	for i := range paletted.Pix {
		paletted.Pix[i] = uint8(i % len(pal))
	}

	for name, m := range map[string]image.Image{
		"bgr24":    gradient(13, 7),
		"gray":     gray,
		"paletted": paletted,
	} {
		t.Run(name, func(t *testing.T) {
			img, err := Decode(encodeBMP(t, m))
			require.NoError(t, err)
			if diff := cmp.Diff(rgba(m), img.Data); diff != "" {
				t.Fatalf("pixels differ (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBMPIgnoresAlphaInInfoHeader(t *testing.T) {
	// A 32-bit BI_RGB bitmap with a BITMAPINFOHEADER carries padding, not alpha.
	data := encodeBMP(t, holes(5, 4))
	require.Equal(t, uint16(32), binary.LittleEndian.Uint16(data[28:]))

	img, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, rgba(gradient(5, 4)), img.Data)
}

// bmpInfo returns a DIB header of n bytes.
func bmpInfo(n int, w, h int32, bpp uint16, compression uint32) []byte {
	b := make([]byte, n)
	binary.LittleEndian.PutUint32(b[0:], uint32(n))
	if n == coreHeaderLen {
		binary.LittleEndian.PutUint16(b[4:], uint16(w))
		binary.LittleEndian.PutUint16(b[6:], uint16(h))
		binary.LittleEndian.PutUint16(b[8:], 1)
		binary.LittleEndian.PutUint16(b[10:], bpp)
		return b
	}
	binary.LittleEndian.PutUint32(b[4:], uint32(w))
	binary.LittleEndian.PutUint32(b[8:], uint32(h))
	binary.LittleEndian.PutUint16(b[12:], 1)
	binary.LittleEndian.PutUint16(b[14:], bpp)
	binary.LittleEndian.PutUint32(b[16:], compression)
	return b
}

// bmpFile prefixes the file header; parts are the DIB header, any masks or
// palette, then the pixel data.
func bmpFile(parts ...[]byte) []byte {
	off := fileHeaderLen
	for _, p := range parts[:len(parts)-1] {
		off += len(p)
	}
	size := off + len(parts[len(parts)-1])
	out := make([]byte, fileHeaderLen)
	out[0], out[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(out[2:], uint32(size))
	binary.LittleEndian.PutUint32(out[10:], uint32(off))
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func le32s(vs ...uint32) []byte {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	return b
}

func TestBMPV4Alpha(t *testing.T) {
	// Top-down 2x2, 32-bit bitfields with an alpha mask in a V4 header.
	info := bmpInfo(v4InfoHeaderLen, 2, -2, 32, biBitfields)
	copy(info[40:], le32s(0x00ff0000, 0x0000ff00, 0x000000ff, 0xff000000))
	pix := le32s(
		0xff102030, 0x80405060,
		0x00708090, 0xffa0b0c0,
	)
	img, err := Decode(bmpFile(info, pix))
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x10, 0x20, 0x30, 0xff, 0x40, 0x50, 0x60, 0x80,
		0x70, 0x80, 0x90, 0x00, 0xa0, 0xb0, 0xc0, 0xff,
	}, img.Data)

	// BI_RGB with a V4 alpha mask honors alpha too.
	info = bmpInfo(v4InfoHeaderLen, 2, -2, 32, biRGB)
	copy(info[52:], le32s(0xff000000))
	img, err = Decode(bmpFile(info, pix))
	require.NoError(t, err)
	assert.Equal(t, byte(0x80), img.Data[7])
	assert.Equal(t, byte(0x00), img.Data[11])
}

func TestBMP565(t *testing.T) {
	// Bottom-up 3x1: white, pure red, pure blue; rows pad to 8 bytes.
	info := bmpInfo(infoHeaderLen, 3, 1, 16, biBitfields)
	masks := le32s(0xf800, 0x07e0, 0x001f)
	pix := []byte{0xff, 0xff, 0x00, 0xf8, 0x1f, 0x00, 0, 0}
	img, err := Decode(bmpFile(info, masks, pix))
	require.NoError(t, err)
	assert.Equal(t, []byte{
		255, 255, 255, 255,
		255, 0, 0, 255,
		0, 0, 255, 255,
	}, img.Data)

	// Without bitfields 16-bit pixels are 5-5-5.
	info = bmpInfo(infoHeaderLen, 1, 1, 16, biRGB)
	img, err = Decode(bmpFile(info, []byte{0xe0, 0x03, 0, 0}))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 255, 0, 255}, img.Data)
}

var bmpTestPalette = []byte{
	0, 0, 0, 0, // black
	0, 0, 255, 0, // red
	0, 255, 0, 0, // green
	255, 0, 0, 0, // blue
}

func TestBMPRLE8(t *testing.T) {
	info := bmpInfo(infoHeaderLen, 4, 3, 8, biRLE8)
	binary.LittleEndian.PutUint32(info[32:], 4)
	rle := []byte{
		4, 1, 0, 0, // bottom row: four red
		0, 3, 2, 3, 1, 0, // absolute: green blue red
		1, 1, 0, 0, // one red
		0, 2, 1, 0, // delta: skip one pixel
		2, 3, // two blue
		0, 1, // end of bitmap
	}
	img, err := Decode(bmpFile(info, bmpTestPalette, rle))
	require.NoError(t, err)
	k, r, g, b := []byte{0, 0, 0, 255}, []byte{255, 0, 0, 255}, []byte{0, 255, 0, 255}, []byte{0, 0, 255, 255}
	want := concat(
		k, b, b, k, // skipped pixels keep index 0
		g, b, r, r,
		r, r, r, r,
	)
	assert.Equal(t, want, img.Data)

	// The end-of-bitmap escape is required.
	_, err = Decode(bmpFile(info, bmpTestPalette, rle[:len(rle)-2]))
	requireKind(t, err, TruncatedData)
}

func TestBMPRLE4(t *testing.T) {
	info := bmpInfo(infoHeaderLen, 6, 1, 4, biRLE4)
	binary.LittleEndian.PutUint32(info[32:], 4)
	rle := []byte{
		3, 0x12, // 1 2 1
		0, 3, 0x30, 0x20, // absolute: 3 0 2
		0, 1,
	}
	img, err := Decode(bmpFile(info, bmpTestPalette, rle))
	require.NoError(t, err)
	k, r, g, b := []byte{0, 0, 0, 255}, []byte{255, 0, 0, 255}, []byte{0, 255, 0, 255}, []byte{0, 0, 255, 255}
	assert.Equal(t, concat(r, g, r, b, k, g), img.Data)

	// Index 5 is past the four palette entries.
	_, err = Decode(bmpFile(info, bmpTestPalette, []byte{1, 0x50, 0, 1}))
	requireKind(t, err, CorruptData)
}

func TestBMPCoreHeader(t *testing.T) {
	// OS/2 core header, 1 bit per pixel, 3-byte palette entries.
	info := bmpInfo(coreHeaderLen, 10, 2, 1, 0)
	pal := []byte{0, 0, 0, 255, 255, 255}
	pix := []byte{
		0b1111_1111, 0b1100_0000, 0, 0, // bottom row: all white
		0b1010_1010, 0b1000_0000, 0, 0,
	}
	img, err := Decode(bmpFile(info, pal, pix))
	require.NoError(t, err)
	require.Equal(t, 10, img.Width)
	for x := 0; x < 10; x++ {
		top := byte(0)
		if x%2 == 0 {
			top = 255
		}
		assert.Equal(t, top, img.Data[x*4], "top x=%d", x)
		assert.Equal(t, byte(255), img.Data[40+x*4], "bottom x=%d", x)
	}
}

func TestBMPUnsupported(t *testing.T) {
	for _, compression := range []uint32{biJPEG, biPNG, 11} {
		info := bmpInfo(infoHeaderLen, 1, 1, 24, compression)
		_, err := Decode(bmpFile(info, []byte{0, 0, 0, 0}))
		requireKind(t, err, UnsupportedFeature)
	}
	_, err := Decode(bmpFile(bmpInfo(64, 1, 1, 24, biRGB), []byte{0, 0, 0, 0}))
	requireKind(t, err, UnsupportedFeature)
}

func TestBMPCorrupt(t *testing.T) {
	for name, data := range map[string][]byte{
		"planes":       bmpFile(bmpInfo(coreHeaderLen, 1, 1, 24, 0)[:8], make([]byte, 8)),
		"zero width":   bmpFile(bmpInfo(infoHeaderLen, 0, 1, 24, biRGB), make([]byte, 4)),
		"top-down rle": bmpFile(bmpInfo(infoHeaderLen, 1, -1, 8, biRLE8), make([]byte, 1024), []byte{0, 1}),
		"rle8 at 4bpp": bmpFile(bmpInfo(infoHeaderLen, 1, 1, 4, biRLE8), make([]byte, 64), []byte{0, 1}),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			requireKind(t, err, CorruptData)
		})
	}
}

func TestBMPLimits(t *testing.T) {
	data := encodeBMP(t, gradient(12, 40))
	_, err := DecodeWithLimits(data, Limits{MaxHeight: 39})
	requireKind(t, err, DimensionTooLarge)

	sz, f, err := DecodeSize(data)
	require.NoError(t, err)
	assert.Equal(t, BMP, f)
	assert.Equal(t, Size{Width: 12, Height: 40}, sz)
}

func TestBMPTruncated(t *testing.T) {
	checkTruncations(t, encodeBMP(t, gradient(6, 5)))
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
