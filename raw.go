package imgdec

import "image"

// Layout is the native pixel arrangement a codec produces.
type Layout int

const (
	LayoutGray Layout = iota + 1
	LayoutGrayAlpha
	LayoutRGB
	LayoutRGBA
	LayoutBGR
	LayoutBGRA
	// LayoutBGRX is BGRA whose fourth byte is padding.
	LayoutBGRX
	// 16-bit layouts store big-endian samples.
	LayoutGray16
	LayoutGrayAlpha16
	LayoutRGB16
	LayoutRGBA16
	// LayoutPaletted stores one index per byte into RawImage.Palette.
	LayoutPaletted

	// Planar layouts keep one Plane per channel.

	// LayoutYCbCr is full-range JFIF YCbCr.
	LayoutYCbCr
	// LayoutYCbCrA is LayoutYCbCr with a fourth alpha plane.
	LayoutYCbCrA
	LayoutRGBPlanar
	// LayoutCMYK is Adobe-style inverted CMYK.
	LayoutCMYK
	// LayoutYCCK is Adobe YCCK: YCbCr-coded CMY plus inverted K.
	LayoutYCCK
	// LayoutYUV is BT.601 studio-range YUV as produced by VP8.
	LayoutYUV
	// LayoutYUVA is LayoutYUV with a fourth alpha plane.
	LayoutYUVA
)

// Plane is one channel of a planar layout. Sample (x, y) of the frame lives
// at Pix[(y/Dy)*Stride + x/Dx].
type Plane struct {
	Pix    []byte
	Stride int
	Dx, Dy int
}

func (p *Plane) at(x, y int) byte {
	return p.Pix[(y/p.Dy)*p.Stride+x/p.Dx]
}

// RawImage is a codec's output before normalization. It describes a frame
// occupying Rect inside a Width x Height canvas; canvas pixels outside Rect
// are transparent.
type RawImage struct {
	Width, Height int
	Rect          image.Rectangle
	Layout        Layout

	// Pix and Stride hold interleaved layouts, starting at Rect.Min.
	Pix    []byte
	Stride int

	// Planes hold planar layouts, starting at Rect.Min.
	Planes []Plane

	// Palette entries are straight RGBA.
	Palette [][4]byte

	// Key, when set, makes Gray/RGB pixels equal to it fully transparent.
	// Samples are compared at the layout's bit depth.
	Key *[3]uint16
}

func newRaw(width, height int, layout Layout) *RawImage {
	return &RawImage{
		Width:  width,
		Height: height,
		Rect:   image.Rect(0, 0, width, height),
		Layout: layout,
	}
}

// newCanvas returns a zeroed RGBA8 RawImage covering the whole canvas.
// Codecs that convert rows as they decode them write into it, and
// normalize hands its buffer out without a copy.
func newCanvas(width, height int) *RawImage {
	raw := newRaw(width, height, LayoutRGBA)
	raw.Stride = width * 4
	raw.Pix = make([]byte, raw.Stride*height)
	return raw
}

// row returns the RGBA8 bytes of canvas row y from x0 for n pixels.
func (raw *RawImage) row(y, x0, n int) []byte {
	off := y*raw.Stride + x0*4
	return raw.Pix[off : off+n*4]
}

// bytesPerPixel reports the interleaved pixel size of l, or 0 for planar layouts.
func (l Layout) bytesPerPixel() int {
	switch l {
	case LayoutGray, LayoutPaletted:
		return 1
	case LayoutGrayAlpha:
		return 2
	case LayoutRGB, LayoutBGR:
		return 3
	case LayoutRGBA, LayoutBGRA, LayoutBGRX, LayoutGrayAlpha16:
		return 4
	case LayoutGray16:
		return 2
	case LayoutRGB16:
		return 6
	case LayoutRGBA16:
		return 8
	}
	return 0
}

// planes reports how many planes a planar layout needs.
func (l Layout) planes() int {
	switch l {
	case LayoutYCbCr, LayoutRGBPlanar, LayoutYUV:
		return 3
	case LayoutYCbCrA, LayoutCMYK, LayoutYCCK, LayoutYUVA:
		return 4
	}
	return 0
}
