package imgdec

import "image"

// Image is a decoded picture in interleaved, straight-alpha RGBA8.
// len(Data) is always Width*Height*4.
type Image struct {
	// Data holds the pixels, row-major, four bytes per pixel.
	Data []byte
	// Width of the image in pixels.
	Width int
	// Height of the image in pixels.
	Height int
}

// NRGBA returns a stdlib view of m sharing its pixel buffer.
func (m *Image) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    m.Data,
		Stride: m.Width * 4,
		Rect:   image.Rect(0, 0, m.Width, m.Height),
	}
}

// Size is the width and height declared by an image header.
type Size struct {
	Width  int
	Height int
}
