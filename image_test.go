package imgdec

import (
	"image"
	"testing"

	"github.com/chai2010/webp"
)

func TestSizes(t *testing.T) {
	pal := image.NewPaletted(image.Rect(0, 0, 184, 166), testPalette)
	for _, tc := range []struct {
		data []byte
		w, h int
		f    Format
	}{
		{encodeWebP(t, gradient(351, 248), &webp.Options{Quality: 50}), 351, 248, WebP},
		{encodeWebP(t, gradient(35, 24), &webp.Options{Lossless: true}), 35, 24, WebP},
		{encodeJPEG(t, gradient(85, 112), 75), 85, 112, JPEG},
		{encodePNG(t, gradient(67, 71)), 67, 71, PNG},
		{encodeGIF(t, pal), 184, 166, GIF},
		{encodeBMP(t, gradient(19, 3)), 19, 3, BMP},
	} {
		sz, f, err := DecodeSize(tc.data)
		if err != nil {
			t.Fatal(err)
		}
		if sz.Width != tc.w || sz.Height != tc.h || f != tc.f {
			t.Fatal(sz, f)
		}
		img, err := Decode(tc.data)
		if err != nil {
			t.Fatal(f, err)
		}
		if img.Width != tc.w || img.Height != tc.h || len(img.Data) != tc.w*tc.h*4 {
			t.Fatal(f, img.Width, img.Height, len(img.Data))
		}
	}
}

func TestNRGBAView(t *testing.T) {
	img, err := Decode(encodePNG(t, holes(4, 3)))
	if err != nil {
		t.Fatal(err)
	}
	m := img.NRGBA()
	if m.Bounds() != image.Rect(0, 0, 4, 3) {
		t.Fatal(m.Bounds())
	}
	if &m.Pix[0] != &img.Data[0] {
		t.Fatal("NRGBA copied the pixel buffer")
	}
	if c := m.NRGBAAt(3, 0); c.A != 0 {
		t.Fatal(c)
	}
}
