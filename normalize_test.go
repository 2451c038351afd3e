package imgdec

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interleaved(w, h int, l Layout, pix ...byte) *RawImage {
	raw := newRaw(w, h, l)
	raw.Pix = pix
	raw.Stride = w * l.bytesPerPixel()
	return raw
}

func planar(w, h int, l Layout, planes ...Plane) *RawImage {
	raw := newRaw(w, h, l)
	raw.Planes = planes
	return raw
}

func full(pix ...byte) Plane {
	return Plane{Pix: pix, Stride: len(pix), Dx: 1, Dy: 1}
}

func TestNormalizeLayouts(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  *RawImage
		want []byte
	}{
		{"gray", interleaved(2, 1, LayoutGray, 0, 200), []byte{0, 0, 0, 255, 200, 200, 200, 255}},
		{"gray alpha", interleaved(1, 1, LayoutGrayAlpha, 9, 77), []byte{9, 9, 9, 77}},
		{"rgb", interleaved(1, 1, LayoutRGB, 1, 2, 3), []byte{1, 2, 3, 255}},
		{"bgr", interleaved(1, 1, LayoutBGR, 1, 2, 3), []byte{3, 2, 1, 255}},
		{"bgra", interleaved(1, 1, LayoutBGRA, 1, 2, 3, 4), []byte{3, 2, 1, 4}},
		{"bgrx", interleaved(1, 1, LayoutBGRX, 1, 2, 3, 4), []byte{3, 2, 1, 255}},
		{"gray16", interleaved(1, 1, LayoutGray16, 0xab, 0xcd), []byte{0xab, 0xab, 0xab, 255}},
		{"gray alpha16", interleaved(1, 1, LayoutGrayAlpha16, 0xab, 0xcd, 0x80, 0x01), []byte{0xab, 0xab, 0xab, 0x80}},
		{"rgb16", interleaved(1, 1, LayoutRGB16, 1, 0, 2, 0, 3, 0), []byte{1, 2, 3, 255}},
		{"rgba16", interleaved(1, 1, LayoutRGBA16, 1, 0, 2, 0, 3, 0, 4, 0), []byte{1, 2, 3, 4}},
		{"ycbcr", planar(1, 1, LayoutYCbCr, full(128), full(128), full(128)), []byte{128, 128, 128, 255}},
		{"ycbcra", planar(1, 1, LayoutYCbCrA, full(255), full(128), full(128), full(7)), []byte{255, 255, 255, 7}},
		{"rgb planar", planar(1, 1, LayoutRGBPlanar, full(1), full(2), full(3)), []byte{1, 2, 3, 255}},
		{"cmyk", planar(2, 1, LayoutCMYK, full(255, 0), full(255, 255), full(255, 255), full(255, 255)), []byte{255, 255, 255, 255, 0, 255, 255, 255}},
		{"cmyk black", planar(1, 1, LayoutCMYK, full(255), full(255), full(255), full(0)), []byte{0, 0, 0, 255}},
		{"ycck", planar(1, 1, LayoutYCCK, full(0), full(128), full(128), full(255)), []byte{255, 255, 255, 255}},
		{"ycck gray", planar(1, 1, LayoutYCCK, full(128), full(128), full(128), full(255)), []byte{127, 127, 127, 255}},
		{"yuv", planar(2, 1, LayoutYUV, full(16, 235), full(128, 128), full(128, 128)), []byte{0, 0, 0, 255, 255, 255, 255, 255}},
		{"yuva", planar(1, 1, LayoutYUVA, full(235), full(128), full(128), full(42)), []byte{255, 255, 255, 42}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			img, err := normalize(tc.raw)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, img.Data); diff != "" {
				t.Fatalf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeSubsampledPlanes(t *testing.T) {
	// 4x2 frame with 2x2 chroma subsampling: one chroma sample per half.
	raw := planar(4, 2, LayoutRGBPlanar,
		Plane{Pix: []byte{1, 2, 3, 4, 5, 6, 7, 8}, Stride: 4, Dx: 1, Dy: 1},
		Plane{Pix: []byte{10, 20}, Stride: 2, Dx: 2, Dy: 2},
		Plane{Pix: []byte{30, 40}, Stride: 2, Dx: 2, Dy: 2},
	)
	img, err := normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		1, 10, 30, 255, 2, 10, 30, 255, 3, 20, 40, 255, 4, 20, 40, 255,
		5, 10, 30, 255, 6, 10, 30, 255, 7, 20, 40, 255, 8, 20, 40, 255,
	}, img.Data)
}

func TestNormalizeFrameOnCanvas(t *testing.T) {
	raw := interleaved(1, 1, LayoutGray, 99)
	raw.Width, raw.Height = 3, 2
	raw.Rect = image.Rect(1, 1, 2, 2)
	img, err := normalize(raw)
	require.NoError(t, err)
	want := make([]byte, 3*2*4)
	copy(want[16:], []byte{99, 99, 99, 255})
	assert.Equal(t, want, img.Data)
}

func TestNormalizeAdoptsRGBA(t *testing.T) {
	pix := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	img, err := normalize(interleaved(2, 1, LayoutRGBA, pix...))
	require.NoError(t, err)
	assert.Same(t, &pix[0], &img.Data[0])

	// A padded stride forces a copy.
	raw := interleaved(1, 2, LayoutRGBA, 1, 2, 3, 4, 0, 0, 0, 0, 5, 6, 7, 8)
	raw.Stride = 8
	img, err = normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, img.Data)
}

func TestNormalizeColorKey(t *testing.T) {
	raw := interleaved(2, 1, LayoutGray16, 0x12, 0x34, 0x12, 0x35)
	raw.Key = &[3]uint16{0x1234}
	img, err := normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x12, 0x12, 0, 0x12, 0x12, 0x12, 255}, img.Data)

	raw = interleaved(2, 1, LayoutRGB, 1, 2, 3, 1, 2, 4)
	raw.Key = &[3]uint16{1, 2, 3}
	img, err = normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 0, 1, 2, 4, 255}, img.Data)
}

func TestNormalizeRejects(t *testing.T) {
	outside := interleaved(2, 2, LayoutGray, 1, 2, 3, 4)
	outside.Rect = image.Rect(1, 1, 3, 3)

	paletted := interleaved(2, 1, LayoutPaletted, 0, 3)
	paletted.Palette = [][4]byte{{1, 2, 3, 255}, {4, 5, 6, 255}}

	for name, raw := range map[string]*RawImage{
		"nil":            nil,
		"empty":          interleaved(0, 1, LayoutGray),
		"outside canvas": outside,
		"short buffer":   interleaved(2, 2, LayoutRGB, 1, 2, 3),
		"missing plane":  planar(1, 1, LayoutYCbCr, full(1), full(2)),
		"short plane":    planar(2, 2, LayoutYUV, full(1), full(2), full(3)),
		"bad layout":     interleaved(1, 1, Layout(99), 1),
		"palette index":  paletted,
	} {
		t.Run(name, func(t *testing.T) {
			img, err := normalize(raw)
			assert.Nil(t, img)
			requireKind(t, err, CorruptData)
		})
	}
}
