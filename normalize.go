package imgdec

import "image/color"

// normalize converts raw into the canonical RGBA8 Image.
func normalize(raw *RawImage) (*Image, error) {
	if raw == nil || raw.Width <= 0 || raw.Height <= 0 {
		return nil, corrupt("empty image")
	}
	r := raw.Rect
	if r.Empty() || r.Min.X < 0 || r.Min.Y < 0 || r.Max.X > raw.Width || r.Max.Y > raw.Height {
		return nil, corrupt("frame %v outside %dx%d canvas", r, raw.Width, raw.Height)
	}
	if err := raw.validate(); err != nil {
		return nil, err
	}

	stride := raw.Width * 4
	if raw.Layout == LayoutRGBA && r.Dx() == raw.Width && r.Dy() == raw.Height &&
		raw.Stride == stride && len(raw.Pix) == stride*raw.Height {
		return &Image{Data: raw.Pix, Width: raw.Width, Height: raw.Height}, nil
	}

	out := make([]byte, stride*raw.Height)
	w := r.Dx()
	for y := 0; y < r.Dy(); y++ {
		dst := out[(r.Min.Y+y)*stride+r.Min.X*4:]
		if err := raw.convertRow(dst[:w*4], y); err != nil {
			return nil, err
		}
	}
	return &Image{Data: out, Width: raw.Width, Height: raw.Height}, nil
}

// convertRow writes row y of raw's buffers as len(dst)/4 RGBA8 pixels.
func (raw *RawImage) convertRow(dst []byte, y int) error {
	if raw.Layout.planes() > 0 {
		raw.planarRow(dst, y)
		return nil
	}
	return raw.interleavedRow(dst, raw.Pix[y*raw.Stride:])
}

// validate checks that the buffers can hold the frame.
func (raw *RawImage) validate() error {
	w, h := raw.Rect.Dx(), raw.Rect.Dy()
	if n := raw.Layout.planes(); n > 0 {
		if len(raw.Planes) < n {
			return corrupt("layout needs %d planes, have %d", n, len(raw.Planes))
		}
		for i := range raw.Planes[:n] {
			p := &raw.Planes[i]
			if p.Dx <= 0 || p.Dy <= 0 {
				return corrupt("plane %d has invalid subsampling", i)
			}
			if len(p.Pix) < ((h-1)/p.Dy)*p.Stride+(w-1)/p.Dx+1 {
				return corrupt("plane %d is too short", i)
			}
		}
		return nil
	}
	bpp := raw.Layout.bytesPerPixel()
	if bpp == 0 {
		return corrupt("unknown pixel layout %d", raw.Layout)
	}
	if raw.Stride < w*bpp || len(raw.Pix) < (h-1)*raw.Stride+w*bpp {
		return corrupt("pixel buffer is too short")
	}
	return nil
}

func (raw *RawImage) interleavedRow(dst, src []byte) error {
	key := raw.Key
	switch raw.Layout {
	case LayoutGray:
		for i := 0; i < len(dst); i += 4 {
			v := src[i/4]
			dst[i], dst[i+1], dst[i+2], dst[i+3] = v, v, v, 0xff
			if key != nil && uint16(v) == key[0] {
				dst[i+3] = 0
			}
		}
	case LayoutGrayAlpha:
		for i, j := 0, 0; i < len(dst); i, j = i+4, j+2 {
			v := src[j]
			dst[i], dst[i+1], dst[i+2], dst[i+3] = v, v, v, src[j+1]
		}
	case LayoutRGB:
		for i, j := 0, 0; i < len(dst); i, j = i+4, j+3 {
			dst[i], dst[i+1], dst[i+2], dst[i+3] = src[j], src[j+1], src[j+2], 0xff
			if key != nil && uint16(src[j]) == key[0] && uint16(src[j+1]) == key[1] && uint16(src[j+2]) == key[2] {
				dst[i+3] = 0
			}
		}
	case LayoutRGBA:
		copy(dst, src[:len(dst)])
	case LayoutBGR:
		for i, j := 0, 0; i < len(dst); i, j = i+4, j+3 {
			dst[i], dst[i+1], dst[i+2], dst[i+3] = src[j+2], src[j+1], src[j], 0xff
		}
	case LayoutBGRA:
		for i := 0; i < len(dst); i += 4 {
			dst[i], dst[i+1], dst[i+2], dst[i+3] = src[i+2], src[i+1], src[i], src[i+3]
		}
	case LayoutBGRX:
		for i := 0; i < len(dst); i += 4 {
			dst[i], dst[i+1], dst[i+2], dst[i+3] = src[i+2], src[i+1], src[i], 0xff
		}
	case LayoutGray16:
		for i, j := 0, 0; i < len(dst); i, j = i+4, j+2 {
			v := src[j]
			dst[i], dst[i+1], dst[i+2], dst[i+3] = v, v, v, 0xff
			if key != nil && be16(src[j:]) == key[0] {
				dst[i+3] = 0
			}
		}
	case LayoutGrayAlpha16:
		for i := 0; i < len(dst); i += 4 {
			v := src[i]
			dst[i], dst[i+1], dst[i+2], dst[i+3] = v, v, v, src[i+2]
		}
	case LayoutRGB16:
		for i, j := 0, 0; i < len(dst); i, j = i+4, j+6 {
			dst[i], dst[i+1], dst[i+2], dst[i+3] = src[j], src[j+2], src[j+4], 0xff
			if key != nil && be16(src[j:]) == key[0] && be16(src[j+2:]) == key[1] && be16(src[j+4:]) == key[2] {
				dst[i+3] = 0
			}
		}
	case LayoutRGBA16:
		for i, j := 0, 0; i < len(dst); i, j = i+4, j+8 {
			dst[i], dst[i+1], dst[i+2], dst[i+3] = src[j], src[j+2], src[j+4], src[j+6]
		}
	case LayoutPaletted:
		pal := raw.Palette
		for i := 0; i < len(dst); i += 4 {
			idx := int(src[i/4])
			if idx >= len(pal) {
				return corrupt("palette index %d out of range [0,%d)", idx, len(pal))
			}
			c := pal[idx]
			dst[i], dst[i+1], dst[i+2], dst[i+3] = c[0], c[1], c[2], c[3]
		}
	}
	return nil
}

func (raw *RawImage) planarRow(dst []byte, y int) {
	p := raw.Planes
	for i, x := 0, 0; i < len(dst); i, x = i+4, x+1 {
		switch raw.Layout {
		case LayoutYCbCr:
			dst[i], dst[i+1], dst[i+2] = color.YCbCrToRGB(p[0].at(x, y), p[1].at(x, y), p[2].at(x, y))
			dst[i+3] = 0xff
		case LayoutYCbCrA:
			dst[i], dst[i+1], dst[i+2] = color.YCbCrToRGB(p[0].at(x, y), p[1].at(x, y), p[2].at(x, y))
			dst[i+3] = p[3].at(x, y)
		case LayoutRGBPlanar:
			dst[i], dst[i+1], dst[i+2], dst[i+3] = p[0].at(x, y), p[1].at(x, y), p[2].at(x, y), 0xff
		case LayoutCMYK:
			k := p[3].at(x, y)
			dst[i], dst[i+1], dst[i+2] = mul8(p[0].at(x, y), k), mul8(p[1].at(x, y), k), mul8(p[2].at(x, y), k)
			dst[i+3] = 0xff
		case LayoutYCCK:
			k := p[3].at(x, y)
			r, g, b := color.YCbCrToRGB(p[0].at(x, y), p[1].at(x, y), p[2].at(x, y))
			dst[i], dst[i+1], dst[i+2], dst[i+3] = mul8(^r, k), mul8(^g, k), mul8(^b, k), 0xff
		case LayoutYUV:
			dst[i], dst[i+1], dst[i+2] = yuvToRGB(p[0].at(x, y), p[1].at(x, y), p[2].at(x, y))
			dst[i+3] = 0xff
		case LayoutYUVA:
			dst[i], dst[i+1], dst[i+2] = yuvToRGB(p[0].at(x, y), p[1].at(x, y), p[2].at(x, y))
			dst[i+3] = p[3].at(x, y)
		}
	}
}

func be16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// mul8 returns a*b/255 rounded.
func mul8(a, b byte) byte {
	t := uint32(a)*uint32(b) + 128
	return byte((t + t>>8) >> 8)
}

// BT.601 studio-range YUV to RGB in 14-bit fixed point, as in libwebp.
const (
	yuvFix2  = 6
	yuvMask2 = (256 << yuvFix2) - 1
)

func multHi(v, coeff int) int {
	return (v * coeff) >> 8
}

func clip8(v int) byte {
	if v&^yuvMask2 == 0 {
		return byte(v >> yuvFix2)
	}
	if v < 0 {
		return 0
	}
	return 255
}

func yuvToRGB(y, u, v byte) (r, g, b byte) {
	yy, uu, vv := int(y), int(u), int(v)
	r = clip8(multHi(yy, 19077) + multHi(vv, 26149) - 14234)
	g = clip8(multHi(yy, 19077) - multHi(uu, 6419) - multHi(vv, 13320) + 8708)
	b = clip8(multHi(yy, 19077) + multHi(uu, 33050) - 17685)
	return
}
