package imgdec

import (
	"compress/lzw"
	"image"
	"io"

	"github.com/pkg/errors"
)

// GIF block introducers and extension labels.
const (
	gifExtension      = 0x21
	gifImageSeparator = 0x2c
	gifTrailer        = 0x3b

	gifGraphicControl = 0xf9
)

const (
	gifColorTable     = 1 << 7
	gifInterlace      = 1 << 6
	gifColorTableBits = 7
)

type gifDecoder struct {
	c      *cursor
	opts   *Options
	width  int
	height int

	global      [][4]byte
	transparent int // -1 when the next frame has no transparent index

	raw    *RawImage
	frames int
}

// blockReader exposes a run of GIF data sub-blocks as one byte stream,
// which is what the LZW decoder consumes.
type blockReader struct {
	c    *cursor
	cur  []byte
	done bool
}

func (b *blockReader) fill() error {
	if b.done {
		return io.EOF
	}
	n, err := b.c.u8()
	if err != nil {
		return err
	}
	if n == 0 {
		b.done = true
		return io.EOF
	}
	b.cur, err = b.c.next(int(n))
	return err
}

func (b *blockReader) ReadByte() (byte, error) {
	for len(b.cur) == 0 {
		if err := b.fill(); err != nil {
			return 0, err
		}
	}
	v := b.cur[0]
	b.cur = b.cur[1:]
	return v, nil
}

func (b *blockReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(b.cur) == 0 {
		if err := b.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, b.cur)
	b.cur = b.cur[n:]
	return n, nil
}

// drain consumes whatever is left up to and including the block terminator.
func (b *blockReader) drain() error {
	b.cur = nil
	for {
		err := b.fill()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func readColorTable(c *cursor, flags byte) ([][4]byte, error) {
	n := 1 << (1 + uint(flags&gifColorTableBits))
	p, err := c.next(3 * n)
	if err != nil {
		return nil, err
	}
	t := make([][4]byte, n)
	for i := range t {
		t[i] = [4]byte{p[3*i], p[3*i+1], p[3*i+2], 0xff}
	}
	return t, nil
}

func (d *gifDecoder) readHeaderAndScreenDescriptor() error {
	p, err := d.c.next(13)
	if err != nil {
		return err
	}
	switch string(p[:6]) {
	case "GIF87a", "GIF89a":
	default:
		return corrupt("unknown version %q", p[:6])
	}
	d.width = int(readUint16(p[6:8]))
	d.height = int(readUint16(p[8:10]))
	if flags := p[10]; flags&gifColorTable != 0 {
		d.global, err = readColorTable(d.c, flags)
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *gifDecoder) readExtension() error {
	label, err := d.c.u8()
	if err != nil {
		return err
	}
	if label == gifGraphicControl {
		n, err := d.c.u8()
		if err != nil {
			return err
		}
		if n != 4 {
			return corrupt("graphic control extension of length %d", n)
		}
		p, err := d.c.next(4)
		if err != nil {
			return err
		}
		d.transparent = -1
		if p[0]&1 != 0 {
			d.transparent = int(p[3])
		}
	}
	br := &blockReader{c: d.c}
	return br.drain()
}

func (d *gifDecoder) readImage() error {
	p, err := d.c.next(9)
	if err != nil {
		return err
	}
	d.frames++
	left, top := int(readUint16(p[0:2])), int(readUint16(p[2:4]))
	w, h := int(readUint16(p[4:6])), int(readUint16(p[6:8]))
	flags := p[8]
	palette := d.global
	if flags&gifColorTable != 0 {
		if palette, err = readColorTable(d.c, flags); err != nil {
			return err
		}
	}
	litWidth, err := d.c.u8()
	if err != nil {
		return err
	}
	br := &blockReader{c: d.c}
	if d.frames > 1 {
		return br.drain()
	}

	if palette == nil {
		return corrupt("no color table")
	}
	if litWidth < 2 || litWidth > 8 {
		return corrupt("LZW code size %d out of range", litWidth)
	}
	if w == 0 || h == 0 {
		return corrupt("empty frame")
	}
	frame := image.Rect(left, top, left+w, top+h)
	canvas := image.Rect(0, 0, max(d.width, frame.Max.X), max(d.height, frame.Max.Y))
	if err := d.opts.Limits.check(canvas.Dx(), canvas.Dy()); err != nil {
		return err
	}
	if d.transparent >= 0 && d.transparent < len(palette) {
		palette = append([][4]byte(nil), palette...)
		palette[d.transparent][3] = 0
	}

	native := &RawImage{Layout: LayoutPaletted, Palette: palette}
	out := newCanvas(canvas.Dx(), canvas.Dy())
	line := make([]byte, w)
	lr := lzw.NewReader(br, lzw.LSB, int(litWidth))
	defer lr.Close()
	row := func(y int) error {
		if err := readPixels(lr, line); err != nil {
			return err
		}
		return native.interleavedRow(out.row(top+y, left, w), line)
	}
	if flags&gifInterlace != 0 {
		for _, pass := range [4][2]int{{0, 8}, {4, 8}, {2, 4}, {1, 2}} {
			for y := pass[0]; y < h; y += pass[1] {
				if err := row(y); err != nil {
					return err
				}
			}
		}
	} else {
		for y := 0; y < h; y++ {
			if err := row(y); err != nil {
				return err
			}
		}
	}

	var extra [1]byte
	if n, err := lr.Read(extra[:]); n != 0 {
		return corrupt("too much image data")
	} else if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return err
	}
	if err := br.drain(); err != nil {
		return err
	}
	d.raw = out
	return nil
}

func readPixels(r io.Reader, p []byte) error {
	_, err := io.ReadFull(r, p)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return corrupt("not enough image data")
	}
	if err != nil {
		if KindOf(err) != 0 {
			return err
		}
		return errors.Wrap(err, "gif")
	}
	return nil
}

func decodeGIF(data []byte, opts *Options) (*RawImage, error) {
	d := &gifDecoder{c: &cursor{b: data}, opts: opts, transparent: -1}
	if err := d.readHeaderAndScreenDescriptor(); err != nil {
		return nil, err
	}
	for {
		b, err := d.c.u8()
		if err != nil {
			return nil, err
		}
		switch b {
		case gifExtension:
			err = d.readExtension()
		case gifImageSeparator:
			err = d.readImage()
			d.transparent = -1
		case gifTrailer:
			if d.raw == nil {
				return nil, corrupt("no image")
			}
			if err := opts.frames(d.frames); err != nil {
				return nil, err
			}
			return d.raw, nil
		default:
			err = corrupt("unknown block type 0x%02x", b)
		}
		if err != nil {
			return nil, err
		}
	}
}

func sizeGIF(data []byte) (Size, error) {
	d := &gifDecoder{c: &cursor{b: data}}
	if err := d.readHeaderAndScreenDescriptor(); err != nil {
		return Size{}, err
	}
	return Size{Width: d.width, Height: d.height}, nil
}
