// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package imgdec

import (
	"bytes"
	"image"

	"github.com/pkg/errors"
	"golang.org/x/image/vp8"
	"golang.org/x/image/vp8l"
)

// RIFF chunk identifiers.
const (
	fccALPH = "ALPH"
	fccANIM = "ANIM"
	fccANMF = "ANMF"
	fccVP8  = "VP8 "
	fccVP8L = "VP8L"
	fccVP8X = "VP8X"
)

const (
	chunkHeaderSize = 8
	riffHeaderSize  = 12
	anmfHeaderSize  = 16
)

// VP8X feature flags.
const (
	animationBit    = 1 << 1
	xmpMetadataBit  = 1 << 2
	exifMetadataBit = 1 << 3
	alphaBit        = 1 << 4
	iccProfileBit   = 1 << 5
)

type riffChunk struct {
	id   string
	data []byte
}

// riffBody checks the RIFF header and returns the chunks it covers. Bytes
// past the declared RIFF size are ignored.
func riffBody(data []byte) (*cursor, error) {
	c := &cursor{b: data}
	h, err := c.next(riffHeaderSize)
	if err != nil {
		return nil, err
	}
	if string(h[0:4]) != "RIFF" || string(h[8:12]) != "WEBP" {
		return nil, corrupt("missing RIFF WEBP header")
	}
	n := int64(readUint32(h[4:8]))
	if n < 4 {
		return nil, corrupt("RIFF size %d", n)
	}
	if n+chunkHeaderSize > int64(len(data)) {
		return nil, truncated("RIFF size %d, have %d bytes", n, len(data)-chunkHeaderSize)
	}
	return &cursor{b: data[riffHeaderSize : chunkHeaderSize+n]}, nil
}

// nextChunk returns the next chunk. A missing padding byte after the
// final chunk is tolerated.
func nextChunk(c *cursor) (riffChunk, error) {
	h, err := c.next(chunkHeaderSize)
	if err != nil {
		return riffChunk{}, corrupt("short chunk header")
	}
	n := int64(readUint32(h[4:]))
	if n > int64(c.remaining()) {
		return riffChunk{}, corrupt("%s chunk of %d bytes overruns the container", h[:4], n)
	}
	data, _ := c.next(int(n))
	if n&1 == 1 && !c.eof() {
		c.off++
	}
	return riffChunk{id: string(h[:4]), data: data}, nil
}

// webpFrame is one coded picture: an optional ALPH payload plus a VP8 or
// VP8L bitstream.
type webpFrame struct {
	alph   []byte
	stream riffChunk
}

// frameSize reads the dimensions out of the bitstream header.
func (f *webpFrame) frameSize() (int, int, error) {
	switch f.stream.id {
	case fccVP8:
		return decodeVP8FrameHeader(f.stream.data)
	case fccVP8L:
		if f.alph != nil {
			return 0, 0, corrupt("ALPH chunk with a lossless bitstream")
		}
		return decodeVP8LHeader(f.stream.data)
	}
	return 0, 0, corrupt("no image bitstream")
}

// decode decodes the frame into a w x h native buffer.
func (f *webpFrame) decode(w, h int) (*RawImage, error) {
	if f.stream.id == fccVP8L {
		m, err := vp8l.Decode(bytes.NewReader(f.stream.data))
		if err != nil {
			return nil, errors.Wrap(err, "vp8l")
		}
		nrgba, ok := m.(*image.NRGBA)
		if !ok || nrgba.Rect.Dx() != w || nrgba.Rect.Dy() != h {
			return nil, corrupt("lossless bitstream decoded to %v", m.Bounds())
		}
		raw := newRaw(w, h, LayoutRGBA)
		raw.Pix, raw.Stride = nrgba.Pix, nrgba.Stride
		return raw, nil
	}

	d := vp8.NewDecoder()
	d.Init(bytes.NewReader(f.stream.data), len(f.stream.data))
	if _, err := d.DecodeFrameHeader(); err != nil {
		return nil, errors.Wrap(err, "vp8 frame header")
	}
	m, err := d.DecodeFrame()
	if err != nil {
		return nil, errors.Wrap(err, "vp8")
	}
	if m.Rect.Dx() != w || m.Rect.Dy() != h {
		return nil, corrupt("lossy bitstream decoded to %v", m.Rect)
	}
	raw := newRaw(w, h, LayoutYUV)
	raw.Planes = []Plane{
		{Pix: m.Y, Stride: m.YStride, Dx: 1, Dy: 1},
		{Pix: m.Cb, Stride: m.CStride, Dx: 2, Dy: 2},
		{Pix: m.Cr, Stride: m.CStride, Dx: 2, Dy: 2},
	}
	if f.alph == nil {
		return raw, nil
	}
	if len(f.alph) == 0 {
		return nil, corrupt("empty ALPH chunk")
	}
	// The first byte packs pre-processing, filter and compression.
	alpha, err := readAlpha(f.alph[1:], w, h, f.alph[0]&0x03)
	if err != nil {
		return nil, err
	}
	unfilterAlpha(alpha, w, (f.alph[0]>>2)&0x03)
	raw.Layout = LayoutYUVA
	raw.Planes = append(raw.Planes, Plane{Pix: alpha, Stride: w, Dx: 1, Dy: 1})
	return raw, nil
}

// webpImage is the parsed chunk structure of a WebP file.
type webpImage struct {
	width, height int
	flags         byte
	extended      bool

	first  webpFrame
	rect   image.Rectangle // first frame's placement on the canvas
	frames int
}

func parseWebP(data []byte) (*webpImage, error) {
	c, err := riffBody(data)
	if err != nil {
		return nil, err
	}
	first, err := nextChunk(c)
	if err != nil {
		return nil, err
	}
	m := &webpImage{frames: 1}
	switch first.id {
	case fccVP8, fccVP8L:
		// Simple format: the whole file is one bitstream chunk.
		m.first.stream = first
		if m.width, m.height, err = m.first.frameSize(); err != nil {
			return nil, err
		}
		m.rect = image.Rect(0, 0, m.width, m.height)
		return m, nil
	case fccVP8X:
	default:
		return nil, corrupt("unexpected first chunk %q", first.id)
	}

	if len(first.data) < 10 {
		return nil, corrupt("VP8X chunk of %d bytes", len(first.data))
	}
	m.extended = true
	m.flags = first.data[0]
	m.width = int(readUint24(first.data[4:])) + 1
	m.height = int(readUint24(first.data[7:])) + 1

	if m.flags&animationBit != 0 {
		return m, m.parseFrames(c)
	}
	for !c.eof() {
		ch, err := nextChunk(c)
		if err != nil {
			return nil, err
		}
		switch ch.id {
		case fccALPH:
			if m.first.alph == nil {
				m.first.alph = ch.data
			}
		case fccVP8, fccVP8L:
			m.first.stream = ch
			w, h, err := m.first.frameSize()
			if err != nil {
				return nil, err
			}
			if w != m.width || h != m.height {
				return nil, corrupt("frame is %dx%d on a %dx%d canvas", w, h, m.width, m.height)
			}
			m.rect = image.Rect(0, 0, w, h)
			return m, nil
		}
	}
	return nil, corrupt("no image bitstream")
}

// parseFrames counts the ANMF chunks and records the first one.
func (m *webpImage) parseFrames(c *cursor) error {
	m.frames = 0
	canvas := image.Rect(0, 0, m.width, m.height)
	for !c.eof() {
		ch, err := nextChunk(c)
		if err != nil {
			return err
		}
		if ch.id != fccANMF {
			continue
		}
		m.frames++
		if m.frames > 1 {
			continue
		}
		if len(ch.data) < anmfHeaderSize {
			return corrupt("ANMF chunk of %d bytes", len(ch.data))
		}
		x, y := 2*int(readUint24(ch.data[0:])), 2*int(readUint24(ch.data[3:]))
		w, h := int(readUint24(ch.data[6:]))+1, int(readUint24(ch.data[9:]))+1
		m.rect = image.Rect(x, y, x+w, y+h)
		if !m.rect.In(canvas) {
			return corrupt("frame %v outside %dx%d canvas", m.rect, m.width, m.height)
		}
		fc := &cursor{b: ch.data[anmfHeaderSize:]}
		for !fc.eof() && m.first.stream.id == "" {
			sub, err := nextChunk(fc)
			if err != nil {
				return err
			}
			switch sub.id {
			case fccALPH:
				if m.first.alph == nil {
					m.first.alph = sub.data
				}
			case fccVP8, fccVP8L:
				m.first.stream = sub
			}
		}
		fw, fh, err := m.first.frameSize()
		if err != nil {
			return err
		}
		if fw != w || fh != h {
			return corrupt("frame bitstream is %dx%d, ANMF says %dx%d", fw, fh, w, h)
		}
	}
	if m.frames == 0 {
		return corrupt("animation without frames")
	}
	return nil
}

// working returns the bytes the bitstream decoders hold besides the RGBA
// canvas: the macroblock-aligned YUV planes and alpha plane of a lossy
// frame, or a lossless frame that does not cover the whole canvas.
func (m *webpImage) working() int64 {
	w, h := int64(m.rect.Dx()), int64(m.rect.Dy())
	if m.first.stream.id == fccVP8L {
		if m.rect == image.Rect(0, 0, m.width, m.height) {
			return 0
		}
		return w * h * 4
	}
	mw, mh := (w+15)&^15, (h+15)&^15
	n := mw*mh + mw*mh/2
	if alph := m.first.alph; alph != nil {
		n += w * h
		if len(alph) > 0 && alph[0]&0x03 == 1 {
			n += w * h * 4
		}
	}
	return n
}

func decodeWebP(data []byte, opts *Options) (*RawImage, error) {
	m, err := parseWebP(data)
	if err != nil {
		return nil, err
	}
	if err := opts.Limits.checkWorking(m.width, m.height, m.working()); err != nil {
		return nil, err
	}
	if err := opts.frames(m.frames); err != nil {
		return nil, err
	}
	raw, err := m.first.decode(m.rect.Dx(), m.rect.Dy())
	if err != nil {
		return nil, err
	}
	raw.Width, raw.Height, raw.Rect = m.width, m.height, m.rect
	return raw, nil
}

func sizeWebP(data []byte) (Size, error) {
	c := &cursor{b: data}
	h, err := c.next(riffHeaderSize)
	if err != nil {
		return Size{}, err
	}
	if string(h[8:12]) != "WEBP" {
		return Size{}, corrupt("missing WEBP form type")
	}
	ch, err := c.next(chunkHeaderSize)
	if err != nil {
		return Size{}, err
	}
	body := c.b[c.off:]
	var w, hh int
	switch string(ch[:4]) {
	case fccVP8:
		w, hh, err = decodeVP8FrameHeader(body)
	case fccVP8L:
		w, hh, err = decodeVP8LHeader(body)
	case fccVP8X:
		if len(body) < 10 {
			return Size{}, errShort
		}
		w, hh = int(readUint24(body[4:]))+1, int(readUint24(body[7:]))+1
	default:
		err = corrupt("unexpected first chunk %q", ch[:4])
	}
	return Size{Width: w, Height: hh}, err
}

func decodeVP8FrameHeader(b []byte) (w, h int, err error) {
	// Key frame headers are 3 bytes of frame tag then 7 bytes of start
	// code and dimensions.
	if len(b) < 10 {
		return 0, 0, errShort
	}
	if b[0]&1 != 0 {
		return 0, 0, corrupt("vp8: not a key frame")
	}
	// Check the magic sync code.
	if b[3] != 0x9d || b[4] != 0x01 || b[5] != 0x2a {
		return 0, 0, corrupt("vp8: invalid start code")
	}
	w, h = int(b[7]&0x3f)<<8|int(b[6]), int(b[9]&0x3f)<<8|int(b[8])
	if w == 0 || h == 0 {
		return 0, 0, corrupt("vp8: invalid dimensions %dx%d", w, h)
	}
	return w, h, nil
}

// vp8lBits reads the LSB-first bit-stream of a VP8L header.
type vp8lBits struct {
	b     []byte
	bits  uint32
	nBits uint32
}

// read reads the next n bits from the bit-stream.
func (d *vp8lBits) read(n uint32) (uint32, error) {
	for d.nBits < n {
		if len(d.b) == 0 {
			return 0, errShort
		}
		d.bits |= uint32(d.b[0]) << d.nBits
		d.b = d.b[1:]
		d.nBits += 8
	}
	u := d.bits & (1<<n - 1)
	d.bits >>= n
	d.nBits -= n
	return u, nil
}

func decodeVP8LHeader(b []byte) (w, h int, err error) {
	d := &vp8lBits{b: b}
	magic, err := d.read(8)
	if err != nil {
		return 0, 0, err
	}
	if magic != 0x2f {
		return 0, 0, corrupt("vp8l: invalid header")
	}
	width, err := d.read(14)
	if err != nil {
		return 0, 0, err
	}
	height, err := d.read(14)
	if err != nil {
		return 0, 0, err
	}
	if _, err = d.read(1); err != nil { // Read and ignore the hasAlpha hint.
		return 0, 0, err
	}
	version, err := d.read(3)
	if err != nil {
		return 0, 0, err
	}
	if version != 0 {
		return 0, 0, corrupt("vp8l: invalid version %d", version)
	}
	return int(width) + 1, int(height) + 1, nil
}

func readAlpha(data []byte, w, h int, compression byte) ([]byte, error) {
	switch compression {
	case 0:
		if len(data) < w*h {
			return nil, corrupt("ALPH has %d bytes for %dx%d", len(data), w, h)
		}
		return append([]byte(nil), data[:w*h]...), nil

	case 1:
		// The alpha plane is a headerless VP8L stream. Synthesize a 5-byte
		// header: a 1-byte magic number, a 14-bit width-1, a 14-bit
		// height-1, a zero alphaIsUsed bit and a 3-bit zero version.
		if w > 0x4000 || h > 0x4000 {
			return nil, corrupt("alpha plane of %dx%d", w, h)
		}
		wm1, hm1 := uint32(w-1), uint32(h-1)
		hdr := []byte{
			0x2f,
			uint8(wm1),
			uint8(wm1>>8) | uint8(hm1<<6),
			uint8(hm1 >> 2),
			uint8(hm1 >> 10),
		}
		m, err := vp8l.Decode(bytes.NewReader(append(hdr, data...)))
		if err != nil {
			return nil, errors.Wrap(err, "alpha")
		}
		// The green values of the inner image are the alpha values.
		pix := m.(*image.NRGBA).Pix
		alpha := make([]byte, len(pix)/4)
		for i := range alpha {
			alpha[i] = pix[4*i+1]
		}
		return alpha, nil
	}
	return nil, corrupt("unknown alpha compression %d", compression)
}

func unfilterAlpha(alpha []byte, stride int, filter byte) {
	if len(alpha) == 0 || stride == 0 || filter == 0 {
		return
	}
	// The first row is predicted from the left for every filter.
	for i := 1; i < stride; i++ {
		alpha[i] += alpha[i-1]
	}
	for i := stride; i < len(alpha); i += stride {
		// The first column is predicted from above for every filter.
		alpha[i] += alpha[i-stride]
		for j := 1; j < stride; j++ {
			switch filter {
			case 1: // horizontal
				alpha[i+j] += alpha[i+j-1]
			case 2: // vertical
				alpha[i+j] += alpha[i+j-stride]
			case 3: // gradient
				x := int(alpha[i+j-1]) + int(alpha[i+j-stride]) - int(alpha[i+j-stride-1])
				alpha[i+j] += uint8(min(max(x, 0), 255))
			}
		}
	}
}
