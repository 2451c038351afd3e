package imgdec

// unzig maps zig-zag order to natural order.
var unzig = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// bitReader reads entropy-coded data MSB first, removing 0xFF00 byte
// stuffing. Once it reaches a marker it supplies zero bits and leaves off
// pointing at the marker.
type bitReader struct {
	b      []byte
	off    int
	acc    uint32 // left aligned
	n      uint
	marker bool
}

func (r *bitReader) fill(need uint) error {
	for r.n < need {
		var c byte
		if !r.marker {
			if r.off >= len(r.b) {
				return errShort
			}
			c = r.b[r.off]
			if c == 0xff {
				if r.off+1 >= len(r.b) {
					return errShort
				}
				if r.b[r.off+1] != 0 {
					r.marker = true
					c = 0
				} else {
					r.off += 2
				}
			} else {
				r.off++
			}
		}
		r.acc |= uint32(c) << (24 - r.n)
		r.n += 8
	}
	return nil
}

func (r *bitReader) bits(n uint) (int32, error) {
	if n == 0 {
		return 0, nil
	}
	if err := r.fill(n); err != nil {
		return 0, err
	}
	v := int32(r.acc >> (32 - n))
	r.acc <<= n
	r.n -= n
	return v, nil
}

func (r *bitReader) bit() (bool, error) {
	v, err := r.bits(1)
	return v != 0, err
}

// receiveExtend reads an s-bit magnitude category value and sign-extends it.
func (r *bitReader) receiveExtend(s uint) (int32, error) {
	v, err := r.bits(s)
	if err != nil || s == 0 {
		return v, err
	}
	if v < 1<<(s-1) {
		v += -1<<s + 1
	}
	return v, nil
}

func (r *bitReader) decode(h *huffman) (byte, error) {
	// Near a truncated end there may be fewer than 16 bits left, so only
	// demand what the lookup table needs first.
	if err := r.fill(lutBits); err != nil {
		return 0, err
	}
	if e := h.lut[r.acc>>(32-lutBits)]; e != 0 {
		l := uint(e >> 8)
		r.acc <<= l
		r.n -= l
		return byte(e), nil
	}
	if err := r.fill(16); err != nil {
		return 0, err
	}
	for l := uint(lutBits + 1); l <= 16; l++ {
		code := int32(r.acc >> (32 - l))
		if code <= h.maxcode[l] {
			r.acc <<= l
			r.n -= l
			return h.vals[h.valptr[l]+code-h.mincode[l]], nil
		}
	}
	return 0, corrupt("bad Huffman code")
}

// reset discards buffered bits so the reader can continue after a marker.
func (r *bitReader) reset() {
	r.acc, r.n, r.marker = 0, 0, false
}

// restart consumes the RSTn marker that ends a restart interval.
func (r *bitReader) restart() error {
	r.reset()
	off, err := nextMarker(r.b, r.off)
	if err != nil {
		return err
	}
	if m := r.b[off+1]; m < rst0Marker || m > rst7Marker {
		return corrupt("expected restart marker, found 0x%02x", m)
	}
	r.off = off + 2
	return nil
}

type scanComponent struct {
	comp   *jpegComponent
	dc, ac *huffman
	pred   int32
}

type scan struct {
	comps          []scanComponent
	ss, se, ah, al int
}

// decodeScan decodes the entropy-coded segment that starts at off and
// returns the offset of the marker that follows it.
func (d *jpegDecoder) decodeScan(s *scan, off int) (int, error) {
	r := &bitReader{b: d.data, off: off}
	d.eobrun = 0

	// A single-component scan is not interleaved: its MCU is one block and
	// it covers only the blocks the component needs.
	mcusX, mcusY := d.mcusX, d.mcusY
	if len(s.comps) == 1 {
		c := s.comps[0].comp
		mcusX = (ceilDiv(d.width*c.h, d.hmax) + 7) / 8
		mcusY = (ceilDiv(d.height*c.v, d.vmax) + 7) / 8
	}

	total := mcusX * mcusY
	for mcu := 0; mcu < total; mcu++ {
		if d.restartInterval > 0 && mcu > 0 && mcu%d.restartInterval == 0 {
			if err := r.restart(); err != nil {
				return 0, err
			}
			for i := range s.comps {
				s.comps[i].pred = 0
			}
			d.eobrun = 0
		}
		mx, my := mcu%mcusX, mcu/mcusX
		if !d.buffered && mx == 0 && my > 0 {
			if err := d.flush(my - 1); err != nil {
				return 0, err
			}
		}
		for i := range s.comps {
			sc := &s.comps[i]
			c := sc.comp
			if len(s.comps) == 1 {
				if err := d.decodeBlock(r, s, sc, mx, my); err != nil {
					return 0, err
				}
				continue
			}
			for v := 0; v < c.v; v++ {
				for h := 0; h < c.h; h++ {
					if err := d.decodeBlock(r, s, sc, mx*c.h+h, my*c.v+v); err != nil {
						return 0, err
					}
				}
			}
		}
	}
	if !d.buffered {
		if err := d.flush(mcusY - 1); err != nil {
			return 0, err
		}
	}
	return nextMarker(d.data, r.off)
}

// nextMarker returns the offset of the first marker at or after off,
// skipping any bytes left in the entropy-coded segment.
func nextMarker(b []byte, off int) (int, error) {
	for ; off+1 < len(b); off++ {
		if b[off] == 0xff && b[off+1] != 0 && b[off+1] != 0xff {
			return off, nil
		}
	}
	return 0, errShort
}

func (d *jpegDecoder) decodeBlock(r *bitReader, s *scan, sc *scanComponent, bx, by int) error {
	c := sc.comp
	b := c.coef
	if b != nil {
		b = b[(by*c.bw+bx)*64:][:64]
	}
	if !d.progressive {
		var blk [64]int32
		if err := d.decodeSequential(r, sc, &blk); err != nil {
			return err
		}
		if b != nil {
			for i := range blk {
				b[i] = int16(blk[i])
			}
			return nil
		}
		q := &d.quant[c.tq]
		for i := range blk {
			blk[i] *= int32(q[i])
		}
		stride := c.bw * 8
		idct(c.pix[(by%c.v)*8*stride+bx*8:], stride, &blk)
		return nil
	}

	switch {
	case s.ss == 0 && s.ah == 0:
		return d.decodeDCFirst(r, s, sc, b)
	case s.ss == 0:
		bit, err := r.bit()
		if bit {
			b[0] |= 1 << uint(s.al)
		}
		return err
	case s.ah == 0:
		return d.decodeACFirst(r, s, sc, b)
	}
	return d.refineAC(r, s, sc, b)
}

func (d *jpegDecoder) decodeSequential(r *bitReader, sc *scanComponent, blk *[64]int32) error {
	t, err := r.decode(sc.dc)
	if err != nil {
		return err
	}
	if t > 16 {
		return corrupt("bad DC difference category %d", t)
	}
	diff, err := r.receiveExtend(uint(t))
	if err != nil {
		return err
	}
	sc.pred += diff
	blk[0] = sc.pred
	for k := 1; k < 64; {
		rs, err := r.decode(sc.ac)
		if err != nil {
			return err
		}
		run, size := int(rs>>4), uint(rs&0x0f)
		if size == 0 {
			if run != 15 {
				break
			}
			k += 16
			continue
		}
		k += run
		if k > 63 {
			return corrupt("too many coefficients")
		}
		v, err := r.receiveExtend(size)
		if err != nil {
			return err
		}
		blk[unzig[k]] = v
		k++
	}
	return nil
}

func (d *jpegDecoder) decodeDCFirst(r *bitReader, s *scan, sc *scanComponent, b []int16) error {
	t, err := r.decode(sc.dc)
	if err != nil {
		return err
	}
	if t > 16 {
		return corrupt("bad DC difference category %d", t)
	}
	diff, err := r.receiveExtend(uint(t))
	if err != nil {
		return err
	}
	sc.pred += diff
	b[0] = int16(sc.pred << uint(s.al))
	return nil
}

func (d *jpegDecoder) decodeACFirst(r *bitReader, s *scan, sc *scanComponent, b []int16) error {
	if d.eobrun > 0 {
		d.eobrun--
		return nil
	}
	for k := s.ss; k <= s.se; {
		rs, err := r.decode(sc.ac)
		if err != nil {
			return err
		}
		run, size := int(rs>>4), uint(rs&0x0f)
		if size == 0 {
			if run != 15 {
				d.eobrun = 1 << uint(run)
				if run > 0 {
					extra, err := r.bits(uint(run))
					if err != nil {
						return err
					}
					d.eobrun += int(extra)
				}
				d.eobrun--
				return nil
			}
			k += 16
			continue
		}
		k += run
		if k > s.se {
			return corrupt("too many coefficients")
		}
		v, err := r.receiveExtend(size)
		if err != nil {
			return err
		}
		b[unzig[k]] = int16(v << uint(s.al))
		k++
	}
	return nil
}

// refineAC adds one bit of precision to the AC coefficients of a block.
func (d *jpegDecoder) refineAC(r *bitReader, s *scan, sc *scanComponent, b []int16) error {
	delta := int16(1) << uint(s.al)
	k := s.ss
	if d.eobrun == 0 {
		for ; k <= s.se; k++ {
			rs, err := r.decode(sc.ac)
			if err != nil {
				return err
			}
			run, size := int(rs>>4), rs&0x0f
			var z int16
			switch size {
			case 0:
				if run != 15 {
					d.eobrun = 1 << uint(run)
					if run > 0 {
						extra, err := r.bits(uint(run))
						if err != nil {
							return err
						}
						d.eobrun += int(extra)
					}
					goto eob
				}
			case 1:
				z = delta
				bit, err := r.bit()
				if err != nil {
					return err
				}
				if !bit {
					z = -z
				}
			default:
				return corrupt("bad refinement code 0x%02x", rs)
			}
			k, err = refineNonZeroes(r, b, k, s.se, run, delta)
			if err != nil {
				return err
			}
			if k > s.se {
				return corrupt("too many coefficients")
			}
			if z != 0 {
				b[unzig[k]] = z
			}
		}
		return nil
	}
eob:
	if d.eobrun > 0 {
		d.eobrun--
		if _, err := refineNonZeroes(r, b, k, s.se, -1, delta); err != nil {
			return err
		}
	}
	return nil
}

// refineNonZeroes refines the nonzero coefficients from k on, stopping at
// the (nz+1)-th zero coefficient. It returns that coefficient's index.
func refineNonZeroes(r *bitReader, b []int16, k, end, nz int, delta int16) (int, error) {
	for ; k <= end; k++ {
		u := unzig[k]
		if b[u] == 0 {
			if nz == 0 {
				break
			}
			nz--
			continue
		}
		bit, err := r.bit()
		if err != nil {
			return 0, err
		}
		if !bit || b[u]&delta != 0 {
			continue
		}
		if b[u] > 0 {
			b[u] += delta
		} else {
			b[u] -= delta
		}
	}
	return k, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
