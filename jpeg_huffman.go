package imgdec

// lutBits is the number of leading bits resolved by a single table lookup.
const lutBits = 9

// huffman is a decoding table for one canonical JPEG Huffman code.
type huffman struct {
	// lut maps the next lutBits bits to length<<8 | value, or 0 when the
	// code is longer than lutBits.
	lut [1 << lutBits]uint16

	// maxcode[l] is the largest code of length l, or -1 if there is none.
	maxcode [17]int32
	mincode [17]int32
	valptr  [17]int32
	vals    [256]byte
	defined bool
}

// build fills h from the DHT code counts per length and symbol values.
func (h *huffman) build(counts *[16]byte, vals []byte) error {
	*h = huffman{}
	copy(h.vals[:], vals)
	code, k := int32(0), int32(0)
	for l := 1; l <= 16; l++ {
		n := int32(counts[l-1])
		if code+n > 1<<uint(l) {
			return corrupt("bad Huffman table")
		}
		h.valptr[l] = k
		h.mincode[l] = code
		h.maxcode[l] = -1
		if n > 0 {
			h.maxcode[l] = code + n - 1
		}
		if l <= lutBits {
			for i := int32(0); i < n; i++ {
				c := code + i
				shift := uint(lutBits - l)
				entry := uint16(l)<<8 | uint16(vals[k+i])
				for j := c << shift; j < (c+1)<<shift; j++ {
					h.lut[j] = entry
				}
			}
		}
		code += n
		k += n
		code <<= 1
	}
	h.defined = true
	return nil
}

// parseDHT reads one DHT segment into the decoder's tables.
func (d *jpegDecoder) parseDHT(seg []byte) error {
	for len(seg) > 0 {
		if len(seg) < 17 {
			return corrupt("short DHT segment")
		}
		tc, th := seg[0]>>4, seg[0]&0x0f
		if tc > 1 || th > 3 {
			return corrupt("bad DHT class %d or destination %d", tc, th)
		}
		var counts [16]byte
		copy(counts[:], seg[1:17])
		n := 0
		for _, c := range counts {
			n += int(c)
		}
		if n == 0 || n > 256 || len(seg) < 17+n {
			return corrupt("DHT with %d symbols", n)
		}
		if err := d.huff[tc][th].build(&counts, seg[17:17+n]); err != nil {
			return err
		}
		seg = seg[17+n:]
	}
	return nil
}
