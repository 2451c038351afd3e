package imgdec

// JPEG markers.
const (
	sof0Marker = 0xc0 // baseline
	sof1Marker = 0xc1 // extended sequential, Huffman
	sof2Marker = 0xc2 // progressive, Huffman
	sof3Marker = 0xc3 // lossless
	dhtMarker  = 0xc4
	dacMarker  = 0xcc
	rst0Marker = 0xd0
	rst7Marker = 0xd7
	soiMarker  = 0xd8
	eoiMarker  = 0xd9
	sosMarker  = 0xda
	dqtMarker  = 0xdb
	dnlMarker  = 0xdc
	driMarker  = 0xdd
	app14      = 0xee
	temMarker  = 0x01
)

const (
	maxBlocksPerMCU = 10
	adobeTransformN = 0 // Adobe transform 0: RGB or CMYK, no color transform
)

type jpegComponent struct {
	id   byte
	h, v int
	tq   byte

	// bw x bh blocks, padded to whole MCUs.
	bw, bh int
	// pix holds one MCU row of samples, bw*8 wide.
	pix []byte
	// coef holds every block when the image is buffered.
	coef []int16
}

type jpegDecoder struct {
	data []byte

	width, height int
	comps         []jpegComponent
	hmax, vmax    int
	mcusX, mcusY  int
	progressive   bool
	// buffered images keep all coefficients until EOI; others are
	// converted one MCU row at a time.
	buffered bool
	band     *RawImage
	out      *RawImage

	quant           [4][64]uint16 // natural order
	quantDefined    [4]bool
	huff            [2][4]huffman // [DC, AC][destination]
	restartInterval int
	eobrun          int

	adobe          bool
	adobeTransform byte
	scans          int
}

// segment reads a marker segment's length-prefixed payload.
func segment(c *cursor) ([]byte, error) {
	n, err := c.u16be()
	if err != nil {
		return nil, err
	}
	if n < 2 {
		return nil, corrupt("segment length %d", n)
	}
	return c.next(int(n) - 2)
}

// readMarker skips fill bytes and returns the next marker code.
func readMarker(c *cursor) (byte, error) {
	b, err := c.u8()
	if err != nil {
		return 0, err
	}
	if b != 0xff {
		return 0, corrupt("expected marker, found 0x%02x", b)
	}
	for {
		m, err := c.u8()
		if err != nil {
			return 0, err
		}
		if m != 0xff {
			return m, nil
		}
	}
}

func (d *jpegDecoder) parseSOF(seg []byte, marker byte) error {
	if d.comps != nil {
		return corrupt("multiple frames")
	}
	if len(seg) < 6 {
		return corrupt("short SOF segment")
	}
	if seg[0] != 8 {
		return unsupported("%d-bit sample precision", seg[0])
	}
	d.height = int(seg[1])<<8 | int(seg[2])
	d.width = int(seg[3])<<8 | int(seg[4])
	if d.height == 0 {
		return unsupported("height defined by DNL")
	}
	if d.width == 0 {
		return corrupt("zero width")
	}
	n := int(seg[5])
	switch n {
	case 1, 3, 4:
	default:
		return unsupported("%d color components", n)
	}
	if len(seg) != 6+3*n {
		return corrupt("SOF length %d for %d components", len(seg), n)
	}
	d.progressive = marker == sof2Marker
	d.comps = make([]jpegComponent, n)
	d.hmax, d.vmax = 1, 1
	for i := range d.comps {
		p := seg[6+3*i:]
		c := &d.comps[i]
		c.id, c.h, c.v, c.tq = p[0], int(p[1]>>4), int(p[1]&0x0f), p[2]
		if c.h < 1 || c.h > 4 || c.v < 1 || c.v > 4 {
			return corrupt("bad sampling factors %dx%d", c.h, c.v)
		}
		if c.tq > 3 {
			return corrupt("bad quantization table %d", c.tq)
		}
		for j := 0; j < i; j++ {
			if d.comps[j].id == c.id {
				return corrupt("duplicate component id %d", c.id)
			}
		}
		if n == 1 {
			// A lone component is never interleaved.
			c.h, c.v = 1, 1
		}
		d.hmax, d.vmax = max(d.hmax, c.h), max(d.vmax, c.v)
	}
	for _, c := range d.comps {
		if d.hmax%c.h != 0 || d.vmax%c.v != 0 {
			return unsupported("sampling factors %dx%d under %dx%d", c.h, c.v, d.hmax, d.vmax)
		}
	}
	return nil
}

// layout computes the MCU grid and each component's block dimensions.
func (d *jpegDecoder) layout() {
	d.mcusX = ceilDiv(d.width, 8*d.hmax)
	d.mcusY = ceilDiv(d.height, 8*d.vmax)
	for i := range d.comps {
		c := &d.comps[i]
		c.bw, c.bh = d.mcusX*c.h, d.mcusY*c.v
	}
}

// start allocates pixel storage at the first scan. A scan that carries
// every component is converted as its MCU rows complete; progressive and
// non-interleaved images keep their coefficients, which count against
// the output budget.
func (d *jpegDecoder) start(s *scan, lim Limits) error {
	d.buffered = d.progressive || len(s.comps) != len(d.comps)
	if d.buffered {
		var n int64
		for _, c := range d.comps {
			n += int64(c.bw*c.bh) * 64 * 2
		}
		if err := lim.checkWorking(d.width, d.height, n); err != nil {
			return err
		}
	}
	for i := range d.comps {
		c := &d.comps[i]
		c.pix = make([]byte, c.bw*8*c.v*8)
		if d.buffered {
			c.coef = make([]int16, c.bw*c.bh*64)
		}
	}
	d.band = d.bandImage()
	d.out = newCanvas(d.width, d.height)
	return nil
}

func (d *jpegDecoder) parseDQT(seg []byte) error {
	for len(seg) > 0 {
		pq, tq := seg[0]>>4, seg[0]&0x0f
		if tq > 3 {
			return corrupt("bad DQT destination %d", tq)
		}
		size := 64
		if pq == 1 {
			size = 128
		} else if pq != 0 {
			return corrupt("bad DQT precision %d", pq)
		}
		if len(seg) < 1+size {
			return corrupt("short DQT segment")
		}
		q := &d.quant[tq]
		for k := 0; k < 64; k++ {
			if pq == 0 {
				q[unzig[k]] = uint16(seg[1+k])
			} else {
				q[unzig[k]] = uint16(seg[1+2*k])<<8 | uint16(seg[2+2*k])
			}
		}
		d.quantDefined[tq] = true
		seg = seg[1+size:]
	}
	return nil
}

func (d *jpegDecoder) parseDRI(seg []byte) error {
	if len(seg) != 2 {
		return corrupt("DRI length %d", len(seg))
	}
	d.restartInterval = int(seg[0])<<8 | int(seg[1])
	return nil
}

func (d *jpegDecoder) parseAPP14(seg []byte) {
	if len(seg) >= 12 && string(seg[:5]) == "Adobe" {
		d.adobe = true
		d.adobeTransform = seg[11]
	}
}

func (d *jpegDecoder) parseSOS(seg []byte) (*scan, error) {
	if d.comps == nil {
		return nil, corrupt("SOS before SOF")
	}
	if len(seg) < 1 {
		return nil, corrupt("short SOS segment")
	}
	n := int(seg[0])
	if n < 1 || n > 4 || len(seg) != 4+2*n {
		return nil, corrupt("SOS length %d for %d components", len(seg), n)
	}
	s := &scan{comps: make([]scanComponent, n)}
	blocks := 0
	for i := range s.comps {
		id, tables := seg[1+2*i], seg[2+2*i]
		var comp *jpegComponent
		for j := range d.comps {
			if d.comps[j].id == id {
				comp = &d.comps[j]
			}
		}
		if comp == nil {
			return nil, corrupt("unknown component id %d in scan", id)
		}
		for _, prev := range s.comps[:i] {
			if prev.comp == comp {
				return nil, corrupt("component %d repeated in scan", id)
			}
		}
		td, ta := tables>>4, tables&0x0f
		if td > 3 || ta > 3 {
			return nil, corrupt("bad Huffman table selector 0x%02x", tables)
		}
		s.comps[i] = scanComponent{comp: comp, dc: &d.huff[0][td], ac: &d.huff[1][ta]}
		blocks += comp.h * comp.v
	}
	if n > 1 && blocks > maxBlocksPerMCU {
		return nil, corrupt("%d blocks per MCU", blocks)
	}
	p := seg[1+2*n:]
	s.ss, s.se, s.ah, s.al = int(p[0]), int(p[1]), int(p[2]>>4), int(p[2]&0x0f)

	if d.progressive {
		if s.ss == 0 && s.se != 0 {
			return nil, corrupt("DC scan with spectral end %d", s.se)
		}
		if s.ss > s.se || s.se > 63 {
			return nil, corrupt("bad spectral selection %d..%d", s.ss, s.se)
		}
		if s.ss > 0 && n != 1 {
			return nil, corrupt("interleaved AC scan")
		}
		if s.al > 13 || (s.ah != 0 && s.ah != s.al+1) {
			return nil, corrupt("bad successive approximation %d/%d", s.ah, s.al)
		}
	} else {
		s.ss, s.se, s.ah, s.al = 0, 63, 0, 0
	}

	// Only the tables a scan actually reads need to exist.
	for _, sc := range s.comps {
		if s.ss == 0 && s.ah == 0 && !sc.dc.defined {
			return nil, corrupt("undefined DC Huffman table")
		}
		if s.se > 0 && !sc.ac.defined {
			return nil, corrupt("undefined AC Huffman table")
		}
		if !d.progressive && !d.quantDefined[sc.comp.tq] {
			return nil, corrupt("undefined quantization table %d", sc.comp.tq)
		}
	}
	return s, nil
}

// finish runs the deferred IDCT of a buffered image, one MCU row at a time.
func (d *jpegDecoder) finish() error {
	if !d.buffered {
		return nil
	}
	for _, c := range d.comps {
		if !d.quantDefined[c.tq] {
			return corrupt("undefined quantization table %d", c.tq)
		}
	}
	var blk [64]int32
	for my := 0; my < d.mcusY; my++ {
		for i := range d.comps {
			c := &d.comps[i]
			q := &d.quant[c.tq]
			stride := c.bw * 8
			for v := 0; v < c.v; v++ {
				by := my*c.v + v
				for bx := 0; bx < c.bw; bx++ {
					coef := c.coef[(by*c.bw+bx)*64:][:64]
					for k := range blk {
						blk[k] = int32(coef[k]) * int32(q[k])
					}
					idct(c.pix[v*8*stride+bx*8:], stride, &blk)
				}
			}
		}
		if err := d.flush(my); err != nil {
			return err
		}
	}
	return nil
}

// flush converts the MCU row my, held in the component bands, into the
// RGBA canvas.
func (d *jpegDecoder) flush(my int) error {
	y0 := my * 8 * d.vmax
	y1 := min(y0+8*d.vmax, d.height)
	for y := y0; y < y1; y++ {
		if err := d.band.convertRow(d.out.row(y, 0, d.width), y-y0); err != nil {
			return err
		}
	}
	return nil
}

// bandImage describes the component bands in their native layout.
func (d *jpegDecoder) bandImage() *RawImage {
	if len(d.comps) == 1 {
		c := &d.comps[0]
		raw := newRaw(d.width, d.height, LayoutGray)
		raw.Pix, raw.Stride = c.pix, c.bw*8
		return raw
	}
	var layout Layout
	switch len(d.comps) {
	case 3:
		layout = LayoutYCbCr
		isRGB := d.comps[0].id == 'R' && d.comps[1].id == 'G' && d.comps[2].id == 'B'
		if d.adobe {
			isRGB = d.adobeTransform == adobeTransformN
		}
		if isRGB {
			layout = LayoutRGBPlanar
		}
	case 4:
		layout = LayoutCMYK
		if d.adobe && d.adobeTransform != adobeTransformN {
			layout = LayoutYCCK
		}
	}
	raw := newRaw(d.width, d.height, layout)
	for i := range d.comps {
		c := &d.comps[i]
		raw.Planes = append(raw.Planes, Plane{
			Pix:    c.pix,
			Stride: c.bw * 8,
			Dx:     d.hmax / c.h,
			Dy:     d.vmax / c.v,
		})
	}
	return raw
}

func decodeJPEG(data []byte, opts *Options) (*RawImage, error) {
	c := &cursor{b: data}
	if m, err := readMarker(c); err != nil {
		return nil, err
	} else if m != soiMarker {
		return nil, corrupt("missing SOI marker")
	}
	d := &jpegDecoder{data: data}
	for {
		m, err := readMarker(c)
		if err != nil {
			return nil, err
		}
		switch {
		case m == eoiMarker:
			if d.scans == 0 {
				return nil, corrupt("no image data")
			}
			if err := d.finish(); err != nil {
				return nil, err
			}
			return d.out, nil
		case m == temMarker || (m >= rst0Marker && m <= rst7Marker):
			// Standalone markers without a payload.
			continue
		}

		seg, err := segment(c)
		if err != nil {
			return nil, err
		}
		switch {
		case m == sof0Marker || m == sof1Marker || m == sof2Marker:
			if err := d.parseSOF(seg, m); err != nil {
				return nil, err
			}
			if err := opts.Limits.check(d.width, d.height); err != nil {
				return nil, err
			}
			d.layout()
		case m == sof3Marker || (m >= 0xc5 && m <= 0xcf && m != dhtMarker && m != 0xc8 && m != dacMarker):
			return nil, unsupported("SOF%d frames", m-sof0Marker)
		case m == dacMarker:
			return nil, unsupported("arithmetic coding")
		case m == dhtMarker:
			err = d.parseDHT(seg)
		case m == dqtMarker:
			err = d.parseDQT(seg)
		case m == driMarker:
			err = d.parseDRI(seg)
		case m == dnlMarker:
			return nil, unsupported("DNL marker")
		case m == app14:
			d.parseAPP14(seg)
		case m == sosMarker:
			var s *scan
			if s, err = d.parseSOS(seg); err != nil {
				return nil, err
			}
			if d.scans == 0 {
				err = d.start(s, opts.Limits)
			} else if !d.buffered && len(s.comps) != len(d.comps) {
				err = corrupt("scan with %d of %d components after an interleaved scan", len(s.comps), len(d.comps))
			}
			if err != nil {
				return nil, err
			}
			d.scans++
			var next int
			if next, err = d.decodeScan(s, c.off); err != nil {
				return nil, err
			}
			c.off = next
		}
		// APPn, COM and reserved markers are skipped.
		if err != nil {
			return nil, err
		}
	}
}

// sizeJPEG walks the marker segments up to the first frame header.
func sizeJPEG(data []byte) (Size, error) {
	c := &cursor{b: data}
	if m, err := readMarker(c); err != nil {
		return Size{}, err
	} else if m != soiMarker {
		return Size{}, corrupt("missing SOI marker")
	}
	for {
		m, err := readMarker(c)
		if err != nil {
			return Size{}, err
		}
		switch {
		case m == eoiMarker || m == sosMarker:
			return Size{}, corrupt("no frame header")
		case m == temMarker || (m >= rst0Marker && m <= rst7Marker):
			continue
		}
		seg, err := segment(c)
		if err != nil {
			return Size{}, err
		}
		if m >= sof0Marker && m <= 0xcf && m != dhtMarker && m != 0xc8 && m != dacMarker {
			if len(seg) < 5 {
				return Size{}, corrupt("short SOF segment")
			}
			return Size{
				Width:  int(seg[3])<<8 | int(seg[4]),
				Height: int(seg[1])<<8 | int(seg[2]),
			}, nil
		}
	}
}
