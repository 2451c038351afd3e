package imgdec

// PNG scanline filter types.
const (
	ftNone = iota
	ftSub
	ftUp
	ftAverage
	ftPaeth
)

// unfilter reverses the filter applied to cur in place. prev is the
// previous, already unfiltered scanline (all zeros for the first row) and
// bpp the number of bytes per complete pixel, at least 1. Additions wrap
// modulo 256.
func unfilter(ft byte, cur, prev []byte, bpp int) error {
	switch ft {
	case ftNone:
	case ftSub:
		for i := bpp; i < len(cur); i++ {
			cur[i] += cur[i-bpp]
		}
	case ftUp:
		for i, p := range prev[:len(cur)] {
			cur[i] += p
		}
	case ftAverage:
		for i := 0; i < bpp && i < len(cur); i++ {
			cur[i] += prev[i] / 2
		}
		for i := bpp; i < len(cur); i++ {
			cur[i] += byte((int(cur[i-bpp]) + int(prev[i])) / 2)
		}
	case ftPaeth:
		for i := 0; i < bpp && i < len(cur); i++ {
			cur[i] += prev[i]
		}
		for i := bpp; i < len(cur); i++ {
			cur[i] += paeth(cur[i-bpp], prev[i], prev[i-bpp])
		}
	default:
		return corrupt("bad filter type %d", ft)
	}
	return nil
}

// paeth returns whichever of a (left), b (up) or c (up-left) is closest to
// a + b - c, preferring a then b on ties.
func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// adam7 lists the interlace passes as x offset, y offset, x step, y step.
var adam7 = [7][4]int{
	{0, 0, 8, 8},
	{4, 0, 8, 8},
	{0, 4, 4, 8},
	{2, 0, 4, 4},
	{0, 2, 2, 4},
	{1, 0, 2, 2},
	{0, 1, 1, 2},
}

// passSize returns the size of the reduced image of an Adam7 pass.
func passSize(pass, width, height int) (int, int) {
	p := adam7[pass]
	return (width - p[0] + p[2] - 1) / p[2], (height - p[1] + p[3] - 1) / p[3]
}
