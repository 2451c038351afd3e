package imgdec

import "math"

// idctCos[x][u] is C(u)/2 * cos((2x+1)uπ/16), C(0) = 1/√2, C(u) = 1.
var idctCos = func() (t [8][8]float32) {
	for x := 0; x < 8; x++ {
		for u := 0; u < 8; u++ {
			c := 1.0
			if u == 0 {
				c = 1 / math.Sqrt2
			}
			t[x][u] = float32(c / 2 * math.Cos(float64(2*x+1)*float64(u)*math.Pi/16))
		}
	}
	return t
}()

// idct computes the inverse DCT of the dequantized block blk, in natural
// order, and writes level-shifted samples into an 8x8 area of dst.
func idct(dst []byte, stride int, blk *[64]int32) {
	var tmp [64]float32
	for y := 0; y < 8; y++ {
		row := blk[y*8 : y*8+8]
		if row[1]|row[2]|row[3]|row[4]|row[5]|row[6]|row[7] == 0 {
			dc := float32(row[0]) * idctCos[0][0]
			for x := 0; x < 8; x++ {
				tmp[y*8+x] = dc
			}
			continue
		}
		for x := 0; x < 8; x++ {
			var sum float32
			for u := 0; u < 8; u++ {
				sum += idctCos[x][u] * float32(row[u])
			}
			tmp[y*8+x] = sum
		}
	}
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			var sum float32
			for v := 0; v < 8; v++ {
				sum += idctCos[y][v] * tmp[v*8+x]
			}
			dst[y*stride+x] = clampSample(sum + 128)
		}
	}
}

func clampSample(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v + 0.5)
}
