package bc

import (
	"fmt"
	"math"

	"github.com/x448/float16"
)

// BC6H mode 11: one region, 10-bit RGB endpoints without transform and 4-bit
// indices. Unsigned half floats only.
const (
	bc6hMode     = 0x03
	bc6hModeBits = 5
	maxHalf      = 65504
)

func halfBits(v float32) int {
	if !(v > 0) {
		return 0
	}
	return int(float16.Fromfloat32(min(v, maxHalf)).Bits())
}

func unquantize10(q int) int {
	switch q {
	case 0:
		return 0
	case 1023:
		return 0xffff
	}
	return ((q << 16) + 0x8000) >> 10
}

// quantize10 inverts unquantize10 followed by the final 31/64 scale.
func quantize10(h float32) int {
	u := float64(h) * 64 / 31
	q := int(math.Round((u - 32) / 64))
	return max(0, min(1023, q))
}

func bc6hPalette(q0, q1 [3]int) (pal [16][3]int) {
	for c := 0; c < 3; c++ {
		e0, e1 := unquantize10(q0[c]), unquantize10(q1[c])
		for i, w := range weights4 {
			pal[i][c] = (interpolate(e0, e1, w) * 31) >> 6
		}
	}
	return pal
}

func encodeBC6H(blk *Block, dst []byte) {
	// endpoints are fitted on the half-float bit patterns, the space the
	// hardware interpolates in
	var hs [16][4]float32
	for i, t := range blk {
		for c := 0; c < 3; c++ {
			hs[i][c] = float32(halfBits(t[c]))
		}
	}
	lo, hi := fitLine(hs[:], 3)
	var q0, q1 [3]int
	for c := 0; c < 3; c++ {
		q0[c] = quantize10(lo[c])
		q1[c] = quantize10(hi[c])
	}
	pal := bc6hPalette(q0, q1)

	var idx [16]int
	for i, h := range hs {
		best := -1.0
		for e := range pal {
			var d float64
			for c := 0; c < 3; c++ {
				dc := float64(h[c]) - float64(pal[e][c])
				d += dc * dc
			}
			if best < 0 || d < best {
				best, idx[i] = d, e
			}
		}
	}
	if idx[0] >= 8 {
		q0, q1 = q1, q0
		for i := range idx {
			idx[i] = 15 - idx[i]
		}
	}

	var b bits128
	b.write(bc6hMode, bc6hModeBits)
	for c := 0; c < 3; c++ {
		b.write(uint64(q0[c]), 10)
	}
	for c := 0; c < 3; c++ {
		b.write(uint64(q1[c]), 10)
	}
	b.write(uint64(idx[0]), 3)
	for _, v := range idx[1:] {
		b.write(uint64(v), 4)
	}
	b.put(dst)
}

func decodeBC6H(src []byte, blk *Block) error {
	b := load128(src)
	mode := b.read(2)
	if mode > 1 {
		mode |= b.read(3) << 2
	}
	if mode != bc6hMode {
		return fmt.Errorf("%w: BC6H mode bits %#x", ErrUnsupportedMode, mode)
	}
	var q0, q1 [3]int
	for c := 0; c < 3; c++ {
		q0[c] = int(b.read(10))
	}
	for c := 0; c < 3; c++ {
		q1[c] = int(b.read(10))
	}
	pal := bc6hPalette(q0, q1)
	for i := range blk {
		n := uint(4)
		if i == 0 {
			n = 3
		}
		e := pal[b.read(n)]
		for c := 0; c < 3; c++ {
			blk[i][c] = float16.Frombits(uint16(e[c])).Float32()
		}
		blk[i][3] = 1
	}
	return nil
}
