package bc

import "fmt"

// BC7 mode 6: one subset, RGBA 7.7.7.7 endpoints with a unique p-bit each and
// 4-bit indices.
const bc7Mode = 6

// quantize7 picks the 7-bit endpoint and p-bit closest to the 8-bit colour e.
func quantize7(e [4]float32) (q [4]int, p int) {
	bestErr := -1
	for pbit := 0; pbit < 2; pbit++ {
		var cand [4]int
		err := 0
		for c := 0; c < 4; c++ {
			v := to8(e[c])
			qc := (v - pbit + 1) / 2
			qc = max(0, min(127, qc))
			d := v - (qc<<1 | pbit)
			cand[c] = qc
			err += d * d
		}
		if bestErr < 0 || err < bestErr {
			bestErr, q, p = err, cand, pbit
		}
	}
	return q, p
}

func bc7Palette(q0, q1 [4]int, p0, p1 int) (pal [16][4]int) {
	for c := 0; c < 4; c++ {
		e0, e1 := q0[c]<<1|p0, q1[c]<<1|p1
		for i, w := range weights4 {
			pal[i][c] = interpolate(e0, e1, w)
		}
	}
	return pal
}

func encodeBC7(blk *Block, dst []byte) {
	lo, hi := fitLine(blk[:], 4)
	q0, p0 := quantize7(lo)
	q1, p1 := quantize7(hi)
	pal := bc7Palette(q0, q1, p0, p1)

	var idx [16]int
	for i, t := range blk {
		best := -1
		for e := range pal {
			d := 0
			for c := 0; c < 4; c++ {
				dc := to8(t[c]) - pal[e][c]
				d += dc * dc
			}
			if best < 0 || d < best {
				best, idx[i] = d, e
			}
		}
	}
	// the anchor index is stored without its high bit
	if idx[0] >= 8 {
		q0, q1 = q1, q0
		p0, p1 = p1, p0
		for i := range idx {
			idx[i] = 15 - idx[i]
		}
	}

	var b bits128
	b.write(1<<bc7Mode, bc7Mode+1)
	for c := 0; c < 4; c++ {
		b.write(uint64(q0[c]), 7)
		b.write(uint64(q1[c]), 7)
	}
	b.write(uint64(p0), 1)
	b.write(uint64(p1), 1)
	b.write(uint64(idx[0]), 3)
	for _, v := range idx[1:] {
		b.write(uint64(v), 4)
	}
	b.put(dst)
}

func decodeBC7(src []byte, blk *Block) error {
	mode := -1
	for i := 0; i < 8; i++ {
		if src[0]&(1<<i) != 0 {
			mode = i
			break
		}
	}
	if mode != bc7Mode {
		return fmt.Errorf("%w: BC7 mode %d", ErrUnsupportedMode, mode)
	}
	b := load128(src)
	b.read(bc7Mode + 1)
	var q0, q1 [4]int
	for c := 0; c < 4; c++ {
		q0[c] = int(b.read(7))
		q1[c] = int(b.read(7))
	}
	p0, p1 := int(b.read(1)), int(b.read(1))
	pal := bc7Palette(q0, q1, p0, p1)
	for i := range blk {
		n := uint(4)
		if i == 0 {
			n = 3
		}
		e := pal[b.read(n)]
		for c := 0; c < 4; c++ {
			blk[i][c] = float32(e[c]) / 255
		}
	}
	return nil
}
