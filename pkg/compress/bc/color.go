package bc

import "encoding/binary"

// pack565 quantizes an RGB triple in [0,1] to R5G6B5.
func pack565(r, g, b float32) uint16 {
	ri := uint16(clamp01(r)*31 + 0.5)
	gi := uint16(clamp01(g)*63 + 0.5)
	bi := uint16(clamp01(b)*31 + 0.5)
	return ri<<11 | gi<<5 | bi
}

// unpack565 expands R5G6B5 to 8-bit channels by bit replication.
func unpack565(c uint16) [3]int {
	r := int(c>>11) & 0x1f
	g := int(c>>5) & 0x3f
	b := int(c) & 0x1f
	return [3]int{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2}
}

// colorPalette returns the four palette entries of a colour block in 8-bit
// RGB. transparent reports whether entry 3 is the transparent black of the
// three-colour mode.
func colorPalette(c0, c1 uint16, forceFour bool) (pal [4][3]int, transparent bool) {
	a, b := unpack565(c0), unpack565(c1)
	pal[0], pal[1] = a, b
	if c0 > c1 || forceFour {
		for i := 0; i < 3; i++ {
			pal[2][i] = (2*a[i] + b[i]) / 3
			pal[3][i] = (a[i] + 2*b[i]) / 3
		}
		return pal, false
	}
	for i := 0; i < 3; i++ {
		pal[2][i] = (a[i] + b[i]) / 2
	}
	return pal, true
}

// encodeColor writes the 8-byte colour part of BC1/BC2/BC3. With
// punchThrough, texels with alpha below one half select the transparent entry
// of the three-colour mode. forceFour is set for BC2/BC3, whose colour blocks
// always decode in four-colour mode.
func encodeColor(blk *Block, dst []byte, punchThrough, forceFour bool) {
	var opaque [][4]float32
	transparent := false
	for _, t := range blk {
		if punchThrough && t[3] < 0.5 {
			transparent = true
			continue
		}
		opaque = append(opaque, t)
	}
	lo, hi := fitLine(opaque, 3)
	c0 := pack565(hi[0], hi[1], hi[2])
	c1 := pack565(lo[0], lo[1], lo[2])

	threeColor := transparent
	switch {
	case threeColor && c0 > c1:
		c0, c1 = c1, c0
	case !threeColor && !forceFour && c0 < c1:
		c0, c1 = c1, c0
	case !threeColor && !forceFour && c0 == c1:
		// c0 == c1 decodes in three-colour mode; every texel takes entry 0.
		binary.LittleEndian.PutUint16(dst[0:], c0)
		binary.LittleEndian.PutUint16(dst[2:], c1)
		binary.LittleEndian.PutUint32(dst[4:], 0)
		return
	}
	pal, _ := colorPalette(c0, c1, forceFour)
	entries := 4
	if threeColor {
		entries = 3
	}

	var indices uint32
	for i, t := range blk {
		var sel uint32
		if threeColor && t[3] < 0.5 {
			sel = 3
		} else {
			r, g, b := to8(t[0]), to8(t[1]), to8(t[2])
			best := -1
			for e := 0; e < entries; e++ {
				dr, dg, db := r-pal[e][0], g-pal[e][1], b-pal[e][2]
				d := dr*dr + dg*dg + db*db
				if best < 0 || d < best {
					best, sel = d, uint32(e)
				}
			}
		}
		indices |= sel << (2 * i)
	}
	binary.LittleEndian.PutUint16(dst[0:], c0)
	binary.LittleEndian.PutUint16(dst[2:], c1)
	binary.LittleEndian.PutUint32(dst[4:], indices)
}

func decodeColor(src []byte, blk *Block, forceFour bool) {
	c0 := binary.LittleEndian.Uint16(src[0:])
	c1 := binary.LittleEndian.Uint16(src[2:])
	indices := binary.LittleEndian.Uint32(src[4:])
	pal, transparent := colorPalette(c0, c1, forceFour)
	for i := range blk {
		sel := (indices >> (2 * i)) & 3
		p := pal[sel]
		blk[i][0] = float32(p[0]) / 255
		blk[i][1] = float32(p[1]) / 255
		blk[i][2] = float32(p[2]) / 255
		if transparent && sel == 3 {
			blk[i][3] = 0
		}
	}
}

// encodeExplicitAlpha writes the 4-bit per texel alpha of BC2.
func encodeExplicitAlpha(blk *Block, dst []byte) {
	var bits uint64
	for i, t := range blk {
		a := uint64(clamp01(t[3])*15 + 0.5)
		bits |= a << (4 * i)
	}
	binary.LittleEndian.PutUint64(dst, bits)
}

func decodeExplicitAlpha(src []byte, blk *Block) {
	bits := binary.LittleEndian.Uint64(src)
	for i := range blk {
		blk[i][3] = float32((bits>>(4*i))&0xf) / 15
	}
}

// channelPalette returns the eight entries of a BC3 alpha / BC4 block.
func channelPalette(a0, a1 int) (pal [8]int) {
	pal[0], pal[1] = a0, a1
	if a0 > a1 {
		for i := 1; i < 7; i++ {
			pal[i+1] = ((7-i)*a0 + i*a1) / 7
		}
		return pal
	}
	for i := 1; i < 5; i++ {
		pal[i+1] = ((5-i)*a0 + i*a1) / 5
	}
	pal[6], pal[7] = 0, 255
	return pal
}

// encodeChannel writes channel ch of blk as an interpolated single channel
// block (BC3 alpha, BC4, each half of BC5).
func encodeChannel(blk *Block, ch int, dst []byte) {
	lo, hi := 255, 0
	for _, t := range blk {
		v := to8(t[ch])
		lo = min(lo, v)
		hi = max(hi, v)
	}
	dst[0], dst[1] = byte(hi), byte(lo)
	var indices uint64
	if hi != lo {
		pal := channelPalette(hi, lo)
		for i, t := range blk {
			v := to8(t[ch])
			best, sel := -1, 0
			for e, p := range pal {
				d := (v - p) * (v - p)
				if best < 0 || d < best {
					best, sel = d, e
				}
			}
			indices |= uint64(sel) << (3 * i)
		}
	}
	for i := 0; i < 6; i++ {
		dst[2+i] = byte(indices >> (8 * i))
	}
}

func decodeChannel(src []byte, blk *Block, ch int) {
	pal := channelPalette(int(src[0]), int(src[1]))
	var indices uint64
	for i := 0; i < 6; i++ {
		indices |= uint64(src[2+i]) << (8 * i)
	}
	for i := range blk {
		blk[i][ch] = float32(pal[(indices>>(3*i))&7]) / 255
	}
}
