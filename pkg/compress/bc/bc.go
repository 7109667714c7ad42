// Package bc encodes and decodes the BCn (DXTn) block compressed texture
// formats one 4×4 block at a time.
//
// BC1 through BC5 are complete. BC6H and BC7 are limited to a single mode
// each (BC6H mode 11, BC7 mode 6): blocks written by this package round trip,
// blocks using any other mode fail to decode with ErrUnsupportedMode.
package bc

import (
	"errors"
	"fmt"
	"math"

	"github.com/jpfielding/gfximage.go/pkg/format"
)

var (
	// ErrUnsupported is returned for formats that are not block compressed.
	ErrUnsupported = errors.New("bc: unsupported format")
	// ErrUnsupportedMode is returned for BC6H/BC7 blocks in a mode this
	// package does not decode.
	ErrUnsupportedMode = errors.New("bc: unsupported block mode")
	// ErrShortBuffer is returned when a block buffer is smaller than the
	// block size of the format.
	ErrShortBuffer = errors.New("bc: short block buffer")
)

// Block holds the 16 texels of a 4×4 block, row-major, as RGBA. Values are
// in the stored colour space: [0,1] for the UNORM formats, half-float range
// for BC6H.
type Block [16][4]float32

// Encode compresses blk into dst, which must hold f.BytesPerBlock() bytes.
func Encode(f format.Format, blk *Block, dst []byte) error {
	if !f.IsCompressed() {
		return fmt.Errorf("%w: %s", ErrUnsupported, f)
	}
	if len(dst) < int(f.BytesPerBlock()) {
		return fmt.Errorf("%w: %d bytes for %s", ErrShortBuffer, len(dst), f)
	}
	switch f {
	case format.BC1RGBUNorm:
		encodeColor(blk, dst[:8], false, false)
	case format.BC1RGBAUNorm:
		encodeColor(blk, dst[:8], true, false)
	case format.BC2UNorm:
		encodeExplicitAlpha(blk, dst[:8])
		encodeColor(blk, dst[8:16], false, true)
	case format.BC3UNorm:
		encodeChannel(blk, 3, dst[:8])
		encodeColor(blk, dst[8:16], false, true)
	case format.BC4UNorm:
		encodeChannel(blk, 0, dst[:8])
	case format.BC5UNorm:
		encodeChannel(blk, 0, dst[:8])
		encodeChannel(blk, 1, dst[8:16])
	case format.BC6HUFloat:
		encodeBC6H(blk, dst[:16])
	case format.BC7UNorm, format.BC7SRGB:
		encodeBC7(blk, dst[:16])
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, f)
	}
	return nil
}

// Decode expands one block of src into blk. Channels a format does not store
// decode as 0, alpha as 1.
func Decode(f format.Format, src []byte, blk *Block) error {
	if !f.IsCompressed() {
		return fmt.Errorf("%w: %s", ErrUnsupported, f)
	}
	if len(src) < int(f.BytesPerBlock()) {
		return fmt.Errorf("%w: %d bytes for %s", ErrShortBuffer, len(src), f)
	}
	for i := range blk {
		blk[i] = [4]float32{0, 0, 0, 1}
	}
	switch f {
	case format.BC1RGBUNorm, format.BC1RGBAUNorm:
		decodeColor(src[:8], blk, false)
	case format.BC2UNorm:
		decodeColor(src[8:16], blk, true)
		decodeExplicitAlpha(src[:8], blk)
	case format.BC3UNorm:
		decodeColor(src[8:16], blk, true)
		decodeChannel(src[:8], blk, 3)
	case format.BC4UNorm:
		decodeChannel(src[:8], blk, 0)
	case format.BC5UNorm:
		decodeChannel(src[:8], blk, 0)
		decodeChannel(src[8:16], blk, 1)
	case format.BC6HUFloat:
		return decodeBC6H(src[:16], blk)
	case format.BC7UNorm, format.BC7SRGB:
		return decodeBC7(src[:16], blk)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, f)
	}
	return nil
}

// fitLine returns the extremes of the points projected on their principal
// axis, considering the first dims channels.
func fitLine(pts [][4]float32, dims int) (lo, hi [4]float32) {
	if len(pts) == 0 {
		return lo, hi
	}
	var mean [4]float64
	for _, p := range pts {
		for c := 0; c < dims; c++ {
			mean[c] += float64(p[c])
		}
	}
	for c := 0; c < dims; c++ {
		mean[c] /= float64(len(pts))
	}
	var cov [4][4]float64
	for _, p := range pts {
		for i := 0; i < dims; i++ {
			di := float64(p[i]) - mean[i]
			for j := 0; j < dims; j++ {
				cov[i][j] += di * (float64(p[j]) - mean[j])
			}
		}
	}
	// power iteration seeded with the column of the widest channel
	widest := 0
	for c := 1; c < dims; c++ {
		if cov[c][c] > cov[widest][widest] {
			widest = c
		}
	}
	var axis [4]float64
	for c := 0; c < dims; c++ {
		axis[c] = cov[c][widest]
	}
	for iter := 0; iter < 8; iter++ {
		var next [4]float64
		var norm float64
		for i := 0; i < dims; i++ {
			for j := 0; j < dims; j++ {
				next[i] += cov[i][j] * axis[j]
			}
			norm += next[i] * next[i]
		}
		if norm < 1e-20 {
			break
		}
		norm = math.Sqrt(norm)
		for i := 0; i < dims; i++ {
			axis[i] = next[i] / norm
		}
	}
	tmin, tmax := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		var t float64
		for c := 0; c < dims; c++ {
			t += (float64(p[c]) - mean[c]) * axis[c]
		}
		tmin = math.Min(tmin, t)
		tmax = math.Max(tmax, t)
	}
	for c := 0; c < dims; c++ {
		lo[c] = float32(mean[c] + tmin*axis[c])
		hi[c] = float32(mean[c] + tmax*axis[c])
	}
	return lo, hi
}

func clamp01(v float32) float32 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func to8(v float32) int {
	return int(clamp01(v)*255 + 0.5)
}

// bits128 is a little-endian 128-bit stream used by BC6H and BC7.
type bits128 struct {
	lo, hi uint64
	pos    uint
}

func (b *bits128) write(v uint64, n uint) {
	for i := uint(0); i < n; i++ {
		bit := (v >> i) & 1
		if b.pos < 64 {
			b.lo |= bit << b.pos
		} else {
			b.hi |= bit << (b.pos - 64)
		}
		b.pos++
	}
}

func (b *bits128) read(n uint) uint64 {
	var v uint64
	for i := uint(0); i < n; i++ {
		var bit uint64
		if b.pos < 64 {
			bit = (b.lo >> b.pos) & 1
		} else {
			bit = (b.hi >> (b.pos - 64)) & 1
		}
		v |= bit << i
		b.pos++
	}
	return v
}

func (b *bits128) put(dst []byte) {
	for i := 0; i < 8; i++ {
		dst[i] = byte(b.lo >> (8 * i))
		dst[8+i] = byte(b.hi >> (8 * i))
	}
}

func load128(src []byte) *bits128 {
	b := &bits128{}
	for i := 0; i < 8; i++ {
		b.lo |= uint64(src[i]) << (8 * i)
		b.hi |= uint64(src[8+i]) << (8 * i)
	}
	return b
}

// weights4 are the 4-bit interpolation weights shared by BC6H and BC7.
var weights4 = [16]int{0, 4, 9, 13, 17, 21, 26, 30, 34, 38, 43, 47, 51, 55, 60, 64}

func interpolate(e0, e1, w int) int {
	return ((64-w)*e0 + w*e1 + 32) >> 6
}
