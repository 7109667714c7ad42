package gfx

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jpfielding/gfximage.go/pkg/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var headerCmp = cmp.AllowUnexported(Header{})

func TestNewHeaderValidation(t *testing.T) {
	tests := []struct {
		name       string
		w, h, d, s uint32
		f          format.Format
		wantErr    bool
	}{
		{"2D", 4, 4, 1, 1, format.R8G8B8A8UNorm, false},
		{"3DArray", 4, 4, 4, 3, format.R32SFloat, false},
		{"ZeroWidth", 0, 4, 1, 1, format.R8UNorm, true},
		{"ZeroDepth", 4, 4, 0, 1, format.R8UNorm, true},
		{"ZeroSlices", 4, 4, 1, 0, format.R8UNorm, true},
		{"UndefinedFormat", 4, 4, 1, 1, format.Undefined, true},
		{"OddBlockImage", 5, 3, 1, 1, format.BC1RGBUNorm, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHeader(tt.w, tt.h, tt.d, tt.s, tt.f)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidShape)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateRejectsOverflow(t *testing.T) {
	tests := []struct {
		name       string
		w, h, d, s uint32
		f          format.Format
	}{
		{"PixelCountWraps", 65536, 65536, 65536, 65536, format.R8UNorm},
		{"ByteCountWraps", 65536, 65536, 65536, 4096, format.R32G32B32A32SFloat},
		{"ByteCountAboveLimit", 65536, 65536, 65536, 32768, format.R8UNorm},
		{"MaxExtents", ^uint32(0), ^uint32(0), ^uint32(0), ^uint32(0), format.BC7UNorm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHeader(tt.w, tt.h, tt.d, tt.s, tt.f)
			assert.ErrorIs(t, err, ErrInvalidShape)
			assert.ErrorIs(t, err, ErrAllocation)
		})
	}
}

func TestWideBlockHeader(t *testing.T) {
	const w = ^uint32(0)
	h, err := NewHeader(w, 4, 1, 1, format.BC1RGBUNorm)
	require.NoError(t, err)
	assert.Equal(t, uint64(w)*4, h.PixelCount())
	assert.Equal(t, uint64(8)<<30, h.ByteCountPerRow())
	assert.Equal(t, uint64(8)<<30, h.ByteCount())

	// the largest shapes still accepted report exact sizes
	h, err = NewHeader(65536, 65536, 65536, 16384, format.R8UNorm)
	require.NoError(t, err)
	assert.Equal(t, uint64(1)<<48, h.ByteCountPerPage())
	assert.Equal(t, uint64(1)<<62, h.ByteCount())
	assert.Greater(t, h.BytesRequiredForMipMaps(), h.ByteCount())
}

func TestCubemapHeader(t *testing.T) {
	h, err := NewCubemapHeader(16, 16, 2, format.R8G8B8A8UNorm)
	require.NoError(t, err)
	assert.Equal(t, uint32(12), h.Slices())
	assert.True(t, h.IsCubemap())
	assert.True(t, h.IsArray())
	assert.Equal(t, FlagCubemap|FlagHeaderOnly, h.Flags())
}

func TestAddressingCounts(t *testing.T) {
	h, err := NewHeader(2, 2, 1, 1, format.R8G8B8A8UNorm)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), h.PixelCount())
	assert.Equal(t, uint64(2), h.PixelCountPerRow())
	idx, err := h.CalculateIndex(1, 1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), idx)

	_, err = h.CalculateIndex(2, 0, 0, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = h.CalculateIndex(0, 0, 0, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestCalculateIndexVolumeArray(t *testing.T) {
	h, err := NewHeader(3, 4, 5, 2, format.R8UNorm)
	require.NoError(t, err)
	idx, err := h.CalculateIndex(2, 3, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2+3*3+4*3*4+1*3*4*5), idx)
	assert.Equal(t, h.PixelCount()-1, idx)

	x, y, z, s, err := h.Coordinates(idx)
	require.NoError(t, err)
	assert.Equal(t, [4]uint32{2, 3, 4, 1}, [4]uint32{x, y, z, s})

	_, _, _, _, err = h.Coordinates(h.PixelCount())
	assert.ErrorIs(t, err, ErrOutOfRange)

	assert.Equal(t, uint64(12), h.PixelCountPerSlice())
	assert.Equal(t, uint64(60), h.PixelCountPerPage())
}

func TestByteCounts(t *testing.T) {
	tests := []struct {
		name       string
		w, h, d, s uint32
		f          format.Format
		want       uint64
	}{
		{"RGBA8", 4, 4, 1, 1, format.R8G8B8A8UNorm, 64},
		{"RGB32F array", 2, 2, 1, 3, format.R32G32B32SFloat, 2 * 2 * 12 * 3},
		{"R16 volume", 3, 3, 3, 1, format.R16UNorm, 54},
		{"B5G6R5", 5, 1, 1, 1, format.B5G6R5UNorm, 10},
		{"BC1 8x8", 8, 8, 1, 1, format.BC1RGBUNorm, 4 * 8},
		{"BC3 8x8", 8, 8, 1, 1, format.BC3UNorm, 4 * 16},
		{"BC7 5x5 rounds up", 5, 5, 1, 1, format.BC7UNorm, 4 * 16},
		{"BC1 1x1", 1, 1, 1, 2, format.BC1RGBUNorm, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHeader(tt.w, tt.h, tt.d, tt.s, tt.f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, h.ByteCount())
			if !tt.f.IsCompressed() {
				assert.Equal(t, h.PixelCount()*uint64(tt.f.BytesPerBlock()), h.ByteCount())
			}
		})
	}
}

func TestNextAndMipCounts(t *testing.T) {
	h, err := NewHeader(16, 4, 1, 2, format.R8G8B8A8UNorm)
	require.NoError(t, err)
	assert.Equal(t, 5, h.MipMapLevelCount())

	next := h.Next()
	want := Header{width: 8, height: 2, depth: 1, slices: 2, format: format.R8G8B8A8UNorm}
	assert.Empty(t, cmp.Diff(want, next, headerCmp))

	last := h
	for i := 1; i < h.MipMapLevelCount(); i++ {
		last = last.Next()
	}
	w, ht, d, s := last.Dimensions()
	assert.Equal(t, [4]uint32{1, 1, 1, 2}, [4]uint32{w, ht, d, s})

	// 16x4 + 8x2 + 4x1 + 2x1 + 1x1 pixels, 2 slices, 4 bytes each
	assert.Equal(t, uint64((64+16+4+2+1)*2*4), h.BytesRequiredForMipMaps())
}

func TestShapePredicates(t *testing.T) {
	one, _ := NewHeader(8, 1, 1, 1, format.R8UNorm)
	two, _ := NewHeader(8, 8, 1, 1, format.R8UNorm)
	three, _ := NewHeader(8, 8, 8, 1, format.R8UNorm)
	assert.True(t, one.Is1D())
	assert.False(t, one.Is2D())
	assert.True(t, two.Is2D())
	assert.True(t, three.Is3D())
	assert.False(t, three.IsArray())
	assert.Equal(t, "8x8x8[1] R8_UNORM", three.String())
}
