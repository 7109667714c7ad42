package gfx

import (
	"testing"

	"github.com/jpfielding/gfximage.go/pkg/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetScenario(t *testing.T) {
	img, err := Create2D(4, 4, format.R8G8B8A8UNorm)
	require.NoError(t, err)
	defer img.Destroy()

	require.NoError(t, img.SetPixelAt(5, Color{R: 1, G: 0, B: 0, A: 1}))
	c, err := img.GetPixelAt(5)
	require.NoError(t, err)
	assert.Equal(t, Color{R: 1, G: 0, B: 0, A: 1}, c)

	x, y, _, _, err := img.Coordinates(5)
	require.NoError(t, err)
	same, err := img.PixelAt(x, y, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, c, same)
}

func TestRoundTripLaw(t *testing.T) {
	in := Color{R: 0.25, G: 0.5, B: 0.75, A: 0.125}
	tests := []struct {
		f     format.Format
		want  Color
		delta float64
	}{
		{format.R8UNorm, Color{R: 0.25, A: 1}, 1.0 / 255},
		{format.R8G8UNorm, Color{R: 0.25, G: 0.5, A: 1}, 1.0 / 255},
		{format.R8G8B8UNorm, Color{R: 0.25, G: 0.5, B: 0.75, A: 1}, 1.0 / 255},
		{format.B8G8R8UNorm, Color{R: 0.25, G: 0.5, B: 0.75, A: 1}, 1.0 / 255},
		{format.R8G8B8A8UNorm, in, 1.0 / 255},
		{format.B8G8R8A8UNorm, in, 1.0 / 255},
		{format.R8G8B8A8SRGB, in, 0.01},
		{format.B8G8R8A8SRGB, in, 0.01},
		{format.R8G8B8A8SNorm, in, 1.0 / 127},
		{format.R16UNorm, Color{R: 0.25, A: 1}, 1.0 / 65535},
		{format.R16G16UNorm, Color{R: 0.25, G: 0.5, A: 1}, 1.0 / 65535},
		{format.R16G16B16A16UNorm, in, 1.0 / 65535},
		{format.R16SFloat, Color{R: 0.25, A: 1}, 0},
		{format.R16G16SFloat, Color{R: 0.25, G: 0.5, A: 1}, 0},
		{format.R16G16B16A16SFloat, in, 0},
		{format.R32SFloat, Color{R: 0.25, A: 1}, 0},
		{format.R32G32SFloat, Color{R: 0.25, G: 0.5, A: 1}, 0},
		{format.R32G32B32SFloat, Color{R: 0.25, G: 0.5, B: 0.75, A: 1}, 0},
		{format.R32G32B32A32SFloat, in, 0},
		{format.B5G6R5UNorm, Color{R: 0.25, G: 0.5, B: 0.75, A: 1}, 1.0 / 31},
	}
	for _, tt := range tests {
		t.Run(tt.f.Name(), func(t *testing.T) {
			img, err := Create2D(3, 2, tt.f)
			require.NoError(t, err)
			defer img.Destroy()
			for i := uint64(0); i < img.PixelCount(); i++ {
				require.NoError(t, img.SetPixelAt(i, in))
				got, err := img.GetPixelAt(i)
				require.NoError(t, err)
				assert.InDelta(t, tt.want.R, got.R, tt.delta)
				assert.InDelta(t, tt.want.G, got.G, tt.delta)
				assert.InDelta(t, tt.want.B, got.B, tt.delta)
				assert.InDelta(t, tt.want.A, got.A, tt.delta)
			}
		})
	}
}

func TestIntegerFormats(t *testing.T) {
	img, err := Create1D(2, format.R8G8B8A8UInt)
	require.NoError(t, err)
	defer img.Destroy()
	require.NoError(t, img.SetPixelAt(0, Color{R: 7, G: 300, B: -4, A: 255}))
	c, err := img.GetPixelAt(0)
	require.NoError(t, err)
	assert.Equal(t, Color{R: 7, G: 255, B: 0, A: 255}, c)

	r32, err := Create1D(1, format.R32UInt)
	require.NoError(t, err)
	defer r32.Destroy()
	require.NoError(t, r32.SetPixelAt(0, Color{R: 123456789}))
	c, err = r32.GetPixelAt(0)
	require.NoError(t, err)
	assert.Equal(t, 123456789.0, c.R)
}

func TestClampingAndStorage(t *testing.T) {
	img, err := Create1D(1, format.B8G8R8A8UNorm)
	require.NoError(t, err)
	defer img.Destroy()
	require.NoError(t, img.SetPixelAt(0, Color{R: 2, G: -1, B: 0.5, A: 1}))
	// stored as B, G, R, A
	assert.Equal(t, []byte{128, 0, 255, 255}, img.Data())

	snorm, err := Create1D(1, format.R8G8B8A8SNorm)
	require.NoError(t, err)
	defer snorm.Destroy()
	require.NoError(t, snorm.SetPixelAt(0, Color{R: -1, G: -5, B: 1, A: 0}))
	c, err := snorm.GetPixelAt(0)
	require.NoError(t, err)
	assert.Equal(t, Color{R: -1, G: -1, B: 1, A: 0}, c)
}

func TestPackedLayout(t *testing.T) {
	img, err := Create1D(1, format.B5G6R5UNorm)
	require.NoError(t, err)
	defer img.Destroy()
	require.NoError(t, img.SetPixelAt(0, Color{R: 1, G: 0, B: 0, A: 1}))
	// red occupies the high five bits of the little-endian word
	assert.Equal(t, []byte{0x00, 0xf8}, img.Data())
}

func TestSRGBDecodesLinear(t *testing.T) {
	img, err := Create1D(1, format.R8G8B8A8SRGB)
	require.NoError(t, err)
	defer img.Destroy()
	copy(img.Data(), []byte{188, 0, 255, 128})
	c, err := img.GetPixelAt(0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, c.R, 0.01)
	assert.Equal(t, 0.0, c.G)
	assert.InDelta(t, 1.0, c.B, 1e-9)
	assert.InDelta(t, 128.0/255, c.A, 1e-12)
}

func TestPixelAccessErrors(t *testing.T) {
	img, err := Create2D(2, 2, format.R8UNorm)
	require.NoError(t, err)
	defer img.Destroy()

	_, err = img.GetPixelAt(4)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.ErrorIs(t, img.SetPixel(0, 2, 0, 0, Color{}), ErrOutOfRange)

	bc, err := Create2D(4, 4, format.BC1RGBUNorm)
	require.NoError(t, err)
	defer bc.Destroy()
	_, err = bc.GetPixelAt(0)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
