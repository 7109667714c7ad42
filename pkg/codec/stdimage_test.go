package codec

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/jpfielding/gfximage.go/pkg/format"
	"github.com/jpfielding/gfximage.go/pkg/gfx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdCodecsLossless(t *testing.T) {
	tests := []struct {
		name   string
		codec  Codec
		format format.Format
		opaque bool
	}{
		{"PNGGray", PNG, format.R8UNorm, false},
		{"PNGGray16", PNG, format.R16UNorm, false},
		{"PNGRGBA", PNG, format.R8G8B8A8UNorm, false},
		{"PNGRGBA16", PNG, format.R16G16B16A16UNorm, false},
		{"TIFFRGBA", TIFF, format.R8G8B8A8UNorm, false},
		{"TIFFGray", TIFF, format.R8UNorm, false},
		{"BMPOpaque", BMP, format.R8G8B8A8UNorm, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := gfx.Create2D(7, 5, tt.format)
			require.NoError(t, err)
			defer img.Destroy()
			patterned(t, img, 9)
			if tt.opaque {
				pix := img.Data()
				for i := 3; i < len(pix); i += 4 {
					pix[i] = 0xff
				}
			}

			var buf bytes.Buffer
			require.NoError(t, tt.codec.Encode(&buf, img))
			raw := buf.Bytes()
			assert.Equal(t, tt.codec, Sniff(raw))

			h, err := tt.codec.(HeaderDecoder).DecodeHeader(bytes.NewReader(raw))
			require.NoError(t, err)
			assert.Equal(t, uint32(7), h.Width())
			assert.Equal(t, uint32(5), h.Height())

			got, err := tt.codec.Decode(bytes.NewReader(raw))
			require.NoError(t, err)
			defer got.Destroy()
			assert.Equal(t, tt.format, got.Format())
			assert.Equal(t, img.Data(), got.Data())
		})
	}
}

func TestJPEGIsClose(t *testing.T) {
	img, err := gfx.Create2D(16, 16, format.R8G8B8A8UNorm)
	require.NoError(t, err)
	defer img.Destroy()
	for y := uint32(0); y < 16; y++ {
		for x := uint32(0); x < 16; x++ {
			require.NoError(t, img.SetPixel(x, y, 0, 0, gfx.Color{R: float64(x) / 15, G: 0.5, B: float64(y) / 15, A: 1}))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, JPEG.Encode(&buf, img))
	got, err := JPEG.Decode(&buf)
	require.NoError(t, err)
	defer got.Destroy()
	require.Equal(t, format.R8G8B8A8UNorm, got.Format())
	for _, idx := range []uint64{0, 17, 120, 255} {
		want, _ := img.GetPixelAt(idx)
		c, err := got.GetPixelAt(idx)
		require.NoError(t, err)
		assert.InDelta(t, want.R, c.R, 0.08)
		assert.InDelta(t, want.G, c.G, 0.08)
		assert.InDelta(t, want.B, c.B, 0.08)
		assert.Equal(t, 1.0, c.A)
	}
}

func TestToImageThroughAccessor(t *testing.T) {
	img, err := gfx.Create2D(2, 1, format.R32SFloat)
	require.NoError(t, err)
	defer img.Destroy()
	require.NoError(t, img.SetPixelAt(0, gfx.Color{R: 0.5}))
	require.NoError(t, img.SetPixelAt(1, gfx.Color{R: 3}))

	m, err := toImage(img)
	require.NoError(t, err)
	nrgba, ok := m.(*image.NRGBA64)
	require.True(t, ok)
	assert.Equal(t, color.NRGBA64{R: 0x8000, G: 0x8000, B: 0x8000, A: 0xffff}, nrgba.NRGBA64At(0, 0))
	assert.Equal(t, color.NRGBA64{R: 0xffff, G: 0xffff, B: 0xffff, A: 0xffff}, nrgba.NRGBA64At(1, 0))
}

func TestFromImageOffsetBounds(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = byte(i)
	}
	sub := src.SubImage(image.Rect(1, 2, 3, 4))
	img, err := fromImage(sub)
	require.NoError(t, err)
	defer img.Destroy()
	assert.Equal(t, uint32(2), img.Width())
	assert.Equal(t, uint32(2), img.Height())
	off := src.PixOffset(1, 2)
	assert.Equal(t, src.Pix[off:off+8], img.Data()[:8])

	ycc := image.NewYCbCr(image.Rect(0, 0, 2, 2), image.YCbCrSubsampleRatio444)
	img2, err := fromImage(ycc)
	require.NoError(t, err)
	defer img2.Destroy()
	assert.Equal(t, format.R8G8B8A8UNorm, img2.Format())
}

func TestStdCodecRejects(t *testing.T) {
	arr, err := gfx.Create2DArray(4, 4, 2, format.R8UNorm)
	require.NoError(t, err)
	defer arr.Destroy()
	assert.ErrorIs(t, PNG.Encode(&bytes.Buffer{}, arr), gfx.ErrEncode)

	bc, err := gfx.Create2D(4, 4, format.BC1RGBUNorm)
	require.NoError(t, err)
	defer bc.Destroy()
	assert.False(t, PNG.CanEncode(bc.Shape()))
}
