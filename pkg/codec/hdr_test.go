package codec

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/jpfielding/gfximage.go/pkg/format"
	"github.com/jpfielding/gfximage.go/pkg/gfx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHDRRoundTrip(t *testing.T) {
	// 12 wide takes the run-length scanline path, 3 wide the flat one
	for _, width := range []uint32{12, 3} {
		img, err := gfx.Create2D(width, 2, format.R32G32B32A32SFloat)
		require.NoError(t, err)
		for i := uint64(0); i < img.PixelCount(); i++ {
			v := 0.25 * float64(i%4+1)
			if i >= uint64(width) {
				v *= 40
			}
			require.NoError(t, img.SetPixelAt(i, gfx.Color{R: v, G: v / 2, B: 0.01, A: 0.3}))
		}

		var buf bytes.Buffer
		require.NoError(t, HDR.Encode(&buf, img))
		assert.Equal(t, HDR, Sniff(buf.Bytes()))

		got, err := HDR.Decode(&buf)
		require.NoError(t, err)
		assert.Equal(t, format.R32G32B32SFloat, got.Format())
		for i := uint64(0); i < img.PixelCount(); i++ {
			want, _ := img.GetPixelAt(i)
			c, err := got.GetPixelAt(i)
			require.NoError(t, err)
			assert.InEpsilon(t, want.R, c.R, 0.01, "pixel %d", i)
			assert.InEpsilon(t, want.G, c.G, 0.01, "pixel %d", i)
			// blue shares the exponent of red
			assert.InDelta(t, want.B, c.B, want.R/128)
			assert.Equal(t, 1.0, c.A)
		}
		got.Destroy()
		img.Destroy()
	}
}

func TestHDRHeader(t *testing.T) {
	raw := "#?RGBE\nGAMMA=1.0\nFORMAT=32-bit_rle_rgbe\n\n+Y 2 +X 1\n\x80\x80\x80\x80\x80\x00\x00\x80"
	h, err := HDR.(HeaderDecoder).DecodeHeader(bytes.NewReader([]byte(raw)))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), h.Width())
	assert.Equal(t, uint32(2), h.Height())

	// bottom-up: the first scanline in the file is the last row
	img, err := HDR.Decode(bytes.NewReader([]byte(raw)))
	require.NoError(t, err)
	defer img.Destroy()
	top, _ := img.GetPixelAt(0)
	bottom, _ := img.GetPixelAt(1)
	assert.InDelta(t, 0.5, top.R, 0.01)
	assert.InDelta(t, 0, top.G, 0.01)
	assert.InDelta(t, 0.5, bottom.R, 0.01)
	assert.InDelta(t, 0.5, bottom.G, 0.01)
}

func TestHDRErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"Signature", "RADIANCE\n\n-Y 1 +X 1\n"},
		{"XYZE", "#?RADIANCE\nFORMAT=32-bit_rle_xyze\n\n-Y 1 +X 1\n"},
		{"Resolution", "#?RADIANCE\n\nbogus\n"},
		{"Orientation", "#?RADIANCE\n\n-Y 1 -X 1\n"},
		{"Truncated", "#?RADIANCE\n\n-Y 1 +X 2\n\x80\x80"},
		{"BadRun", "#?RADIANCE\n\n-Y 1 +X 8\n\x02\x02\x00\x08\x89\x01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HDR.Decode(bytes.NewReader([]byte(tt.raw)))
			assert.ErrorIs(t, err, gfx.ErrDecode)
		})
	}
}

func TestHDRRLEChannel(t *testing.T) {
	data := []byte{1, 2, 3, 9, 9, 9, 9, 9, 4, 4, 5}
	var buf bytes.Buffer
	writeRLEChannel(&buf, data)
	assert.Equal(t, []byte{3, 1, 2, 3, 128 + 5, 9, 3, 4, 4, 5}, buf.Bytes())

	// replay it as the red channel of a scanline, the rest as runs
	scan := []byte{2, 2, 0, byte(len(data))}
	scan = append(scan, buf.Bytes()...)
	for i := 0; i < 3; i++ {
		scan = append(scan, 128+byte(len(data)), 0x80)
	}
	out := make([]byte, 4*len(data))
	require.NoError(t, readScanline(bufio.NewReader(bytes.NewReader(scan)), out))
	for i, v := range data {
		assert.Equal(t, v, out[4*i])
		assert.Equal(t, byte(0x80), out[4*i+3])
	}
}

func TestHDRFlatRepeat(t *testing.T) {
	// old style: (1,1,1,n) repeats the previous pixel n times
	raw := []byte{10, 20, 30, 128, 1, 1, 1, 2, 7, 7, 7, 128}
	out := make([]byte, 16)
	require.NoError(t, readScanline(bufio.NewReader(bytes.NewReader(raw)), out))
	assert.Equal(t, []byte{10, 20, 30, 128, 10, 20, 30, 128, 10, 20, 30, 128, 7, 7, 7, 128}, out)
}
