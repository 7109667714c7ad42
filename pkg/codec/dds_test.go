package codec

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/jpfielding/gfximage.go/pkg/format"
	"github.com/jpfielding/gfximage.go/pkg/gfx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type containerCase struct {
	name   string
	create func() (*gfx.Image, error)
	mips   bool
}

var containerCases = []containerCase{
	{"RGBA8Mips", func() (*gfx.Image, error) { return gfx.Create2D(8, 4, format.R8G8B8A8UNorm) }, true},
	{"RGB8Odd", func() (*gfx.Image, error) { return gfx.Create2D(3, 3, format.R8G8B8UNorm) }, true},
	{"BGR8", func() (*gfx.Image, error) { return gfx.Create2D(5, 2, format.B8G8R8UNorm) }, false},
	{"R16F1D", func() (*gfx.Image, error) { return gfx.Create1D(16, format.R16SFloat) }, true},
	{"CubemapBC1", func() (*gfx.Image, error) { return gfx.CreateCubemap(8, 8, format.BC1RGBUNorm) }, true},
	{"CubeArrayRGBA32F", func() (*gfx.Image, error) { return gfx.CreateCubemapArray(2, 2, 2, format.R32G32B32A32SFloat) }, false},
	{"ArrayBC7", func() (*gfx.Image, error) { return gfx.Create2DArray(8, 8, 3, format.BC7UNorm) }, true},
	{"VolumeRG16", func() (*gfx.Image, error) { return gfx.Create3D(4, 4, 4, format.R16G16UNorm) }, true},
	{"Packed565", func() (*gfx.Image, error) { return gfx.Create2D(6, 6, format.B5G6R5UNorm) }, false},
}

// runContainerCases round-trips every case through c.
func runContainerCases(t *testing.T, c Codec) {
	for _, tt := range containerCases {
		t.Run(tt.name, func(t *testing.T) {
			img, err := tt.create()
			require.NoError(t, err)
			defer img.Destroy()
			if tt.mips {
				require.NoError(t, img.CreateMipMapChain(false))
			}
			patterned(t, img, 5)
			require.True(t, c.CanEncode(img.Shape()))

			var buf bytes.Buffer
			require.NoError(t, c.Encode(&buf, img))
			raw := buf.Bytes()
			assert.Equal(t, c, Sniff(raw))

			h, err := c.(HeaderDecoder).DecodeHeader(bytes.NewReader(raw))
			require.NoError(t, err)
			assert.Equal(t, img.Shape(), h)

			got, err := c.Decode(bytes.NewReader(raw))
			require.NoError(t, err)
			defer got.Destroy()
			requireSameChain(t, img, got)
		})
	}
}

func TestDDSRoundTrip(t *testing.T) {
	runContainerCases(t, DDS)
}

func TestDDSLegacyHeader(t *testing.T) {
	img, err := gfx.Create2D(8, 8, format.BC1RGBUNorm)
	require.NoError(t, err)
	defer img.Destroy()
	require.NoError(t, img.CreateMipMapChain(false))

	var buf bytes.Buffer
	require.NoError(t, DDS.Encode(&buf, img))
	raw := buf.Bytes()
	h := raw[4:]
	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(h[off:]) }
	assert.Equal(t, uint32(ddsHeaderSize), u32(0))
	assert.NotZero(t, u32(4)&DDSD_LINEARSIZE)
	assert.Equal(t, uint32(32), u32(16))
	assert.Equal(t, uint32(4), u32(24))
	assert.Equal(t, "DXT1", string(h[80:84]))
	assert.NotZero(t, u32(104)&DDSCAPS_MIPMAP)
	// no DX10 extension: data follows the header directly
	assert.Len(t, raw, 4+ddsHeaderSize+32+8+8+8)
}

func TestDDSDX10Header(t *testing.T) {
	img, err := gfx.CreateCubemapArray(4, 4, 2, format.BC7SRGB)
	require.NoError(t, err)
	defer img.Destroy()

	var buf bytes.Buffer
	require.NoError(t, DDS.Encode(&buf, img))
	raw := buf.Bytes()
	assert.Equal(t, "DX10", string(raw[4+80:4+84]))
	ext := raw[4+ddsHeaderSize:]
	assert.Equal(t, uint32(99), binary.LittleEndian.Uint32(ext[0:]))
	assert.Equal(t, uint32(ddsDimension2D), binary.LittleEndian.Uint32(ext[4:]))
	assert.Equal(t, uint32(ddsMiscCubemap), binary.LittleEndian.Uint32(ext[8:]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(ext[12:]))
}

func TestDDSLegacyMasks(t *testing.T) {
	tests := []struct {
		bits, rMask uint32
		want        format.Format
	}{
		{32, 0xff, format.R8G8B8A8UNorm},
		{32, 0xff0000, format.B8G8R8A8UNorm},
		{24, 0xff, format.R8G8B8UNorm},
		{16, 0xf800, format.B5G6R5UNorm},
		{16, 0x7c00, format.Undefined},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, legacyRGBFormat(tt.bits, tt.rMask))
	}
}

func TestDDSRejects(t *testing.T) {
	arr, err := gfx.Create2DArray(4, 4, 2, format.R8G8B8UNorm)
	require.NoError(t, err)
	defer arr.Destroy()
	assert.False(t, DDS.CanEncode(arr.Shape()))
	assert.ErrorIs(t, DDS.Encode(&bytes.Buffer{}, arr), gfx.ErrEncode)

	volArr, err := gfx.Create3DArray(4, 4, 2, 2, format.R8UNorm)
	require.NoError(t, err)
	defer volArr.Destroy()
	assert.False(t, DDS.CanEncode(volArr.Shape()))

	_, err = DDS.Decode(bytes.NewReader([]byte("DDS \x00\x00")))
	assert.ErrorIs(t, err, gfx.ErrDecode)

	// truncated pixel data
	img, err := gfx.Create2D(4, 4, format.R8UNorm)
	require.NoError(t, err)
	defer img.Destroy()
	var buf bytes.Buffer
	require.NoError(t, DDS.Encode(&buf, img))
	_, err = DDS.Decode(bytes.NewReader(buf.Bytes()[:buf.Len()-1]))
	assert.ErrorIs(t, err, gfx.ErrDecode)
}

// dx10Header builds a DX10 DDS file that declares a shape but carries no pixels.
func dx10Header(w, h, d, arraySize uint32, dim uint32, dxgi uint32) []byte {
	raw := make([]byte, 4+ddsHeaderSize+dx10Size)
	copy(raw, ddsMagic)
	hdr := raw[4:]
	put := func(off int, v uint32) { binary.LittleEndian.PutUint32(hdr[off:], v) }
	put(0, ddsHeaderSize)
	put(4, DDSD_CAPS|DDSD_HEIGHT|DDSD_WIDTH|DDSD_PIXELFORMAT)
	put(8, h)
	put(12, w)
	put(20, d)
	put(72, ddsPfSize)
	put(76, DDPF_FOURCC)
	copy(hdr[80:], "DX10")
	put(ddsHeaderSize, dxgi)
	put(ddsHeaderSize+4, dim)
	put(ddsHeaderSize+12, arraySize)
	return raw
}

func TestDDSOversizedHeaders(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want []error
	}{
		// 65536^3 voxels in 65536 slices wraps every 64-bit size product
		{"WrappingVolumeArray", dx10Header(65536, 65536, 65536, 65536, ddsDimension3D, 61),
			[]error{gfx.ErrDecode, gfx.ErrInvalidShape, gfx.ErrAllocation}},
		// a valid 64 GiB shape is refused by the decode limit
		{"AboveDecodeLimit", dx10Header(65536, 65536, 1, 1, ddsDimension2D, 2),
			[]error{gfx.ErrDecode, gfx.ErrAllocation}},
		{"MaxExtents", dx10Header(^uint32(0), ^uint32(0), ^uint32(0), ^uint32(0), ddsDimension3D, 2),
			[]error{gfx.ErrDecode, gfx.ErrAllocation}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.raw, 148)
			var img *gfx.Image
			var err error
			require.NotPanics(t, func() { img, err = DDS.Decode(bytes.NewReader(tt.raw)) })
			assert.Nil(t, img)
			for _, want := range tt.want {
				assert.ErrorIs(t, err, want)
			}
		})
	}
}
