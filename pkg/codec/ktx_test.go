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

func TestKTXRoundTrip(t *testing.T) {
	runContainerCases(t, KTX)
}

func TestKTXHeaderAndPadding(t *testing.T) {
	img, err := gfx.Create2D(3, 2, format.R8G8B8UNorm)
	require.NoError(t, err)
	defer img.Destroy()
	require.NoError(t, img.CreateMipMapChain(false))
	patterned(t, img, 0)

	var buf bytes.Buffer
	require.NoError(t, KTX.Encode(&buf, img))
	raw := buf.Bytes()
	u32 := func(i int) uint32 { return binary.LittleEndian.Uint32(raw[12+4*i:]) }
	assert.Equal(t, uint32(ktxEndianness), u32(0))
	assert.Equal(t, uint32(glUnsignedByte), u32(1))
	assert.Equal(t, uint32(glRGB), u32(3))
	assert.Equal(t, uint32(0x8051), u32(4))
	assert.Equal(t, uint32(3), u32(6))
	assert.Equal(t, uint32(2), u32(7))
	assert.Zero(t, u32(8))
	assert.Zero(t, u32(9))
	assert.Equal(t, uint32(1), u32(10))
	assert.Equal(t, uint32(2), u32(11))

	// level 0: two 9-byte rows padded to 12, level 1: one 3-byte row padded to 4
	data := raw[ktxHeaderSize:]
	assert.Equal(t, uint32(24), binary.LittleEndian.Uint32(data))
	assert.Equal(t, img.Data()[:9], data[4:13])
	assert.Equal(t, []byte{0, 0, 0}, data[13:16])
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(data[28:]))
	assert.Len(t, raw, ktxHeaderSize+4+24+4+4)
}

func TestKTXCubemapImageSize(t *testing.T) {
	img, err := gfx.CreateCubemap(4, 4, format.BC3UNorm)
	require.NoError(t, err)
	defer img.Destroy()

	var buf bytes.Buffer
	require.NoError(t, KTX.Encode(&buf, img))
	raw := buf.Bytes()
	// one face of a non-array cubemap
	assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(raw[ktxHeaderSize:]))
	assert.Len(t, raw, ktxHeaderSize+4+6*16)
}

func TestKTXSkipsKeyValueData(t *testing.T) {
	img, err := gfx.Create2D(4, 1, format.R8UNorm)
	require.NoError(t, err)
	defer img.Destroy()
	patterned(t, img, 2)

	var buf bytes.Buffer
	require.NoError(t, KTX.Encode(&buf, img))
	raw := buf.Bytes()
	kv := []byte{8, 0, 0, 0, 'k', 0, 'v', 0, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(raw[12+4*12:], uint32(len(kv)))
	withKV := append(append(append([]byte{}, raw[:ktxHeaderSize]...), kv...), raw[ktxHeaderSize:]...)

	got, err := KTX.Decode(bytes.NewReader(withKV))
	require.NoError(t, err)
	defer got.Destroy()
	assert.Equal(t, img.Data(), got.Data())
}

func TestKTXErrors(t *testing.T) {
	_, err := KTX.Decode(bytes.NewReader([]byte(ktxIdentifier)))
	assert.ErrorIs(t, err, gfx.ErrDecode)

	img, err := gfx.Create2D(4, 4, format.R8UNorm)
	require.NoError(t, err)
	defer img.Destroy()
	var buf bytes.Buffer
	require.NoError(t, KTX.Encode(&buf, img))

	raw := bytes.Clone(buf.Bytes())
	binary.LittleEndian.PutUint32(raw[12+4*4:], 0x1234)
	_, err = KTX.Decode(bytes.NewReader(raw))
	assert.ErrorIs(t, err, gfx.ErrDecode)

	raw = bytes.Clone(buf.Bytes())
	binary.LittleEndian.PutUint32(raw[12:], 0x01020304)
	_, err = KTX.Decode(bytes.NewReader(raw))
	assert.ErrorIs(t, err, gfx.ErrDecode)

	raw = bytes.Clone(buf.Bytes())
	binary.LittleEndian.PutUint32(raw[12+4*10:], 3)
	_, err = KTX.Decode(bytes.NewReader(raw))
	assert.ErrorIs(t, err, gfx.ErrDecode)
}
