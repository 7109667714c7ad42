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

func TestTGARoundTrip(t *testing.T) {
	for _, f := range []format.Format{format.R8UNorm, format.B8G8R8UNorm, format.B8G8R8A8UNorm} {
		for _, rle := range []bool{false, true} {
			name := f.Name()
			if rle {
				name += "/rle"
			}
			t.Run(name, func(t *testing.T) {
				img, err := gfx.Create2D(9, 4, f)
				require.NoError(t, err)
				defer img.Destroy()
				patterned(t, img, 0)
				// give the run-length path something to collapse
				clear(img.Data()[:img.Shape().ByteCountPerRow()])

				c := &tgaCodec{rle: rle}
				var buf bytes.Buffer
				require.NoError(t, c.Encode(&buf, img))
				raw := buf.Bytes()
				assert.Equal(t, byte(tgaTopLeft), raw[17]&tgaTopLeft)

				h, err := c.DecodeHeader(bytes.NewReader(raw))
				require.NoError(t, err)
				assert.Equal(t, img.Shape(), h)

				got, err := c.Decode(bytes.NewReader(raw))
				require.NoError(t, err)
				defer got.Destroy()
				assert.Equal(t, img.Data(), got.Data())
			})
		}
	}
}

func TestTGAConvertsForeignFormats(t *testing.T) {
	img, err := gfx.Create2D(2, 2, format.R8G8B8A8UNorm)
	require.NoError(t, err)
	defer img.Destroy()
	copy(img.Data(), []byte{10, 20, 30, 40, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})

	var buf bytes.Buffer
	require.NoError(t, TGA.Encode(&buf, img))
	got, err := TGA.Decode(&buf)
	require.NoError(t, err)
	defer got.Destroy()
	assert.Equal(t, format.B8G8R8A8UNorm, got.Format())
	assert.Equal(t, []byte{30, 20, 10, 40}, got.Data()[:4])
}

func TestTGABottomUp(t *testing.T) {
	hdr := make([]byte, tgaHeaderSize, tgaHeaderSize+2+4)
	hdr[0] = 2 // image id
	hdr[2] = tgaGray
	binary.LittleEndian.PutUint16(hdr[12:], 2)
	binary.LittleEndian.PutUint16(hdr[14:], 2)
	hdr[16] = 8
	raw := append(hdr, 'i', 'd', 1, 2, 3, 4)

	img, err := TGA.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	defer img.Destroy()
	assert.Equal(t, []byte{3, 4, 1, 2}, img.Data())
}

func TestTGAErrors(t *testing.T) {
	hdr := make([]byte, tgaHeaderSize)
	hdr[2] = 1 // colour mapped
	hdr[16] = 8
	_, err := TGA.Decode(bytes.NewReader(hdr))
	assert.ErrorIs(t, err, gfx.ErrDecode)

	hdr[2] = tgaGrayRLE
	binary.LittleEndian.PutUint16(hdr[12:], 4)
	binary.LittleEndian.PutUint16(hdr[14:], 1)
	_, err = TGA.Decode(bytes.NewReader(append(hdr, 0x85, 7)))
	assert.ErrorIs(t, err, gfx.ErrDecode)

	_, err = TGA.Decode(bytes.NewReader(hdr[:5]))
	assert.ErrorIs(t, err, gfx.ErrDecode)
}

func TestTGARLEPackets(t *testing.T) {
	tests := []struct {
		name string
		bpp  int
		in   []byte
		want []byte
	}{
		{"Run", 1, []byte{5, 5, 5, 5}, []byte{0x83, 5}},
		{"Raw", 1, []byte{1, 2, 3}, []byte{0x02, 1, 2, 3}},
		{"RawThenRun", 1, []byte{1, 2, 7, 7, 7}, []byte{0x01, 1, 2, 0x82, 7}},
		{"Pixels", 3, []byte{1, 2, 3, 1, 2, 3, 9, 9, 9}, []byte{0x81, 1, 2, 3, 0x00, 9, 9, 9}},
		{"Empty", 1, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := encodeTGARLE(tt.in, tt.bpp)
			assert.Equal(t, tt.want, enc)
			out := make([]byte, len(tt.in))
			require.NoError(t, decodeTGARLE(bytes.NewReader(enc), out, tt.bpp))
			assert.Equal(t, tt.in, out)
		})
	}

	long := bytes.Repeat([]byte{4}, 300)
	enc := encodeTGARLE(long, 1)
	assert.Equal(t, []byte{0xff, 4, 0xff, 4, 0xab, 4}, enc)
}
