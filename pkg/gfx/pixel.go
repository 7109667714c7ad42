package gfx

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jpfielding/gfximage.go/pkg/format"
	"github.com/x448/float16"
)

// Color is a pixel as four float64 channels. Normalised formats map to
// [0,1] ([-1,1] for signed), float formats are unrestricted and integer
// formats carry their raw value.
type Color struct {
	R, G, B, A float64
}

func (c Color) add(o Color) Color {
	return Color{c.R + o.R, c.G + o.G, c.B + o.B, c.A + o.A}
}

func (c Color) scale(f float64) Color {
	return Color{c.R * f, c.G * f, c.B * f, c.A * f}
}

func (c Color) channel(ch format.Channel) float64 {
	switch ch {
	case format.ChannelR:
		return c.R
	case format.ChannelG:
		return c.G
	case format.ChannelB:
		return c.B
	default:
		return c.A
	}
}

func (c *Color) setChannel(ch format.Channel, v float64) {
	switch ch {
	case format.ChannelR:
		c.R = v
	case format.ChannelG:
		c.G = v
	case format.ChannelB:
		c.B = v
	default:
		c.A = v
	}
}

// pixelBytes returns the bytes of pixel index, checking the buffer, the
// format and the range.
func (img *Image) pixelBytes(index uint64) ([]byte, format.Info, error) {
	if err := img.checkBuffer(); err != nil {
		return nil, format.Info{}, err
	}
	info := img.format.Info()
	if info.Compressed {
		return nil, info, fmt.Errorf("%w: direct pixel access on %s", ErrUnsupportedFormat, img.format)
	}
	if index >= img.PixelCount() {
		return nil, info, fmt.Errorf("%w: pixel %d of %d", ErrOutOfRange, index, img.PixelCount())
	}
	bpp := uint64(info.BlockBytes)
	off := index * bpp
	return img.pix[off : off+bpp], info, nil
}

// GetPixelAt decodes pixel index. Channels the format lacks read as 0, a
// missing alpha reads as 1.
func (img *Image) GetPixelAt(index uint64) (Color, error) {
	b, info, err := img.pixelBytes(index)
	if err != nil {
		return Color{}, err
	}
	return decodePixel(info, b), nil
}

// SetPixelAt encodes c into pixel index, clamping to the range of the format.
func (img *Image) SetPixelAt(index uint64, c Color) error {
	b, info, err := img.pixelBytes(index)
	if err != nil {
		return err
	}
	encodePixel(info, b, c)
	return nil
}

// PixelAt decodes the pixel at (x, y, z, slice).
func (img *Image) PixelAt(x, y, z, slice uint32) (Color, error) {
	idx, err := img.CalculateIndex(x, y, z, slice)
	if err != nil {
		return Color{}, err
	}
	return img.GetPixelAt(idx)
}

// SetPixel encodes c at (x, y, z, slice).
func (img *Image) SetPixel(x, y, z, slice uint32, c Color) error {
	idx, err := img.CalculateIndex(x, y, z, slice)
	if err != nil {
		return err
	}
	return img.SetPixelAt(idx, c)
}

func decodePixel(info format.Info, b []byte) Color {
	c := Color{A: 1}
	if info.Packed {
		word := readUint(b, len(b)*8)
		for i := 0; i < info.Channels; i++ {
			n := info.Bits[i]
			mask := uint64(1)<<n - 1
			c.setChannel(info.Swizzle[i], float64(word&mask)/float64(mask))
			word >>= n
		}
		return c
	}
	off := 0
	for i := 0; i < info.Channels; i++ {
		n := int(info.Bits[i])
		raw := readUint(b[off:], n)
		ch := info.Swizzle[i]
		c.setChannel(ch, decodeChannel(info.Type, ch, raw, n))
		off += n / 8
	}
	return c
}

func decodeChannel(t format.Type, ch format.Channel, raw uint64, bits int) float64 {
	switch t {
	case format.TypeUNorm:
		return float64(raw) / float64(uint64(1)<<bits-1)
	case format.TypeSNorm:
		v := float64(signExtend(raw, bits)) / float64(uint64(1)<<(bits-1)-1)
		return math.Max(-1, v)
	case format.TypeUInt:
		return float64(raw)
	case format.TypeSInt:
		return float64(signExtend(raw, bits))
	case format.TypeSFloat, format.TypeUFloat:
		if bits == 16 {
			return float64(float16.Frombits(uint16(raw)).Float32())
		}
		return float64(math.Float32frombits(uint32(raw)))
	case format.TypeSRGB:
		v := float64(raw) / float64(uint64(1)<<bits-1)
		if ch == format.ChannelA {
			return v
		}
		return srgbToLinear(v)
	case format.TypeNone:
		return 0
	}
	panic(fmt.Sprintf("gfx: unhandled channel type %d", t))
}

func encodePixel(info format.Info, b []byte, c Color) {
	if info.Packed {
		var word uint64
		shift := uint8(0)
		for i := 0; i < info.Channels; i++ {
			n := info.Bits[i]
			mask := uint64(1)<<n - 1
			v := uint64(math.Round(clamp(c.channel(info.Swizzle[i]), 0, 1) * float64(mask)))
			word |= v << shift
			shift += n
		}
		writeUint(b, len(b)*8, word)
		return
	}
	off := 0
	for i := 0; i < info.Channels; i++ {
		n := int(info.Bits[i])
		ch := info.Swizzle[i]
		writeUint(b[off:], n, encodeChannel(info.Type, ch, c.channel(ch), n))
		off += n / 8
	}
}

func encodeChannel(t format.Type, ch format.Channel, v float64, bits int) uint64 {
	switch t {
	case format.TypeUNorm:
		return uint64(math.Round(clamp(v, 0, 1) * float64(uint64(1)<<bits-1)))
	case format.TypeSNorm:
		m := float64(uint64(1)<<(bits-1) - 1)
		return uint64(int64(math.Round(clamp(v, -1, 1)*m))) & (uint64(1)<<bits - 1)
	case format.TypeUInt:
		return uint64(clamp(math.Round(v), 0, float64(uint64(1)<<bits-1)))
	case format.TypeSInt:
		half := float64(uint64(1) << (bits - 1))
		return uint64(int64(clamp(math.Round(v), -half, half-1))) & (uint64(1)<<bits - 1)
	case format.TypeSFloat, format.TypeUFloat:
		if t == format.TypeUFloat {
			v = math.Max(0, v)
		}
		if bits == 16 {
			return uint64(float16.Fromfloat32(float32(v)).Bits())
		}
		return uint64(math.Float32bits(float32(v)))
	case format.TypeSRGB:
		if ch != format.ChannelA {
			v = linearToSRGB(clamp(v, 0, 1))
		}
		return uint64(math.Round(clamp(v, 0, 1) * float64(uint64(1)<<bits-1)))
	case format.TypeNone:
		return 0
	}
	panic(fmt.Sprintf("gfx: unhandled channel type %d", t))
}

func readUint(b []byte, bits int) uint64 {
	switch bits {
	case 8:
		return uint64(b[0])
	case 16:
		return uint64(binary.LittleEndian.Uint16(b))
	case 32:
		return uint64(binary.LittleEndian.Uint32(b))
	case 64:
		return binary.LittleEndian.Uint64(b)
	}
	panic(fmt.Sprintf("gfx: unsupported channel width %d", bits))
}

func writeUint(b []byte, bits int, v uint64) {
	switch bits {
	case 8:
		b[0] = byte(v)
	case 16:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 32:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 64:
		binary.LittleEndian.PutUint64(b, v)
	default:
		panic(fmt.Sprintf("gfx: unsupported channel width %d", bits))
	}
}

func signExtend(raw uint64, bits int) int64 {
	shift := 64 - bits
	return int64(raw<<shift) >> shift
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}

func srgbToLinear(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

func linearToSRGB(v float64) float64 {
	if v <= 0.0031308 {
		return v * 12.92
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}
