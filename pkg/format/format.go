// Package format describes the pixel formats an image can be stored in.
//
// Every format is an entry of a closed enumeration. Metadata (channel layout,
// numeric type, bit depth, block footprint) is looked up from a fixed table,
// so callers can switch over a Format exhaustively instead of dispatching
// through function tables.
package format

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a format name does not match any known format.
var ErrNotFound = errors.New("format: not found")

// Format identifies a pixel storage format.
type Format uint16

const (
	Undefined Format = iota

	R8UNorm
	R8G8UNorm
	R8G8B8UNorm
	B8G8R8UNorm
	R8G8B8A8UNorm
	R8G8B8A8SNorm
	R8G8B8A8UInt
	R8G8B8A8SRGB
	B8G8R8A8UNorm
	B8G8R8A8SRGB

	R16UNorm
	R16UInt
	R16G16UNorm
	R16G16B16A16UNorm
	R16SFloat
	R16G16SFloat
	R16G16B16A16SFloat

	R32UInt
	R32SFloat
	R32G32SFloat
	R32G32B32SFloat
	R32G32B32A32SFloat

	B5G6R5UNorm

	BC1RGBUNorm
	BC1RGBAUNorm
	BC2UNorm
	BC3UNorm
	BC4UNorm
	BC5UNorm
	BC6HUFloat
	BC7UNorm
	BC7SRGB

	formatCount
)

// Type is the numeric interpretation of a channel.
type Type uint8

const (
	TypeNone Type = iota
	TypeUNorm
	TypeSNorm
	TypeUInt
	TypeSInt
	TypeSFloat
	TypeUFloat
	TypeSRGB
)

// String returns the suffix used in format names.
func (t Type) String() string {
	switch t {
	case TypeUNorm:
		return "UNORM"
	case TypeSNorm:
		return "SNORM"
	case TypeUInt:
		return "UINT"
	case TypeSInt:
		return "SINT"
	case TypeSFloat:
		return "SFLOAT"
	case TypeUFloat:
		return "UFLOAT"
	case TypeSRGB:
		return "SRGB"
	default:
		return "NONE"
	}
}

// Channel names a logical colour channel.
type Channel uint8

const (
	ChannelR Channel = iota
	ChannelG
	ChannelB
	ChannelA
)

// Info holds the layout of a format.
//
// For uncompressed formats Bits and Swizzle describe the stored channels in
// memory order: Swizzle[i] is the logical channel held by stored channel i.
// Packed formats store every channel in one little-endian word of BlockBytes,
// least significant channel first.
type Info struct {
	Name     string
	Type     Type
	Channels int
	Bits     [4]uint8
	Swizzle  [4]Channel
	Alpha    bool
	Packed   bool

	// Block footprint; 1x1x1 for uncompressed formats.
	BlockWidth  uint32
	BlockHeight uint32
	BlockDepth  uint32
	BlockBytes  uint32

	Compressed bool
}

var (
	rgba = [4]Channel{ChannelR, ChannelG, ChannelB, ChannelA}
	bgra = [4]Channel{ChannelB, ChannelG, ChannelR, ChannelA}
)

func plain(name string, t Type, channels int, bits uint8, swizzle [4]Channel) Info {
	info := Info{
		Name:        name,
		Type:        t,
		Channels:    channels,
		Swizzle:     swizzle,
		BlockWidth:  1,
		BlockHeight: 1,
		BlockDepth:  1,
		BlockBytes:  uint32(channels) * uint32(bits) / 8,
	}
	for i := 0; i < channels; i++ {
		info.Bits[i] = bits
		if swizzle[i] == ChannelA {
			info.Alpha = true
		}
	}
	return info
}

func block(name string, t Type, channels int, bytes uint32, alpha bool) Info {
	return Info{
		Name:        name,
		Type:        t,
		Channels:    channels,
		Swizzle:     rgba,
		Alpha:       alpha,
		BlockWidth:  4,
		BlockHeight: 4,
		BlockDepth:  1,
		BlockBytes:  bytes,
		Compressed:  true,
	}
}

var infoTable = [formatCount]Info{
	Undefined: {Name: "UNDEFINED"},

	R8UNorm:       plain("R8_UNORM", TypeUNorm, 1, 8, rgba),
	R8G8UNorm:     plain("R8G8_UNORM", TypeUNorm, 2, 8, rgba),
	R8G8B8UNorm:   plain("R8G8B8_UNORM", TypeUNorm, 3, 8, rgba),
	B8G8R8UNorm:   plain("B8G8R8_UNORM", TypeUNorm, 3, 8, bgra),
	R8G8B8A8UNorm: plain("R8G8B8A8_UNORM", TypeUNorm, 4, 8, rgba),
	R8G8B8A8SNorm: plain("R8G8B8A8_SNORM", TypeSNorm, 4, 8, rgba),
	R8G8B8A8UInt:  plain("R8G8B8A8_UINT", TypeUInt, 4, 8, rgba),
	R8G8B8A8SRGB:  plain("R8G8B8A8_SRGB", TypeSRGB, 4, 8, rgba),
	B8G8R8A8UNorm: plain("B8G8R8A8_UNORM", TypeUNorm, 4, 8, bgra),
	B8G8R8A8SRGB:  plain("B8G8R8A8_SRGB", TypeSRGB, 4, 8, bgra),

	R16UNorm:           plain("R16_UNORM", TypeUNorm, 1, 16, rgba),
	R16UInt:            plain("R16_UINT", TypeUInt, 1, 16, rgba),
	R16G16UNorm:        plain("R16G16_UNORM", TypeUNorm, 2, 16, rgba),
	R16G16B16A16UNorm:  plain("R16G16B16A16_UNORM", TypeUNorm, 4, 16, rgba),
	R16SFloat:          plain("R16_SFLOAT", TypeSFloat, 1, 16, rgba),
	R16G16SFloat:       plain("R16G16_SFLOAT", TypeSFloat, 2, 16, rgba),
	R16G16B16A16SFloat: plain("R16G16B16A16_SFLOAT", TypeSFloat, 4, 16, rgba),

	R32UInt:            plain("R32_UINT", TypeUInt, 1, 32, rgba),
	R32SFloat:          plain("R32_SFLOAT", TypeSFloat, 1, 32, rgba),
	R32G32SFloat:       plain("R32G32_SFLOAT", TypeSFloat, 2, 32, rgba),
	R32G32B32SFloat:    plain("R32G32B32_SFLOAT", TypeSFloat, 3, 32, rgba),
	R32G32B32A32SFloat: plain("R32G32B32A32_SFLOAT", TypeSFloat, 4, 32, rgba),

	B5G6R5UNorm: {
		Name:        "B5G6R5_UNORM",
		Type:        TypeUNorm,
		Channels:    3,
		Bits:        [4]uint8{5, 6, 5},
		Swizzle:     bgra,
		Packed:      true,
		BlockWidth:  1,
		BlockHeight: 1,
		BlockDepth:  1,
		BlockBytes:  2,
	},

	BC1RGBUNorm:  block("DXBC1_RGB_UNORM", TypeUNorm, 3, 8, false),
	BC1RGBAUNorm: block("DXBC1_RGBA_UNORM", TypeUNorm, 4, 8, true),
	BC2UNorm:     block("DXBC2_UNORM", TypeUNorm, 4, 16, true),
	BC3UNorm:     block("DXBC3_UNORM", TypeUNorm, 4, 16, true),
	BC4UNorm:     block("DXBC4_UNORM", TypeUNorm, 1, 8, false),
	BC5UNorm:     block("DXBC5_UNORM", TypeUNorm, 2, 16, false),
	BC6HUFloat:   block("DXBC6H_UFLOAT", TypeUFloat, 3, 16, false),
	BC7UNorm:     block("DXBC7_UNORM", TypeUNorm, 4, 16, true),
	BC7SRGB:      block("DXBC7_SRGB", TypeSRGB, 4, 16, true),
}

var byName = func() map[string]Format {
	m := make(map[string]Format, formatCount)
	for f := Format(1); f < formatCount; f++ {
		m[infoTable[f].Name] = f
	}
	// common aliases
	m["BC1_RGB_UNORM"] = BC1RGBUNorm
	m["BC1_RGBA_UNORM"] = BC1RGBAUNorm
	m["BC2_UNORM"] = BC2UNorm
	m["BC3_UNORM"] = BC3UNorm
	m["BC4_UNORM"] = BC4UNorm
	m["BC5_UNORM"] = BC5UNorm
	m["BC6H_UFLOAT"] = BC6HUFloat
	m["BC7_UNORM"] = BC7UNorm
	m["BC7_SRGB"] = BC7SRGB
	return m
}()

// FromName resolves a format by name, e.g. "R8G8B8A8_UNORM". Matching is
// case-insensitive.
func FromName(name string) (Format, error) {
	f, ok := byName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Undefined, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return f, nil
}

// All returns every defined format in declaration order.
func All() []Format {
	out := make([]Format, 0, formatCount-1)
	for f := Format(1); f < formatCount; f++ {
		out = append(out, f)
	}
	return out
}

// Info returns the layout of f, or the zero Info for unknown formats.
func (f Format) Info() Info {
	if f >= formatCount {
		return Info{}
	}
	return infoTable[f]
}

// Name returns the canonical name of f.
func (f Format) Name() string {
	if f == Undefined || f >= formatCount {
		return "UNDEFINED"
	}
	return infoTable[f].Name
}

func (f Format) String() string {
	return f.Name()
}

// IsValid reports whether f is a defined format other than Undefined.
func (f Format) IsValid() bool {
	return f > Undefined && f < formatCount
}

// IsCompressed reports whether f is block compressed.
func (f Format) IsCompressed() bool {
	return f.Info().Compressed
}

// HasAlpha reports whether f stores an alpha channel.
func (f Format) HasAlpha() bool {
	return f.Info().Alpha
}

// ChannelCount returns the number of stored (or decoded, for block formats)
// channels.
func (f Format) ChannelCount() int {
	return f.Info().Channels
}

// BlockSize returns the block footprint in pixels.
func (f Format) BlockSize() (w, h, d uint32) {
	info := f.Info()
	return info.BlockWidth, info.BlockHeight, info.BlockDepth
}

// BytesPerBlock returns the size of one block; for uncompressed formats a
// block is one pixel.
func (f Format) BytesPerBlock() uint32 {
	return f.Info().BlockBytes
}

// BitsPerPixel returns the average storage cost of one pixel.
func (f Format) BitsPerPixel() uint32 {
	info := f.Info()
	texels := info.BlockWidth * info.BlockHeight * info.BlockDepth
	if texels == 0 {
		return 0
	}
	return info.BlockBytes * 8 / texels
}

// ByteCount returns the number of bytes needed to store a w×h×d region.
// Partial blocks at the edges consume a full block. The product is not
// checked for overflow; gfx.Header.Validate bounds the shapes it accepts.
func (f Format) ByteCount(w, h, d uint32) uint64 {
	info := f.Info()
	if info.BlockBytes == 0 {
		return 0
	}
	bx, by, bz := f.BlockCount(w, h, d)
	return bx * by * bz * uint64(info.BlockBytes)
}

// BlockCount returns the number of blocks along each axis of a w×h×d region.
func (f Format) BlockCount(w, h, d uint32) (bx, by, bz uint64) {
	info := f.Info()
	return divUp(w, info.BlockWidth), divUp(h, info.BlockHeight), divUp(d, info.BlockDepth)
}

// RowBytes returns the bytes occupied by one row of blocks of width w.
func (f Format) RowBytes(w uint32) uint64 {
	info := f.Info()
	return divUp(w, info.BlockWidth) * uint64(info.BlockBytes)
}

func divUp(v, d uint32) uint64 {
	if d == 0 {
		return 0
	}
	return (uint64(v) + uint64(d) - 1) / uint64(d)
}
