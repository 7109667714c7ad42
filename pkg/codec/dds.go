package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/jpfielding/gfximage.go/pkg/format"
	"github.com/jpfielding/gfximage.go/pkg/gfx"
)

const (
	ddsMagic = "DDS "

	ddsHeaderSize = 124
	ddsPfSize     = 32
	dx10Size      = 20

	// DDSD flags
	DDSD_CAPS        = 0x1
	DDSD_HEIGHT      = 0x2
	DDSD_WIDTH       = 0x4
	DDSD_PITCH       = 0x8
	DDSD_PIXELFORMAT = 0x1000
	DDSD_MIPMAPCOUNT = 0x20000
	DDSD_LINEARSIZE  = 0x80000
	DDSD_DEPTH       = 0x800000

	// Pixel format flags
	DDPF_FOURCC    = 0x4
	DDPF_RGB       = 0x40
	DDPF_LUMINANCE = 0x20000

	// Caps
	DDSCAPS_COMPLEX  = 0x8
	DDSCAPS_TEXTURE  = 0x1000
	DDSCAPS_MIPMAP   = 0x400000
	DDSCAPS2_CUBEMAP = 0x200
	DDSCAPS2_FACES   = 0xfc00
	DDSCAPS2_VOLUME  = 0x200000

	// DX10 extension
	ddsDimension1D = 2
	ddsDimension2D = 3
	ddsDimension3D = 4
	ddsMiscCubemap = 0x4
)

// dxgiFormats maps formats to DXGI_FORMAT codes.
var dxgiFormats = map[format.Format]uint32{
	format.R32G32B32A32SFloat: 2,
	format.R32G32B32SFloat:    6,
	format.R16G16B16A16SFloat: 10,
	format.R16G16B16A16UNorm:  11,
	format.R32G32SFloat:       16,
	format.R8G8B8A8UNorm:      28,
	format.R8G8B8A8SRGB:       29,
	format.R8G8B8A8UInt:       30,
	format.R8G8B8A8SNorm:      31,
	format.R16G16SFloat:       34,
	format.R16G16UNorm:        35,
	format.R32SFloat:          41,
	format.R32UInt:            42,
	format.R8G8UNorm:          49,
	format.R16SFloat:          54,
	format.R16UNorm:           56,
	format.R16UInt:            57,
	format.R8UNorm:            61,
	format.BC1RGBAUNorm:       71,
	format.BC2UNorm:           74,
	format.BC3UNorm:           77,
	format.BC4UNorm:           80,
	format.BC5UNorm:           83,
	format.B5G6R5UNorm:        85,
	format.B8G8R8A8UNorm:      87,
	format.B8G8R8A8SRGB:       91,
	format.BC6HUFloat:         95,
	format.BC7UNorm:           98,
	format.BC7SRGB:            99,
}

var dxgiByCode = func() map[uint32]format.Format {
	m := make(map[uint32]format.Format, len(dxgiFormats))
	for f, code := range dxgiFormats {
		m[code] = f
	}
	return m
}()

// fourCCFormats maps legacy FourCC codes, including the numeric D3DFMT ones.
var fourCCFormats = map[string]format.Format{
	"DXT1":             format.BC1RGBUNorm,
	"DXT2":             format.BC2UNorm,
	"DXT3":             format.BC2UNorm,
	"DXT4":             format.BC3UNorm,
	"DXT5":             format.BC3UNorm,
	"ATI1":             format.BC4UNorm,
	"BC4U":             format.BC4UNorm,
	"ATI2":             format.BC5UNorm,
	"BC5U":             format.BC5UNorm,
	"\x24\x00\x00\x00": format.R16G16B16A16UNorm,
	"\x6f\x00\x00\x00": format.R16SFloat,
	"\x70\x00\x00\x00": format.R16G16SFloat,
	"\x71\x00\x00\x00": format.R16G16B16A16SFloat,
	"\x72\x00\x00\x00": format.R32SFloat,
	"\x73\x00\x00\x00": format.R32G32SFloat,
	"\x74\x00\x00\x00": format.R32G32B32A32SFloat,
}

// legacyOnly formats have no DXGI code and go out with a legacy pixel format.
func legacyOnly(f format.Format) bool {
	switch f {
	case format.BC1RGBUNorm, format.R8G8B8UNorm, format.B8G8R8UNorm:
		return true
	}
	return false
}

// ddsCodec stores complete chains: mip levels, arrays, cubemaps and volumes.
type ddsCodec struct{}

type ddsLayout struct {
	header gfx.Header
	levels int
}

func (c *ddsCodec) Name() string         { return "dds" }
func (c *ddsCodec) Extensions() []string { return []string{".dds"} }

func (c *ddsCodec) CanEncode(h gfx.Header) bool {
	if h.Depth() > 1 && h.Slices() > 1 {
		return false
	}
	if _, ok := dxgiFormats[h.Format()]; ok {
		return true
	}
	return legacyOnly(h.Format()) && (h.Slices() == 1 || h.IsCubemap() && h.Slices() == 6)
}

func readDDSLayout(r io.Reader) (ddsLayout, error) {
	var raw [4 + ddsHeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return ddsLayout{}, err
	}
	if string(raw[:4]) != ddsMagic {
		return ddsLayout{}, errors.New("missing DDS magic")
	}
	h := raw[4:]
	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(h[off:]) }
	if u32(0) != ddsHeaderSize || u32(72) != ddsPfSize {
		return ddsLayout{}, fmt.Errorf("bad header size %d", u32(0))
	}
	flags := u32(4)
	height, width := u32(8), u32(12)
	depth, levels := uint32(1), 1
	if flags&DDSD_DEPTH != 0 && u32(108)&DDSCAPS2_VOLUME != 0 {
		depth = max(1, u32(20))
	}
	if flags&DDSD_MIPMAPCOUNT != 0 {
		levels = max(1, int(u32(24)))
	}
	slices, cubes := uint32(1), uint32(0)
	caps2 := u32(108)
	if caps2&DDSCAPS2_CUBEMAP != 0 {
		if caps2&DDSCAPS2_FACES != DDSCAPS2_FACES {
			return ddsLayout{}, errors.New("partial cubemaps are not supported")
		}
		cubes = 1
	}

	var f format.Format
	pfFlags := u32(76)
	fourCC := string(h[80:84])
	switch {
	case pfFlags&DDPF_FOURCC != 0 && fourCC == "DX10":
		var ext [dx10Size]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return ddsLayout{}, err
		}
		code := binary.LittleEndian.Uint32(ext[0:])
		var ok bool
		if f, ok = dxgiByCode[code]; !ok {
			return ddsLayout{}, fmt.Errorf("unsupported DXGI format %d", code)
		}
		switch binary.LittleEndian.Uint32(ext[4:]) {
		case ddsDimension1D:
			height, depth = 1, 1
		case ddsDimension2D:
			depth = 1
		case ddsDimension3D:
			depth = max(1, u32(20))
		default:
			return ddsLayout{}, errors.New("unknown resource dimension")
		}
		slices = max(1, binary.LittleEndian.Uint32(ext[12:]))
		if binary.LittleEndian.Uint32(ext[8:])&ddsMiscCubemap != 0 {
			cubes = slices
		}
	case pfFlags&DDPF_FOURCC != 0:
		var ok bool
		if f, ok = fourCCFormats[fourCC]; !ok {
			return ddsLayout{}, fmt.Errorf("unsupported FourCC %q", fourCC)
		}
	case pfFlags&DDPF_RGB != 0:
		f = legacyRGBFormat(u32(84), u32(88))
	case pfFlags&DDPF_LUMINANCE != 0 && u32(84) == 8:
		f = format.R8UNorm
	case pfFlags&DDPF_LUMINANCE != 0 && u32(84) == 16:
		f = format.R16UNorm
	}
	if !f.IsValid() {
		return ddsLayout{}, fmt.Errorf("unsupported pixel format (flags %#x, %d bits)", pfFlags, u32(84))
	}

	var hdr gfx.Header
	var err error
	if cubes > 0 {
		hdr, err = gfx.NewCubemapHeader(width, height, cubes, f)
	} else {
		hdr, err = gfx.NewHeader(width, height, depth, slices, f)
	}
	return ddsLayout{header: hdr, levels: levels}, err
}

// legacyRGBFormat matches the bit count and red mask of a DDPF_RGB pixel
// format.
func legacyRGBFormat(bits, rMask uint32) format.Format {
	switch {
	case bits == 32 && rMask == 0xff:
		return format.R8G8B8A8UNorm
	case bits == 32 && rMask == 0xff0000:
		return format.B8G8R8A8UNorm
	case bits == 24 && rMask == 0xff:
		return format.R8G8B8UNorm
	case bits == 24 && rMask == 0xff0000:
		return format.B8G8R8UNorm
	case bits == 16 && rMask == 0xf800:
		return format.B5G6R5UNorm
	case bits == 8:
		return format.R8UNorm
	}
	return format.Undefined
}

func (c *ddsCodec) DecodeHeader(r io.Reader) (gfx.Header, error) {
	l, err := readDDSLayout(r)
	if err != nil {
		return gfx.Header{}, decodeErr("dds", err)
	}
	return l.header, nil
}

func (c *ddsCodec) Decode(r io.Reader) (*gfx.Image, error) {
	l, err := readDDSLayout(r)
	if err != nil {
		return nil, decodeErr("dds", err)
	}
	if err := checkDecodeSize(l.header, l.levels); err != nil {
		return nil, decodeErr("dds", err)
	}
	img, err := l.header.MaterializeNoClear()
	if err != nil {
		return nil, decodeErr("dds", err)
	}
	if err := img.CreateMipMapLevels(l.levels); err != nil {
		img.Destroy()
		return nil, decodeErr("dds", err)
	}
	// each array element (cube face) carries its own mip chain
	levels := chainLevels(img)
	for s := uint64(0); s < uint64(img.Slices()); s++ {
		for _, lvl := range levels {
			page := lvl.Shape().ByteCountPerPage()
			if _, err := io.ReadFull(r, lvl.Data()[s*page:(s+1)*page]); err != nil {
				img.Destroy()
				return nil, decodeErr("dds", fmt.Errorf("slice %d level %s: %w", s, lvl.Shape(), err))
			}
		}
	}
	return img, nil
}

func (c *ddsCodec) Encode(w io.Writer, img *gfx.Image) error {
	shape := img.Shape()
	if !c.CanEncode(shape) {
		return encodeErr("dds", fmt.Errorf("cannot store %s", shape))
	}
	levels := chainLevels(img)
	for _, lvl := range levels {
		if lvl.Data() == nil {
			return encodeErr("dds", gfx.ErrNullBuffer)
		}
	}
	f := shape.Format()

	var header [4 + ddsHeaderSize]byte
	copy(header[:], ddsMagic)
	h := header[4:]
	bo := func(off int, v uint32) { binary.LittleEndian.PutUint32(h[off:], v) }

	flags := uint32(DDSD_CAPS | DDSD_HEIGHT | DDSD_WIDTH | DDSD_PIXELFORMAT)
	caps := uint32(DDSCAPS_TEXTURE)
	var caps2 uint32
	if f.IsCompressed() {
		flags |= DDSD_LINEARSIZE
		bo(16, uint32(shape.ByteCountPerSlice()))
	} else {
		flags |= DDSD_PITCH
		bo(16, uint32(shape.ByteCountPerRow()))
	}
	if len(levels) > 1 {
		flags |= DDSD_MIPMAPCOUNT
		caps |= DDSCAPS_COMPLEX | DDSCAPS_MIPMAP
	}
	if shape.Is3D() {
		flags |= DDSD_DEPTH
		caps |= DDSCAPS_COMPLEX
		caps2 |= DDSCAPS2_VOLUME
	}
	if shape.IsCubemap() {
		caps |= DDSCAPS_COMPLEX
		caps2 |= DDSCAPS2_CUBEMAP | DDSCAPS2_FACES
	}
	bo(0, ddsHeaderSize)
	bo(4, flags)
	bo(8, shape.Height())
	bo(12, shape.Width())
	bo(20, shape.Depth())
	bo(24, uint32(len(levels)))
	bo(72, ddsPfSize)
	bo(104, caps)
	bo(108, caps2)

	var ext []byte
	switch f {
	case format.BC1RGBUNorm:
		bo(76, DDPF_FOURCC)
		copy(h[80:84], "DXT1")
	case format.R8G8B8UNorm:
		bo(76, DDPF_RGB)
		bo(84, 24)
		bo(88, 0x0000ff)
		bo(92, 0x00ff00)
		bo(96, 0xff0000)
	case format.B8G8R8UNorm:
		bo(76, DDPF_RGB)
		bo(84, 24)
		bo(88, 0xff0000)
		bo(92, 0x00ff00)
		bo(96, 0x0000ff)
	default:
		bo(76, DDPF_FOURCC)
		copy(h[80:84], "DX10")
		ext = make([]byte, dx10Size)
		binary.LittleEndian.PutUint32(ext[0:], dxgiFormats[f])
		dim := uint32(ddsDimension2D)
		if shape.Is3D() {
			dim = ddsDimension3D
		} else if shape.Is1D() && !shape.IsCubemap() {
			dim = ddsDimension1D
		}
		binary.LittleEndian.PutUint32(ext[4:], dim)
		arraySize := shape.Slices()
		if shape.IsCubemap() {
			binary.LittleEndian.PutUint32(ext[8:], ddsMiscCubemap)
			arraySize /= 6
		}
		binary.LittleEndian.PutUint32(ext[12:], arraySize)
	}
	if _, err := w.Write(header[:]); err != nil {
		return encodeErr("dds", err)
	}
	if ext != nil {
		if _, err := w.Write(ext); err != nil {
			return encodeErr("dds", err)
		}
	}
	for s := uint64(0); s < uint64(shape.Slices()); s++ {
		for _, lvl := range levels {
			page := lvl.Shape().ByteCountPerPage()
			if _, err := w.Write(lvl.Data()[s*page : (s+1)*page]); err != nil {
				return encodeErr("dds", err)
			}
		}
	}
	return nil
}

// chainLevels lists img and every mip level linked after it.
func chainLevels(img *gfx.Image) []*gfx.Image {
	levels := make([]*gfx.Image, 0, img.LinkedImageCount())
	for i, n := 0, img.LinkedImageCount(); i < n; i++ {
		lvl, err := img.LinkedImageOf(i)
		if err != nil {
			break
		}
		levels = append(levels, lvl)
	}
	return levels
}
