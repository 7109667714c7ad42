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
	ktxIdentifier = "\xabKTX 11\xbb\r\n\x1a\n"
	ktxHeaderSize = 64
	ktxEndianness = 0x04030201
)

// OpenGL enums used by KTX headers
const (
	glByte          = 0x1400
	glUnsignedByte  = 0x1401
	glUnsignedShort = 0x1403
	glUnsignedInt   = 0x1405
	glFloat         = 0x1406
	glHalfFloat     = 0x140b
	glUnsigned565   = 0x8363

	glRed         = 0x1903
	glRG          = 0x8227
	glRGB         = 0x1907
	glRGBA        = 0x1908
	glBGR         = 0x80e0
	glBGRA        = 0x80e1
	glRedInteger  = 0x8d94
	glRGBAInteger = 0x8d99
)

// glFormat is the transfer description of one format.
type glFormat struct {
	internal uint32
	format   uint32
	typ      uint32
	typeSize uint32
	base     uint32
}

var glFormats = map[format.Format]glFormat{
	format.R8UNorm:            {0x8229, glRed, glUnsignedByte, 1, glRed},
	format.R8G8UNorm:          {0x822b, glRG, glUnsignedByte, 1, glRG},
	format.R8G8B8UNorm:        {0x8051, glRGB, glUnsignedByte, 1, glRGB},
	format.B8G8R8UNorm:        {0x8051, glBGR, glUnsignedByte, 1, glRGB},
	format.R8G8B8A8UNorm:      {0x8058, glRGBA, glUnsignedByte, 1, glRGBA},
	format.R8G8B8A8SNorm:      {0x8f97, glRGBA, glByte, 1, glRGBA},
	format.R8G8B8A8UInt:       {0x8d7c, glRGBAInteger, glUnsignedByte, 1, glRGBA},
	format.R8G8B8A8SRGB:       {0x8c43, glRGBA, glUnsignedByte, 1, glRGBA},
	format.B8G8R8A8UNorm:      {0x8058, glBGRA, glUnsignedByte, 1, glRGBA},
	format.B8G8R8A8SRGB:       {0x8c43, glBGRA, glUnsignedByte, 1, glRGBA},
	format.R16UNorm:           {0x822a, glRed, glUnsignedShort, 2, glRed},
	format.R16UInt:            {0x8234, glRedInteger, glUnsignedShort, 2, glRed},
	format.R16G16UNorm:        {0x822c, glRG, glUnsignedShort, 2, glRG},
	format.R16G16B16A16UNorm:  {0x805b, glRGBA, glUnsignedShort, 2, glRGBA},
	format.R16SFloat:          {0x822d, glRed, glHalfFloat, 2, glRed},
	format.R16G16SFloat:       {0x822f, glRG, glHalfFloat, 2, glRG},
	format.R16G16B16A16SFloat: {0x881a, glRGBA, glHalfFloat, 2, glRGBA},
	format.R32UInt:            {0x8236, glRedInteger, glUnsignedInt, 4, glRed},
	format.R32SFloat:          {0x822e, glRed, glFloat, 4, glRed},
	format.R32G32SFloat:       {0x8230, glRG, glFloat, 4, glRG},
	format.R32G32B32SFloat:    {0x8815, glRGB, glFloat, 4, glRGB},
	format.R32G32B32A32SFloat: {0x8814, glRGBA, glFloat, 4, glRGBA},
	format.B5G6R5UNorm:        {0x8d62, glRGB, glUnsigned565, 2, glRGB},
	format.BC1RGBUNorm:        {0x83f0, 0, 0, 1, glRGB},
	format.BC1RGBAUNorm:       {0x83f1, 0, 0, 1, glRGBA},
	format.BC2UNorm:           {0x83f2, 0, 0, 1, glRGBA},
	format.BC3UNorm:           {0x83f3, 0, 0, 1, glRGBA},
	format.BC4UNorm:           {0x8dbb, 0, 0, 1, glRed},
	format.BC5UNorm:           {0x8dbd, 0, 0, 1, glRG},
	format.BC6HUFloat:         {0x8e8f, 0, 0, 1, glRGB},
	format.BC7UNorm:           {0x8e8c, 0, 0, 1, glRGBA},
	format.BC7SRGB:            {0x8e8d, 0, 0, 1, glRGBA},
}

// ktxFormat finds the format whose internal format and transfer format match.
func ktxFormat(internal, transfer uint32) (format.Format, bool) {
	for f, gl := range glFormats {
		if gl.internal == internal && gl.format == transfer {
			return f, true
		}
	}
	return format.Undefined, false
}

// ktxCodec stores complete chains in the KTX 1.1 container.
type ktxCodec struct{}

func (c *ktxCodec) Name() string         { return "ktx" }
func (c *ktxCodec) Extensions() []string { return []string{".ktx"} }

func (c *ktxCodec) CanEncode(h gfx.Header) bool {
	_, ok := glFormats[h.Format()]
	return ok && !(h.Depth() > 1 && h.Slices() > 1)
}

type ktxLayout struct {
	header gfx.Header
	levels int
}

func readKTXLayout(r io.Reader) (ktxLayout, error) {
	var raw [ktxHeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return ktxLayout{}, err
	}
	if string(raw[:12]) != ktxIdentifier {
		return ktxLayout{}, errors.New("missing KTX identifier")
	}
	u32 := func(i int) uint32 { return binary.LittleEndian.Uint32(raw[12+4*i:]) }
	if u32(0) != ktxEndianness {
		return ktxLayout{}, errors.New("big-endian KTX is not supported")
	}
	transfer, internal := u32(3), u32(4)
	width, height, depth := u32(6), max(1, u32(7)), max(1, u32(8))
	elements, faces, levels := u32(9), u32(10), max(1, int(u32(11)))
	if _, err := io.CopyN(io.Discard, r, int64(u32(12))); err != nil {
		return ktxLayout{}, err
	}
	f, ok := ktxFormat(internal, transfer)
	if !ok {
		return ktxLayout{}, fmt.Errorf("unsupported internal format %#x", internal)
	}
	var h gfx.Header
	var err error
	switch faces {
	case 6:
		h, err = gfx.NewCubemapHeader(width, height, max(1, elements), f)
	case 1:
		h, err = gfx.NewHeader(width, height, depth, max(1, elements), f)
	default:
		return ktxLayout{}, fmt.Errorf("unsupported face count %d", faces)
	}
	return ktxLayout{header: h, levels: levels}, err
}

func (c *ktxCodec) DecodeHeader(r io.Reader) (gfx.Header, error) {
	l, err := readKTXLayout(r)
	if err != nil {
		return gfx.Header{}, decodeErr("ktx", err)
	}
	return l.header, nil
}

// ktxRowPadding is the row padding to a 4-byte boundary, zero for block
// formats.
func ktxRowPadding(h gfx.Header) uint64 {
	if h.Format().IsCompressed() {
		return 0
	}
	return (4 - h.ByteCountPerRow()%4) % 4
}

func (c *ktxCodec) Decode(r io.Reader) (*gfx.Image, error) {
	l, err := readKTXLayout(r)
	if err != nil {
		return nil, decodeErr("ktx", err)
	}
	if err := checkDecodeSize(l.header, l.levels); err != nil {
		return nil, decodeErr("ktx", err)
	}
	img, err := l.header.MaterializeNoClear()
	if err != nil {
		return nil, decodeErr("ktx", err)
	}
	if err := img.CreateMipMapLevels(l.levels); err != nil {
		img.Destroy()
		return nil, decodeErr("ktx", err)
	}
	var size [4]byte
	for _, lvl := range chainLevels(img) {
		if _, err := io.ReadFull(r, size[:]); err != nil {
			img.Destroy()
			return nil, decodeErr("ktx", err)
		}
		if err := readKTXLevel(r, lvl); err != nil {
			img.Destroy()
			return nil, decodeErr("ktx", fmt.Errorf("level %s: %w", lvl.Shape(), err))
		}
	}
	return img, nil
}

// readKTXLevel fills one level, dropping row and mip padding. Cube face
// padding is always zero since rows are already 4-byte aligned.
func readKTXLevel(r io.Reader, lvl *gfx.Image) error {
	h := lvl.Shape()
	pad := ktxRowPadding(h)
	pix := lvl.Data()
	if pad == 0 {
		_, err := io.ReadFull(r, pix)
		if err != nil {
			return err
		}
		return skipMipPadding(r, uint64(len(pix)))
	}
	row := h.ByteCountPerRow()
	scratch := make([]byte, pad)
	var read uint64
	for off := uint64(0); off < uint64(len(pix)); off += row {
		if _, err := io.ReadFull(r, pix[off:off+row]); err != nil {
			return err
		}
		if _, err := io.ReadFull(r, scratch); err != nil {
			return err
		}
		read += row + pad
	}
	return skipMipPadding(r, read)
}

func skipMipPadding(r io.Reader, n uint64) error {
	if pad := (4 - n%4) % 4; pad > 0 {
		_, err := io.CopyN(io.Discard, r, int64(pad))
		return err
	}
	return nil
}

func (c *ktxCodec) Encode(w io.Writer, img *gfx.Image) error {
	shape := img.Shape()
	if !c.CanEncode(shape) {
		return encodeErr("ktx", fmt.Errorf("cannot store %s", shape))
	}
	levels := chainLevels(img)
	for _, lvl := range levels {
		if lvl.Data() == nil {
			return encodeErr("ktx", gfx.ErrNullBuffer)
		}
	}
	gl := glFormats[shape.Format()]

	var header [ktxHeaderSize]byte
	copy(header[:], ktxIdentifier)
	bo := func(i int, v uint32) { binary.LittleEndian.PutUint32(header[12+4*i:], v) }
	bo(0, ktxEndianness)
	bo(1, gl.typ)
	bo(2, gl.typeSize)
	bo(3, gl.format)
	bo(4, gl.internal)
	bo(5, gl.base)
	bo(6, shape.Width())
	if !shape.Is1D() || shape.IsCubemap() {
		bo(7, shape.Height())
	}
	if shape.Is3D() {
		bo(8, shape.Depth())
	}
	faces, elements := uint32(1), shape.Slices()
	if shape.IsCubemap() {
		faces, elements = 6, elements/6
	}
	if elements == 1 {
		elements = 0
	}
	bo(9, elements)
	bo(10, faces)
	bo(11, uint32(len(levels)))
	if _, err := w.Write(header[:]); err != nil {
		return encodeErr("ktx", err)
	}

	var size [4]byte
	padding := make([]byte, 4)
	for _, lvl := range levels {
		h := lvl.Shape()
		pad := ktxRowPadding(h)
		row := h.ByteCountPerRow()
		rows := h.ByteCount() / row
		total := h.ByteCount() + rows*pad
		imageSize := total
		if shape.IsCubemap() && elements == 0 {
			imageSize = total / 6
		}
		binary.LittleEndian.PutUint32(size[:], uint32(imageSize))
		if _, err := w.Write(size[:]); err != nil {
			return encodeErr("ktx", err)
		}
		pix := lvl.Data()
		if pad == 0 {
			if _, err := w.Write(pix); err != nil {
				return encodeErr("ktx", err)
			}
		} else {
			for off := uint64(0); off < uint64(len(pix)); off += row {
				if _, err := w.Write(pix[off : off+row]); err != nil {
					return encodeErr("ktx", err)
				}
				if _, err := w.Write(padding[:pad]); err != nil {
					return encodeErr("ktx", err)
				}
			}
		}
		if mip := (4 - total%4) % 4; mip > 0 {
			if _, err := w.Write(padding[:mip]); err != nil {
				return encodeErr("ktx", err)
			}
		}
	}
	return nil
}
