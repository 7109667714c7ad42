package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jpfielding/gfximage.go/pkg/format"
	"github.com/jpfielding/gfximage.go/pkg/gfx"
	"github.com/jpfielding/gfximage.go/pkg/util"
	"github.com/klauspost/compress/zstd"
)

const (
	gfxzMagic   = "GFXZ"
	gfxzVersion = 1

	gfxzCubemap = 0x1
)

// ErrChecksum reports a GFXZ payload whose content does not match its header.
var ErrChecksum = errors.New("codec: content checksum mismatch")

// gfxzHeader is the fixed part of a GFXZ file. The format name, one slice
// count per slice image and the zstd payload follow it.
type gfxzHeader struct {
	Magic       [4]byte
	Version     uint16
	Flags       uint16
	Width       uint32
	Height      uint32
	Depth       uint32
	Slices      uint32
	Levels      uint16
	SliceImages uint16
	Content     [16]byte
	NameLen     uint8
}

// gfxzCodec is the native container: every mip level and slice image of a
// chain, losslessly, in any format.
type gfxzCodec struct {
	level zstd.EncoderLevel
}

func (c *gfxzCodec) Name() string                { return "gfxz" }
func (c *gfxzCodec) Extensions() []string        { return []string{".gfxz"} }
func (c *gfxzCodec) CanEncode(h gfx.Header) bool { return h.Format().IsValid() }

// ContentID derives a stable identifier from the pixels of img, its mip
// levels and its slice images.
func ContentID(img *gfx.Image) uuid.UUID {
	return util.ContentUUID(chainBuffers(img)...)
}

// chainBuffers lists the level buffers of img followed by its slice images.
func chainBuffers(img *gfx.Image) [][]byte {
	var bufs [][]byte
	for _, lvl := range chainLevels(img) {
		bufs = append(bufs, lvl.Data())
	}
	for i := 1; i < img.SliceImageCount(); i++ {
		sub, err := img.SliceImageOf(i)
		if err != nil {
			break
		}
		bufs = append(bufs, sub.Data())
	}
	return bufs
}

type gfxzLayout struct {
	header      gfx.Header
	levels      int
	sliceCounts []uint32
	content     uuid.UUID
}

func readGFXZLayout(r io.Reader) (gfxzLayout, error) {
	var fh gfxzHeader
	if err := binary.Read(r, binary.LittleEndian, &fh); err != nil {
		return gfxzLayout{}, err
	}
	if string(fh.Magic[:]) != gfxzMagic {
		return gfxzLayout{}, errors.New("missing GFXZ magic")
	}
	if fh.Version != gfxzVersion {
		return gfxzLayout{}, fmt.Errorf("unsupported version %d", fh.Version)
	}
	name := make([]byte, fh.NameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return gfxzLayout{}, err
	}
	f, err := format.FromName(string(name))
	if err != nil {
		return gfxzLayout{}, err
	}
	counts := make([]uint32, fh.SliceImages)
	if err := binary.Read(r, binary.LittleEndian, counts); err != nil {
		return gfxzLayout{}, err
	}

	var h gfx.Header
	if fh.Flags&gfxzCubemap != 0 {
		if fh.Slices%6 != 0 {
			return gfxzLayout{}, fmt.Errorf("cubemap with %d faces", fh.Slices)
		}
		h, err = gfx.NewCubemapHeader(fh.Width, fh.Height, fh.Slices/6, f)
	} else {
		h, err = gfx.NewHeader(fh.Width, fh.Height, fh.Depth, fh.Slices, f)
	}
	if err != nil {
		return gfxzLayout{}, err
	}
	if int(fh.Levels) < 1 || int(fh.Levels) > h.MipMapLevelCount() {
		return gfxzLayout{}, fmt.Errorf("%d levels for %s", fh.Levels, h)
	}
	return gfxzLayout{
		header:      h,
		levels:      int(fh.Levels),
		sliceCounts: counts,
		content:     uuid.UUID(fh.Content),
	}, nil
}

func (c *gfxzCodec) DecodeHeader(r io.Reader) (gfx.Header, error) {
	l, err := readGFXZLayout(r)
	if err != nil {
		return gfx.Header{}, decodeErr("gfxz", err)
	}
	return l.header, nil
}

func (c *gfxzCodec) Decode(r io.Reader) (*gfx.Image, error) {
	l, err := readGFXZLayout(r)
	if err != nil {
		return nil, decodeErr("gfxz", err)
	}
	if err := checkDecodeSize(l.header, l.levels, l.sliceCounts...); err != nil {
		return nil, decodeErr("gfxz", err)
	}
	img, err := l.header.MaterializeNoClear()
	if err != nil {
		return nil, decodeErr("gfxz", err)
	}
	if err := c.decodePayload(r, img, l); err != nil {
		img.Destroy()
		return nil, decodeErr("gfxz", err)
	}
	return img, nil
}

func (c *gfxzCodec) decodePayload(r io.Reader, img *gfx.Image, l gfxzLayout) error {
	if err := img.CreateMipMapLevels(l.levels); err != nil {
		return err
	}
	for _, n := range l.sliceCounts {
		h, err := gfx.NewHeader(img.Width(), img.Height(), img.Depth(), n, img.Format())
		if err != nil {
			return err
		}
		sub, err := h.MaterializeNoClear()
		if err != nil {
			return err
		}
		if err := img.AppendSliceImage(sub); err != nil {
			sub.Destroy()
			return err
		}
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer dec.Close()
	bufs := chainBuffers(img)
	for _, b := range bufs {
		if _, err := io.ReadFull(dec, b); err != nil {
			return fmt.Errorf("zstd decode: %w", err)
		}
	}
	if got := util.ContentUUID(bufs...); got != l.content {
		return fmt.Errorf("%w: %s, want %s", ErrChecksum, got, l.content)
	}
	return nil
}

func (c *gfxzCodec) Encode(w io.Writer, img *gfx.Image) error {
	shape := img.Shape()
	bufs := chainBuffers(img)
	for _, b := range bufs {
		if b == nil {
			return encodeErr("gfxz", gfx.ErrNullBuffer)
		}
	}
	name := shape.Format().Name()
	fh := gfxzHeader{
		Version:     gfxzVersion,
		Width:       shape.Width(),
		Height:      shape.Height(),
		Depth:       shape.Depth(),
		Slices:      shape.Slices(),
		Levels:      uint16(img.LinkedImageCount()),
		SliceImages: uint16(img.SliceImageCount() - 1),
		Content:     util.ContentUUID(bufs...),
		NameLen:     uint8(len(name)),
	}
	copy(fh.Magic[:], gfxzMagic)
	if shape.IsCubemap() {
		fh.Flags |= gfxzCubemap
	}

	var head bytes.Buffer
	if err := binary.Write(&head, binary.LittleEndian, &fh); err != nil {
		return encodeErr("gfxz", err)
	}
	head.WriteString(name)
	for i := 1; i < img.SliceImageCount(); i++ {
		sub, err := img.SliceImageOf(i)
		if err != nil {
			return encodeErr("gfxz", err)
		}
		if err := binary.Write(&head, binary.LittleEndian, sub.Slices()); err != nil {
			return encodeErr("gfxz", err)
		}
	}
	if _, err := w.Write(head.Bytes()); err != nil {
		return encodeErr("gfxz", err)
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(c.level))
	if err != nil {
		return encodeErr("gfxz", err)
	}
	for _, b := range bufs {
		if _, err := enc.Write(b); err != nil {
			enc.Close()
			return encodeErr("gfxz", fmt.Errorf("zstd encode: %w", err))
		}
	}
	if err := enc.Close(); err != nil {
		return encodeErr("gfxz", fmt.Errorf("zstd encode: %w", err))
	}
	return nil
}
