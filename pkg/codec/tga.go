package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/jpfielding/gfximage.go/pkg/format"
	"github.com/jpfielding/gfximage.go/pkg/gfx"
)

// Truevision TGA image types
const (
	tgaTrueColor    = 2
	tgaGray         = 3
	tgaTrueColorRLE = 10
	tgaGrayRLE      = 11

	tgaHeaderSize = 18
	tgaTopLeft    = 0x20
	tgaRightLeft  = 0x10
)

// tgaCodec stores 8-bit grey, BGR and BGRA pictures, run-length encoded when
// rle is set.
type tgaCodec struct {
	rle bool
}

type tgaHeader struct {
	idLength   uint8
	cmapType   uint8
	imageType  uint8
	cmapLength uint16
	cmapBits   uint8
	width      uint16
	height     uint16
	depth      uint8
	descriptor uint8
}

func (c *tgaCodec) Name() string         { return "tga" }
func (c *tgaCodec) Extensions() []string { return []string{".tga"} }

func (c *tgaCodec) CanEncode(h gfx.Header) bool {
	return isFlat(h) && h.Width() <= 0xffff && h.Height() <= 0xffff
}

func readTGAHeader(r io.Reader) (tgaHeader, gfx.Header, error) {
	var raw [tgaHeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return tgaHeader{}, gfx.Header{}, err
	}
	th := tgaHeader{
		idLength:   raw[0],
		cmapType:   raw[1],
		imageType:  raw[2],
		cmapLength: binary.LittleEndian.Uint16(raw[5:]),
		cmapBits:   raw[7],
		width:      binary.LittleEndian.Uint16(raw[12:]),
		height:     binary.LittleEndian.Uint16(raw[14:]),
		depth:      raw[16],
		descriptor: raw[17],
	}
	var f format.Format
	switch {
	case (th.imageType == tgaGray || th.imageType == tgaGrayRLE) && th.depth == 8:
		f = format.R8UNorm
	case (th.imageType == tgaTrueColor || th.imageType == tgaTrueColorRLE) && th.depth == 24:
		f = format.B8G8R8UNorm
	case (th.imageType == tgaTrueColor || th.imageType == tgaTrueColorRLE) && th.depth == 32:
		f = format.B8G8R8A8UNorm
	default:
		return th, gfx.Header{}, fmt.Errorf("unsupported image type %d at %d bits", th.imageType, th.depth)
	}
	if th.descriptor&tgaRightLeft != 0 {
		return th, gfx.Header{}, errors.New("right-to-left pixel order")
	}
	h, err := gfx.NewHeader(uint32(th.width), uint32(th.height), 1, 1, f)
	return th, h, err
}

func (c *tgaCodec) DecodeHeader(r io.Reader) (gfx.Header, error) {
	_, h, err := readTGAHeader(r)
	if err != nil {
		return gfx.Header{}, decodeErr("tga", err)
	}
	return h, nil
}

func (c *tgaCodec) Decode(r io.Reader) (*gfx.Image, error) {
	th, h, err := readTGAHeader(r)
	if err != nil {
		return nil, decodeErr("tga", err)
	}
	// image id and any colour map precede the pixels
	skip := int64(th.idLength)
	if th.cmapType != 0 {
		skip += int64(th.cmapLength) * int64((th.cmapBits+7)/8)
	}
	if _, err := io.CopyN(io.Discard, r, skip); err != nil {
		return nil, decodeErr("tga", err)
	}
	if err := checkDecodeSize(h, 1); err != nil {
		return nil, decodeErr("tga", err)
	}

	img, err := h.MaterializeNoClear()
	if err != nil {
		return nil, decodeErr("tga", err)
	}
	pix := img.Data()
	bpp := int(th.depth / 8)
	if th.imageType == tgaTrueColorRLE || th.imageType == tgaGrayRLE {
		err = decodeTGARLE(r, pix, bpp)
	} else {
		_, err = io.ReadFull(r, pix)
	}
	if err != nil {
		img.Destroy()
		return nil, decodeErr("tga", err)
	}
	if th.descriptor&tgaTopLeft == 0 {
		flipRows(pix, int(h.ByteCountPerRow()))
	}
	return img, nil
}

func (c *tgaCodec) Encode(w io.Writer, img *gfx.Image) error {
	if !c.CanEncode(img.Shape()) {
		return encodeErr("tga", fmt.Errorf("cannot store %s", img.Shape()))
	}
	src := img
	switch img.Format() {
	case format.R8UNorm, format.B8G8R8UNorm, format.B8G8R8A8UNorm:
	default:
		target := format.B8G8R8UNorm
		if img.Format().HasAlpha() {
			target = format.B8G8R8A8UNorm
		}
		conv, err := gfx.FastConvert(img, target)
		if err != nil {
			return encodeErr("tga", err)
		}
		defer conv.Destroy()
		src = conv
	}
	pix := src.Data()
	if pix == nil {
		return encodeErr("tga", gfx.ErrNullBuffer)
	}

	var hdr [tgaHeaderSize]byte
	bpp := src.Format().BitsPerPixel()
	switch {
	case src.Format() == format.R8UNorm && c.rle:
		hdr[2] = tgaGrayRLE
	case src.Format() == format.R8UNorm:
		hdr[2] = tgaGray
	case c.rle:
		hdr[2] = tgaTrueColorRLE
	default:
		hdr[2] = tgaTrueColor
	}
	binary.LittleEndian.PutUint16(hdr[12:], uint16(src.Width()))
	binary.LittleEndian.PutUint16(hdr[14:], uint16(src.Height()))
	hdr[16] = uint8(bpp)
	hdr[17] = tgaTopLeft
	if src.Format() == format.B8G8R8A8UNorm {
		hdr[17] |= 8
	}
	if _, err := w.Write(hdr[:]); err != nil {
		return encodeErr("tga", err)
	}

	if !c.rle {
		if _, err := w.Write(pix[:src.Shape().ByteCount()]); err != nil {
			return encodeErr("tga", err)
		}
		return nil
	}
	stride := int(src.Shape().ByteCountPerRow())
	for y := 0; y < int(src.Height()); y++ {
		row := encodeTGARLE(pix[y*stride:(y+1)*stride], int(bpp/8))
		if _, err := w.Write(row); err != nil {
			return encodeErr("tga", err)
		}
	}
	return nil
}

// encodeTGARLE packs one row of bpp-byte pixels into TGA packets. A run
// packet header is 0x80|(n-1) followed by one pixel, a raw packet header is
// n-1 followed by n pixels.
func encodeTGARLE(data []byte, bpp int) []byte {
	n := len(data) / bpp
	if n == 0 {
		return nil
	}
	px := func(i int) []byte { return data[i*bpp : (i+1)*bpp] }

	var buf bytes.Buffer
	i := 0
	for i < n {
		runLen := 1
		for i+runLen < n && runLen < 128 && bytes.Equal(px(i+runLen), px(i)) {
			runLen++
		}
		if runLen > 1 {
			buf.WriteByte(0x80 | byte(runLen-1))
			buf.Write(px(i))
			i += runLen
			continue
		}
		// raw until three identical pixels start a run
		litLen := 1
		for i+litLen < n && litLen < 128 {
			if i+litLen+2 < n &&
				bytes.Equal(px(i+litLen), px(i+litLen+1)) &&
				bytes.Equal(px(i+litLen), px(i+litLen+2)) {
				break
			}
			litLen++
		}
		buf.WriteByte(byte(litLen - 1))
		buf.Write(data[i*bpp : (i+litLen)*bpp])
		i += litLen
	}
	return buf.Bytes()
}

// decodeTGARLE fills dst from TGA packets. Packets may cross rows.
func decodeTGARLE(r io.Reader, dst []byte, bpp int) error {
	var head [1]byte
	pixel := make([]byte, bpp)
	off := 0
	for off < len(dst) {
		if _, err := io.ReadFull(r, head[:]); err != nil {
			return fmt.Errorf("rle: compressed data truncated: %w", err)
		}
		count := int(head[0]&0x7f) + 1
		if off+count*bpp > len(dst) {
			return errors.New("rle: packet overruns image")
		}
		if head[0]&0x80 == 0 {
			if _, err := io.ReadFull(r, dst[off:off+count*bpp]); err != nil {
				return fmt.Errorf("rle: compressed data truncated in raw packet: %w", err)
			}
			off += count * bpp
			continue
		}
		if _, err := io.ReadFull(r, pixel); err != nil {
			return fmt.Errorf("rle: compressed data truncated in run packet: %w", err)
		}
		for k := 0; k < count; k++ {
			off += copy(dst[off:], pixel)
		}
	}
	return nil
}

// flipRows reverses the row order of pix in place.
func flipRows(pix []byte, stride int) {
	tmp := make([]byte, stride)
	rows := len(pix) / stride
	for top, bot := 0, rows-1; top < bot; top, bot = top+1, bot-1 {
		a := pix[top*stride : (top+1)*stride]
		b := pix[bot*stride : (bot+1)*stride]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}
