package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"github.com/jpfielding/gfximage.go/pkg/format"
	"github.com/jpfielding/gfximage.go/pkg/gfx"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// stdCodec adapts an image.Image codec to the gfx model.
type stdCodec struct {
	name   string
	exts   []string
	decode func(io.Reader) (image.Image, error)
	config func(io.Reader) (image.Config, error)
	encode func(io.Writer, image.Image) error
}

var (
	pngCodec = &stdCodec{
		name:   "png",
		exts:   []string{".png"},
		decode: png.Decode,
		config: png.DecodeConfig,
		encode: png.Encode,
	}
	jpegCodec = &stdCodec{
		name:   "jpeg",
		exts:   []string{".jpg", ".jpeg"},
		decode: jpeg.Decode,
		config: jpeg.DecodeConfig,
		encode: func(w io.Writer, m image.Image) error {
			return jpeg.Encode(w, m, &jpeg.Options{Quality: 90})
		},
	}
	bmpCodec = &stdCodec{
		name:   "bmp",
		exts:   []string{".bmp"},
		decode: bmp.Decode,
		config: bmp.DecodeConfig,
		encode: bmp.Encode,
	}
	tiffCodec = &stdCodec{
		name:   "tiff",
		exts:   []string{".tif", ".tiff"},
		decode: tiff.Decode,
		config: tiff.DecodeConfig,
		encode: func(w io.Writer, m image.Image) error {
			return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
		},
	}
)

func (c *stdCodec) Name() string         { return c.name }
func (c *stdCodec) Extensions() []string { return c.exts }

// CanEncode accepts single uncompressed 2D pictures. Mip levels are dropped.
func (c *stdCodec) CanEncode(h gfx.Header) bool { return isFlat(h) }

// Decode sizes the picture from its config before the full decode so an
// oversized header is refused without allocating for it.
func (c *stdCodec) Decode(r io.Reader) (*gfx.Image, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, decodeErr(c.name, err)
	}
	h, err := c.DecodeHeader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if err := checkDecodeSize(h, 1); err != nil {
		return nil, decodeErr(c.name, err)
	}
	m, err := c.decode(bytes.NewReader(raw))
	if err != nil {
		return nil, decodeErr(c.name, err)
	}
	img, err := fromImage(m)
	if err != nil {
		return nil, decodeErr(c.name, err)
	}
	return img, nil
}

func (c *stdCodec) DecodeHeader(r io.Reader) (gfx.Header, error) {
	cfg, err := c.config(r)
	if err != nil {
		return gfx.Header{}, decodeErr(c.name, err)
	}
	h, err := gfx.NewHeader(uint32(cfg.Width), uint32(cfg.Height), 1, 1, modelFormat(cfg.ColorModel))
	if err != nil {
		return gfx.Header{}, decodeErr(c.name, err)
	}
	return h, nil
}

func (c *stdCodec) Encode(w io.Writer, img *gfx.Image) error {
	if !c.CanEncode(img.Shape()) {
		return encodeErr(c.name, fmt.Errorf("cannot store %s", img.Shape()))
	}
	m, err := toImage(img)
	if err != nil {
		return encodeErr(c.name, err)
	}
	if err := c.encode(w, m); err != nil {
		return encodeErr(c.name, err)
	}
	return nil
}

// modelFormat picks the format fromImage produces for a color model.
func modelFormat(m color.Model) format.Format {
	switch m {
	case color.GrayModel:
		return format.R8UNorm
	case color.Gray16Model:
		return format.R16UNorm
	case color.RGBA64Model, color.NRGBA64Model:
		return format.R16G16B16A16UNorm
	default:
		return format.R8G8B8A8UNorm
	}
}

// fromImage copies m into a new 2D image. 8-bit grey and colour keep their
// depth, deeper sources land in 16-bit formats. Colour is not managed.
func fromImage(m image.Image) (*gfx.Image, error) {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	img, err := gfx.Create2DNoClear(uint32(w), uint32(h), modelFormat(m.ColorModel()))
	if err != nil {
		return nil, err
	}
	pix := img.Data()
	switch src := m.(type) {
	case *image.Gray:
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(pix[y*w:(y+1)*w], src.Pix[off:off+w])
		}
	case *image.Gray16:
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < w; x++ {
				v := binary.BigEndian.Uint16(src.Pix[off+2*x:])
				binary.LittleEndian.PutUint16(pix[2*(y*w+x):], v)
			}
		}
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(pix[4*y*w:4*(y+1)*w], src.Pix[off:off+4*w])
		}
	default:
		if img.Format() == format.R16G16B16A16UNorm {
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					c := color.NRGBA64Model.Convert(m.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
					o := 8 * (y*w + x)
					binary.LittleEndian.PutUint16(pix[o:], c.R)
					binary.LittleEndian.PutUint16(pix[o+2:], c.G)
					binary.LittleEndian.PutUint16(pix[o+4:], c.B)
					binary.LittleEndian.PutUint16(pix[o+6:], c.A)
				}
			}
			break
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.NRGBAModel.Convert(m.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				copy(pix[4*(y*w+x):], []byte{c.R, c.G, c.B, c.A})
			}
		}
	}
	return img, nil
}

// toImage exposes the first page of img as an image.Image. Formats without a
// direct counterpart go through the pixel accessor into NRGBA64.
func toImage(img *gfx.Image) (image.Image, error) {
	w, h := int(img.Width()), int(img.Height())
	pix := img.Data()
	if pix == nil {
		return nil, gfx.ErrNullBuffer
	}
	rect := image.Rect(0, 0, w, h)
	switch img.Format() {
	case format.R8UNorm:
		m := image.NewGray(rect)
		copy(m.Pix, pix[:w*h])
		return m, nil
	case format.R16UNorm:
		m := image.NewGray16(rect)
		for i := 0; i < w*h; i++ {
			binary.BigEndian.PutUint16(m.Pix[2*i:], binary.LittleEndian.Uint16(pix[2*i:]))
		}
		return m, nil
	case format.R8G8B8A8UNorm:
		m := image.NewNRGBA(rect)
		copy(m.Pix, pix[:4*w*h])
		return m, nil
	}
	m := image.NewNRGBA64(rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c, err := img.PixelAt(uint32(x), uint32(y), 0, 0)
			if err != nil {
				return nil, err
			}
			if img.Format().ChannelCount() == 1 {
				c.G, c.B = c.R, c.R
			}
			m.SetNRGBA64(x, y, color.NRGBA64{R: to16(c.R), G: to16(c.G), B: to16(c.B), A: to16(c.A)})
		}
	}
	return m, nil
}

func to16(v float64) uint16 {
	return uint16(math.Round(max(0, min(1, v)) * 0xffff))
}
