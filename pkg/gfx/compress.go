package gfx

import (
	"fmt"

	"github.com/jpfielding/gfximage.go/pkg/compress/bc"
	"github.com/jpfielding/gfximage.go/pkg/format"
)

// Compress encodes img and everything linked after it into the block format
// target. Blocks overhanging the right or bottom edge repeat the last row or
// column. A compressed source is decoded first. On failure nothing is
// returned and img is unchanged.
func Compress(img *Image, target format.Format) (*Image, error) {
	if !target.IsCompressed() {
		return nil, fmt.Errorf("%w: %s is not a block format", ErrUnsupportedFormat, target)
	}
	return mapChain(img, func(src *Image) (*Image, error) {
		return compressLevel(src, target)
	})
}

func CompressBC1(img *Image) (*Image, error)  { return Compress(img, format.BC1RGBUNorm) }
func CompressBC1A(img *Image) (*Image, error) { return Compress(img, format.BC1RGBAUNorm) }
func CompressBC2(img *Image) (*Image, error)  { return Compress(img, format.BC2UNorm) }
func CompressBC3(img *Image) (*Image, error)  { return Compress(img, format.BC3UNorm) }
func CompressBC4(img *Image) (*Image, error)  { return Compress(img, format.BC4UNorm) }
func CompressBC5(img *Image) (*Image, error)  { return Compress(img, format.BC5UNorm) }
func CompressBC6H(img *Image) (*Image, error) { return Compress(img, format.BC6HUFloat) }
func CompressBC7(img *Image) (*Image, error)  { return Compress(img, format.BC7UNorm) }

// Decompress decodes a block compressed img and everything linked after it
// into the uncompressed format target.
func Decompress(img *Image, target format.Format) (*Image, error) {
	if target.IsCompressed() || !target.IsValid() {
		return nil, fmt.Errorf("%w: cannot decompress into %s", ErrUnsupportedFormat, target)
	}
	if !img.format.IsCompressed() {
		return nil, fmt.Errorf("%w: %s is not a block format", ErrUnsupportedFormat, img.format)
	}
	return mapChain(img, func(src *Image) (*Image, error) {
		return decompressLevel(src, target)
	})
}

// blockGrid returns the number of blocks along x and y of one depth layer.
func blockGrid(h Header) (bx, by uint32) {
	bw, bh, _ := h.format.BlockSize()
	return (h.width + bw - 1) / bw, (h.height + bh - 1) / bh
}

// blockOffset is the byte offset of block (bx, by) of layer z of slice s.
func blockOffset(h Header, bx, by, z, s uint32) uint64 {
	nx, _ := blockGrid(h)
	return uint64(s)*h.ByteCountPerPage() + uint64(z)*h.ByteCountPerSlice() +
		(uint64(by)*uint64(nx)+uint64(bx))*uint64(h.format.BytesPerBlock())
}

func compressLevel(src *Image, target format.Format) (*Image, error) {
	if err := src.checkBuffer(); err != nil {
		return nil, err
	}
	if src.format.IsCompressed() {
		if src.format == target {
			return cloneLevel(src)
		}
		tmp, err := decompressLevel(src, format.R32G32B32A32SFloat)
		if err != nil {
			return nil, err
		}
		defer tmp.Destroy()
		src = tmp
	}
	dst, err := src.shape.WithFormat(target).MaterializeNoClear()
	if err != nil {
		return nil, err
	}
	srgb := target.Info().Type == format.TypeSRGB
	nx, ny := blockGrid(dst.shape)
	var blk bc.Block
	for s := uint32(0); s < src.slices; s++ {
		for z := uint32(0); z < src.depth; z++ {
			for by := uint32(0); by < ny; by++ {
				for bx := uint32(0); bx < nx; bx++ {
					for i := range blk {
						x := min(bx*4+uint32(i%4), src.width-1)
						y := min(by*4+uint32(i/4), src.height-1)
						c, err := src.PixelAt(x, y, z, s)
						if err != nil {
							dst.Destroy()
							return nil, err
						}
						if srgb {
							c.R, c.G, c.B = linearToSRGB(clamp(c.R, 0, 1)), linearToSRGB(clamp(c.G, 0, 1)), linearToSRGB(clamp(c.B, 0, 1))
						}
						blk[i] = [4]float32{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}
					}
					off := blockOffset(dst.shape, bx, by, z, s)
					if err := bc.Encode(target, &blk, dst.pix[off:]); err != nil {
						dst.Destroy()
						return nil, fmt.Errorf("%w: %w", ErrEncode, err)
					}
				}
			}
		}
	}
	return dst, nil
}

func decompressLevel(src *Image, target format.Format) (*Image, error) {
	if err := src.checkBuffer(); err != nil {
		return nil, err
	}
	dst, err := src.shape.WithFormat(target).MaterializeNoClear()
	if err != nil {
		return nil, err
	}
	srgb := src.format.Info().Type == format.TypeSRGB
	nx, ny := blockGrid(src.shape)
	var blk bc.Block
	for s := uint32(0); s < src.slices; s++ {
		for z := uint32(0); z < src.depth; z++ {
			for by := uint32(0); by < ny; by++ {
				for bx := uint32(0); bx < nx; bx++ {
					off := blockOffset(src.shape, bx, by, z, s)
					if err := bc.Decode(src.format, src.pix[off:], &blk); err != nil {
						dst.Destroy()
						return nil, fmt.Errorf("%w: %w", ErrDecode, err)
					}
					for i, t := range blk {
						x, y := bx*4+uint32(i%4), by*4+uint32(i/4)
						if x >= src.width || y >= src.height {
							continue
						}
						c := Color{R: float64(t[0]), G: float64(t[1]), B: float64(t[2]), A: float64(t[3])}
						if srgb {
							c.R, c.G, c.B = srgbToLinear(c.R), srgbToLinear(c.G), srgbToLinear(c.B)
						}
						if err := dst.SetPixel(x, y, z, s, c); err != nil {
							dst.Destroy()
							return nil, err
						}
					}
				}
			}
		}
	}
	return dst, nil
}

// cloneLevel copies a single level into a new root.
func cloneLevel(src *Image) (*Image, error) {
	dst, err := src.shape.MaterializeNoClear()
	if err != nil {
		return nil, err
	}
	copy(dst.pix, src.pix)
	return dst, nil
}
