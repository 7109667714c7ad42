package gfx

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	"github.com/jpfielding/gfximage.go/pkg/format"
	"github.com/x448/float16"
)

// PreciseConvert converts img and everything linked after it into target,
// decoding every pixel to float64 and re-encoding it. Block formats on
// either side go through the block codecs. img is not modified.
func PreciseConvert(img *Image, target format.Format) (*Image, error) {
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: format %d", ErrUnsupportedFormat, target)
	}
	out, err := mapChain(img, func(src *Image) (*Image, error) {
		return convertLevel(src, target)
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("converted image chain",
		slog.String("from", img.format.Name()),
		slog.String("to", target.Name()),
		slog.String("id", out.ID().String()))
	return out, nil
}

func convertLevel(src *Image, target format.Format) (*Image, error) {
	if err := src.checkBuffer(); err != nil {
		return nil, err
	}
	switch {
	case src.format == target:
		return cloneLevel(src)
	case target.IsCompressed():
		return compressLevel(src, target)
	case src.format.IsCompressed():
		return decompressLevel(src, target)
	}
	dst, err := src.shape.WithFormat(target).MaterializeNoClear()
	if err != nil {
		return nil, err
	}
	if err := convertRun(src, 0, dst, 0, src.PixelCount()); err != nil {
		dst.Destroy()
		return nil, err
	}
	return dst, nil
}

// fastConversion rewrites a whole buffer from one format to another without
// going through Color.
type fastConversion struct {
	run func(dst, src []byte)
	// inPlace is set when dst and src may be the same buffer.
	inPlace bool
}

// fastPath returns the specialised conversion for the pair, or false.
func fastPath(from, to format.Format) (fastConversion, bool) {
	if from == to {
		return fastConversion{run: func(dst, src []byte) { copy(dst, src) }, inPlace: true}, true
	}
	switch [2]format.Format{from, to} {
	case [2]format.Format{format.R8G8B8A8UNorm, format.B8G8R8A8UNorm},
		[2]format.Format{format.B8G8R8A8UNorm, format.R8G8B8A8UNorm},
		[2]format.Format{format.R8G8B8A8SRGB, format.B8G8R8A8SRGB},
		[2]format.Format{format.B8G8R8A8SRGB, format.R8G8B8A8SRGB}:
		return fastConversion{run: swapRB(4), inPlace: true}, true
	case [2]format.Format{format.R8G8B8UNorm, format.B8G8R8UNorm},
		[2]format.Format{format.B8G8R8UNorm, format.R8G8B8UNorm}:
		return fastConversion{run: swapRB(3), inPlace: true}, true
	case [2]format.Format{format.R8G8B8A8UNorm, format.R32G32B32A32SFloat}:
		return fastConversion{run: unorm8ToFloat32}, true
	case [2]format.Format{format.R32G32B32A32SFloat, format.R16G16B16A16SFloat}:
		return fastConversion{run: float32ToFloat16}, true
	case [2]format.Format{format.R16G16B16A16SFloat, format.R32G32B32A32SFloat}:
		return fastConversion{run: float16ToFloat32}, true
	}
	return fastConversion{}, false
}

func swapRB(stride int) func(dst, src []byte) {
	return func(dst, src []byte) {
		for i := 0; i+stride <= len(src); i += stride {
			r, g, b := src[i], src[i+1], src[i+2]
			dst[i], dst[i+1], dst[i+2] = b, g, r
			if stride == 4 {
				dst[i+3] = src[i+3]
			}
		}
	}
}

func unorm8ToFloat32(dst, src []byte) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(float32(float64(v)/255)))
	}
}

func float32ToFloat16(dst, src []byte) {
	for i := 0; i+4 <= len(src); i += 4 {
		f := math.Float32frombits(binary.LittleEndian.Uint32(src[i:]))
		binary.LittleEndian.PutUint16(dst[i/2:], float16.Fromfloat32(f).Bits())
	}
}

func float16ToFloat32(dst, src []byte) {
	for i := 0; i+2 <= len(src); i += 2 {
		f := float16.Frombits(binary.LittleEndian.Uint16(src[i:])).Float32()
		binary.LittleEndian.PutUint32(dst[i*2:], math.Float32bits(f))
	}
}

// FastConvert converts like PreciseConvert, using a specialised loop for the
// common pairs (identity, RGBA/BGRA and RGB/BGR swizzles, 8-bit UNORM to
// 32-bit float, 32-bit float to and from 16-bit float). Other pairs fall back
// to PreciseConvert. Results are identical to PreciseConvert.
func FastConvert(img *Image, target format.Format) (*Image, error) {
	conv, ok := fastPath(img.format, target)
	if !ok {
		return PreciseConvert(img, target)
	}
	return mapChain(img, func(src *Image) (*Image, error) {
		if err := src.checkBuffer(); err != nil {
			return nil, err
		}
		dst, err := src.shape.WithFormat(target).MaterializeNoClear()
		if err != nil {
			return nil, err
		}
		conv.run(dst.pix, src.pix)
		return dst, nil
	})
}

// FastConvertInPlace converts the chain rooted at img into target, taking
// ownership of img. When the pair has a same-size fast path the buffers are
// rewritten and handed to the returned chain; otherwise a new chain is built
// and img is destroyed. Either way img must not be used afterwards, unless an
// error is returned, in which case img is untouched. Panics when img is not
// a chain root.
func FastConvertInPlace(img *Image, target format.Format) (*Image, error) {
	img.mustBeRoot("FastConvertInPlace")
	if img.format == target {
		return img, nil
	}
	conv, ok := fastPath(img.format, target)
	if !ok || !conv.inPlace || img.ByteCount() != img.shape.WithFormat(target).ByteCount() {
		slog.Warn("no in-place conversion, converting into new buffers",
			slog.String("from", img.format.Name()),
			slog.String("to", target.Name()),
			slog.String("id", img.ID().String()))
		out, err := FastConvert(img, target)
		if err != nil {
			return nil, err
		}
		img.Destroy()
		return out, nil
	}

	members := append(append([]*Image{}, img.owner.levels...), img.owner.slices...)
	for _, m := range members {
		if err := m.checkBuffer(); err != nil {
			return nil, err
		}
	}
	kept := make(map[*byte]bool, len(members))
	out, err := mapChain(img, func(src *Image) (*Image, error) {
		conv.run(src.pix, src.pix)
		kept[&src.pix[0]] = true
		return newRoot(src.shape.WithFormat(target), src.pix), nil
	})
	if err != nil {
		return nil, err
	}
	img.owner.relinquish(kept)
	return out, nil
}
