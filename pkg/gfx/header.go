// Package gfx models format-agnostic, multi-dimensional pixel buffers.
//
// A Header describes the shape of an image: width, height, depth, array
// slices, pixel format and the cubemap flag. It owns no pixels. An Image is a
// Header backed by a byte buffer; the only way from one to the other is
// Header.Materialize. Images are addressed by a single linear index
//
//	index = x + y*width + z*width*height + slice*width*height*depth
//
// and read or written as four float64 channels regardless of their storage
// layout. A root Image owns an ordered chain of mip levels and, for
// containers that store array slices separately, an ordered chain of slice
// images.
package gfx

import (
	"fmt"
	"math/bits"

	"github.com/jpfielding/gfximage.go/pkg/format"
)

// Flags is the flag set reported for a header or image.
type Flags uint8

const (
	// FlagCubemap marks a cubemap (or cubemap array); slices is a multiple of 6.
	FlagCubemap Flags = 1 << iota
	// FlagHeaderOnly marks a descriptor without pixel storage.
	FlagHeaderOnly
)

// Header is the shape and format of an image without any pixel storage.
// The zero value is invalid; use NewHeader or one of the New*Header helpers.
type Header struct {
	width   uint32
	height  uint32
	depth   uint32
	slices  uint32
	format  format.Format
	cubemap bool
}

// NewHeader validates and returns a header.
func NewHeader(width, height, depth, slices uint32, f format.Format) (Header, error) {
	h := Header{width: width, height: height, depth: depth, slices: slices, format: f}
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// NewCubemapHeader returns a header for cubes cubemaps of w×h faces.
func NewCubemapHeader(width, height, cubes uint32, f format.Format) (Header, error) {
	if cubes > ^uint32(0)/6 {
		return Header{}, fmt.Errorf("%w: %d cubes", ErrInvalidShape, cubes)
	}
	h := Header{width: width, height: height, depth: 1, slices: cubes * 6, format: f, cubemap: true}
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// Validate checks the shape invariants, including that every pixel and byte
// count of the shape fits in uint64.
func (h Header) Validate() error {
	if h.width == 0 || h.height == 0 || h.depth == 0 || h.slices == 0 {
		return fmt.Errorf("%w: %dx%dx%d slices=%d", ErrInvalidShape, h.width, h.height, h.depth, h.slices)
	}
	if !h.format.IsValid() {
		return fmt.Errorf("%w: format %d", ErrInvalidShape, h.format)
	}
	if h.cubemap && (h.slices%6 != 0 || h.depth != 1) {
		return fmt.Errorf("%w: cubemap needs depth 1 and slices%%6 == 0, got depth=%d slices=%d",
			ErrInvalidShape, h.depth, h.slices)
	}
	if h.format.IsCompressed() {
		if _, _, bd := h.format.BlockSize(); bd > 1 && h.depth%bd != 0 {
			return fmt.Errorf("%w: depth %d not a multiple of block depth %d", ErrInvalidShape, h.depth, bd)
		}
	}
	return h.checkSize()
}

// maxByteCount bounds the buffer a header may describe; byte counts of whole
// mip chains then stay within uint64.
const maxByteCount = 1 << 62

// checkSize rejects shapes whose pixel or byte counts overflow. Every count
// derived from a validated header is a factor of these two products.
func (h Header) checkSize() error {
	w, ht, d, s := uint64(h.width), uint64(h.height), uint64(h.depth), uint64(h.slices)
	if _, ok := mulChecked(w, ht, d, s); !ok {
		return fmt.Errorf("%w: %w: pixel count of %s overflows", ErrInvalidShape, ErrAllocation, h)
	}
	bx, by, bz := h.format.BlockCount(h.width, h.height, h.depth)
	n, ok := mulChecked(bx, by, bz, uint64(h.format.BytesPerBlock()), s)
	if !ok || n > maxByteCount {
		return fmt.Errorf("%w: %w: %s needs more than %d bytes", ErrInvalidShape, ErrAllocation, h, uint64(maxByteCount))
	}
	return nil
}

func mulChecked(vs ...uint64) (uint64, bool) {
	p := uint64(1)
	for _, v := range vs {
		hi, lo := bits.Mul64(p, v)
		if hi != 0 {
			return 0, false
		}
		p = lo
	}
	return p, true
}

func (h Header) Width() uint32         { return h.width }
func (h Header) Height() uint32        { return h.height }
func (h Header) Depth() uint32         { return h.depth }
func (h Header) Slices() uint32        { return h.slices }
func (h Header) Format() format.Format { return h.format }

// Dimensions returns width, height, depth and slices.
func (h Header) Dimensions() (w, ht, d, s uint32) {
	return h.width, h.height, h.depth, h.slices
}

// Flags reports the flags of a bare header; it is always header-only.
func (h Header) Flags() Flags {
	f := FlagHeaderOnly
	if h.cubemap {
		f |= FlagCubemap
	}
	return f
}

// WithFormat returns the same shape in another format.
func (h Header) WithFormat(f format.Format) Header {
	h.format = f
	return h
}

func (h Header) Is1D() bool      { return h.height == 1 && h.depth == 1 }
func (h Header) Is2D() bool      { return h.height > 1 && h.depth == 1 }
func (h Header) Is3D() bool      { return h.depth > 1 }
func (h Header) IsArray() bool   { return h.slices > 1 }
func (h Header) IsCubemap() bool { return h.cubemap }

// CalculateIndex returns the linear pixel index of (x, y, z, slice).
func (h Header) CalculateIndex(x, y, z, slice uint32) (uint64, error) {
	if x >= h.width || y >= h.height || z >= h.depth || slice >= h.slices {
		return 0, fmt.Errorf("%w: (%d,%d,%d,%d) in %dx%dx%d slices=%d",
			ErrOutOfRange, x, y, z, slice, h.width, h.height, h.depth, h.slices)
	}
	w, ht, d := uint64(h.width), uint64(h.height), uint64(h.depth)
	return uint64(x) + uint64(y)*w + uint64(z)*w*ht + uint64(slice)*w*ht*d, nil
}

// Coordinates is the inverse of CalculateIndex.
func (h Header) Coordinates(index uint64) (x, y, z, slice uint32, err error) {
	if index >= h.PixelCount() {
		return 0, 0, 0, 0, fmt.Errorf("%w: index %d of %d pixels", ErrOutOfRange, index, h.PixelCount())
	}
	w, ht, d := uint64(h.width), uint64(h.height), uint64(h.depth)
	x = uint32(index % w)
	index /= w
	y = uint32(index % ht)
	index /= ht
	z = uint32(index % d)
	slice = uint32(index / d)
	return x, y, z, slice, nil
}

// PixelCount is the number of pixels over every slice.
func (h Header) PixelCount() uint64 {
	return h.PixelCountPerPage() * uint64(h.slices)
}

// PixelCountPerRow is the width.
func (h Header) PixelCountPerRow() uint64 {
	return uint64(h.width)
}

// PixelCountPerSlice counts the pixels of one depth layer of one array element.
func (h Header) PixelCountPerSlice() uint64 {
	return uint64(h.width) * uint64(h.height)
}

// PixelCountPerPage counts the pixels of one complete volume of one array
// element.
func (h Header) PixelCountPerPage() uint64 {
	return h.PixelCountPerSlice() * uint64(h.depth)
}

// ByteCountPerRow is the size of one row; for block formats a row of blocks.
func (h Header) ByteCountPerRow() uint64 {
	return h.format.RowBytes(h.width)
}

// ByteCountPerSlice is the size of one depth layer.
func (h Header) ByteCountPerSlice() uint64 {
	return h.format.ByteCount(h.width, h.height, 1)
}

// ByteCountPerPage is the size of one volume.
func (h Header) ByteCountPerPage() uint64 {
	return h.format.ByteCount(h.width, h.height, h.depth)
}

// ByteCount is the size of the whole buffer.
func (h Header) ByteCount() uint64 {
	return h.ByteCountPerPage() * uint64(h.slices)
}

// Next returns the header of the following mip level: every extent halved,
// never below 1. Slices and the cubemap flag are kept.
func (h Header) Next() Header {
	h.width = max(1, h.width/2)
	h.height = max(1, h.height/2)
	h.depth = max(1, h.depth/2)
	return h
}

// MipMapLevelCount returns floor(log2(max(w, h, d))) + 1.
func (h Header) MipMapLevelCount() int {
	return bits.Len32(max(h.width, h.height, h.depth))
}

// BytesRequiredForMipMaps sums the byte counts of this level and every level
// below it down to 1×1×1.
func (h Header) BytesRequiredForMipMaps() uint64 {
	var total uint64
	lvl := h
	for i := 0; i < h.MipMapLevelCount(); i++ {
		total += lvl.ByteCount()
		lvl = lvl.Next()
	}
	return total
}

// String describes the header, e.g. "64x64x1[6] R8G8B8A8_UNORM cubemap".
func (h Header) String() string {
	s := fmt.Sprintf("%dx%dx%d[%d] %s", h.width, h.height, h.depth, h.slices, h.format.Name())
	if h.cubemap {
		s += " cubemap"
	}
	return s
}

func (h Header) sameExtent(o Header) bool {
	return h.width == o.width && h.height == o.height && h.depth == o.depth && h.slices == o.slices
}
