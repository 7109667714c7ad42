package gfx

import "fmt"

// Copies move pixels between two images that may differ in shape, array
// index or format. The extents copied at each granularity must agree. Equal
// formats are copied byte for byte; otherwise every pixel is decoded from the
// source and re-encoded into the destination. Only dst is written.

func checkPair(src, dst *Image) error {
	if err := src.checkBuffer(); err != nil {
		return err
	}
	return dst.checkBuffer()
}

func checkRange(what string, v, limit uint32) error {
	if v >= limit {
		return fmt.Errorf("%w: %s %d of %d", ErrOutOfRange, what, v, limit)
	}
	return nil
}

func mismatch(what string, a, b uint32) error {
	return fmt.Errorf("%w: %s %d != %d", ErrShapeMismatch, what, a, b)
}

// CopyImage copies every pixel of src into dst. Both must have the same
// width, height, depth and slice count.
func CopyImage(src, dst *Image) error {
	if err := checkPair(src, dst); err != nil {
		return err
	}
	if !src.sameExtent(dst.shape) {
		return fmt.Errorf("%w: %s vs %s", ErrShapeMismatch, src.shape, dst.shape)
	}
	if src.format == dst.format {
		copy(dst.pix, src.pix)
		return nil
	}
	return convertRun(src, 0, dst, 0, src.PixelCount())
}

// CopyPage copies the volume of array element sw of src into array element
// dw of dst.
func CopyPage(src *Image, sw uint32, dst *Image, dw uint32) error {
	if err := checkPair(src, dst); err != nil {
		return err
	}
	if err := checkRange("source slice", sw, src.slices); err != nil {
		return err
	}
	if err := checkRange("destination slice", dw, dst.slices); err != nil {
		return err
	}
	switch {
	case src.width != dst.width:
		return mismatch("width", src.width, dst.width)
	case src.height != dst.height:
		return mismatch("height", src.height, dst.height)
	case src.depth != dst.depth:
		return mismatch("depth", src.depth, dst.depth)
	}
	if src.format == dst.format {
		n := src.ByteCountPerPage()
		so, do := uint64(sw)*n, uint64(dw)*n
		copy(dst.pix[do:do+n], src.pix[so:so+n])
		return nil
	}
	n := src.PixelCountPerPage()
	return convertRun(src, uint64(sw)*n, dst, uint64(dw)*n, n)
}

// CopySlice copies depth layer sz of array element sw of src into depth layer
// dz of array element dw of dst.
func CopySlice(src *Image, sz, sw uint32, dst *Image, dz, dw uint32) error {
	if err := checkPair(src, dst); err != nil {
		return err
	}
	if err := checkSliceRange(src, "source", sz, sw); err != nil {
		return err
	}
	if err := checkSliceRange(dst, "destination", dz, dw); err != nil {
		return err
	}
	switch {
	case src.width != dst.width:
		return mismatch("width", src.width, dst.width)
	case src.height != dst.height:
		return mismatch("height", src.height, dst.height)
	}
	if src.format == dst.format {
		n := src.ByteCountPerSlice()
		so := uint64(sw)*src.ByteCountPerPage() + uint64(sz)*n
		do := uint64(dw)*dst.ByteCountPerPage() + uint64(dz)*n
		copy(dst.pix[do:do+n], src.pix[so:so+n])
		return nil
	}
	si, err := src.CalculateIndex(0, 0, sz, sw)
	if err != nil {
		return err
	}
	di, err := dst.CalculateIndex(0, 0, dz, dw)
	if err != nil {
		return err
	}
	return convertRun(src, si, dst, di, src.PixelCountPerSlice())
}

func checkSliceRange(img *Image, side string, z, w uint32) error {
	if err := checkRange(side+" depth", z, img.depth); err != nil {
		return err
	}
	return checkRange(side+" slice", w, img.slices)
}

// CopyRow copies row sy of layer sz of array element sw of src into row dy of
// layer dz of array element dw of dst. Block compressed formats have no
// addressable single rows and are rejected.
func CopyRow(src *Image, sy, sz, sw uint32, dst *Image, dy, dz, dw uint32) error {
	if err := checkPair(src, dst); err != nil {
		return err
	}
	if src.width != dst.width {
		return mismatch("width", src.width, dst.width)
	}
	si, err := src.CalculateIndex(0, sy, sz, sw)
	if err != nil {
		return err
	}
	di, err := dst.CalculateIndex(0, dy, dz, dw)
	if err != nil {
		return err
	}
	return copyRun(src, si, dst, di, src.PixelCountPerRow())
}

// CopyPixel copies a single pixel.
func CopyPixel(src *Image, sx, sy, sz, sw uint32, dst *Image, dx, dy, dz, dw uint32) error {
	if err := checkPair(src, dst); err != nil {
		return err
	}
	si, err := src.CalculateIndex(sx, sy, sz, sw)
	if err != nil {
		return err
	}
	di, err := dst.CalculateIndex(dx, dy, dz, dw)
	if err != nil {
		return err
	}
	return copyRun(src, si, dst, di, 1)
}

// copyRun copies n consecutive pixels of uncompressed images.
func copyRun(src *Image, si uint64, dst *Image, di uint64, n uint64) error {
	if src.format.IsCompressed() || dst.format.IsCompressed() {
		return fmt.Errorf("%w: %s to %s below slice granularity", ErrUnsupportedFormat, src.format, dst.format)
	}
	if src.format == dst.format {
		bpp := uint64(src.format.BytesPerBlock())
		copy(dst.pix[di*bpp:(di+n)*bpp], src.pix[si*bpp:(si+n)*bpp])
		return nil
	}
	return convertRun(src, si, dst, di, n)
}

// convertRun re-encodes n consecutive pixels through the pixel accessor.
func convertRun(src *Image, si uint64, dst *Image, di uint64, n uint64) error {
	if src.format.IsCompressed() || dst.format.IsCompressed() {
		return fmt.Errorf("%w: converting copy from %s to %s", ErrUnsupportedFormat, src.format, dst.format)
	}
	for i := uint64(0); i < n; i++ {
		c, err := src.GetPixelAt(si + i)
		if err != nil {
			return err
		}
		if err := dst.SetPixelAt(di+i, c); err != nil {
			return err
		}
	}
	return nil
}
