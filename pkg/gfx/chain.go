package gfx

import (
	"fmt"
	"log/slog"
)

// linked returns img and every mip level after it.
func (img *Image) linked() []*Image {
	if img.level < 0 {
		return []*Image{img}
	}
	return img.owner.levels[img.level:]
}

// LinkedImageCount counts img and the mip levels linked after it; for the
// root this is the length of the whole mip chain.
func (img *Image) LinkedImageCount() int {
	return len(img.linked())
}

// LinkedImageOf returns the index-th image of the mip chain starting at img;
// index 0 is img itself.
func (img *Image) LinkedImageOf(index int) (*Image, error) {
	linked := img.linked()
	if index < 0 || index >= len(linked) {
		return nil, fmt.Errorf("%w: linked image %d of %d", ErrOutOfRange, index, len(linked))
	}
	return linked[index], nil
}

// ByteCountOfImageChain sums the byte counts of img and every level linked
// after it.
func (img *Image) ByteCountOfImageChain() uint64 {
	var total uint64
	for _, lvl := range img.linked() {
		total += lvl.ByteCount()
	}
	return total
}

// adoptLevel moves the single-image chain rooted at lvl into img's chain as
// the next mip level.
func (img *Image) adoptLevel(lvl *Image) {
	c := img.owner
	lvl.owner = c
	lvl.level = len(c.levels)
	c.levels = append(c.levels, lvl)
}

func (img *Image) adoptSlice(s *Image) {
	s.owner = img.owner
	s.level = -1
	img.owner.slices = append(img.owner.slices, s)
}

func (img *Image) mustBeRoot(op string) {
	if !img.IsRoot() {
		panic("gfx: " + op + " requires the chain root")
	}
}

// mapChain builds a new chain by applying fn to img, each level linked after
// it and, when img is the root, each slice image. fn must return fresh root
// images. Nothing is returned if any step fails.
func mapChain(img *Image, fn func(*Image) (*Image, error)) (*Image, error) {
	linked := img.linked()
	root, err := fn(linked[0])
	if err != nil {
		return nil, err
	}
	for _, lvl := range linked[1:] {
		out, err := fn(lvl)
		if err != nil {
			root.Destroy()
			return nil, err
		}
		root.adoptLevel(out)
	}
	if img.IsRoot() {
		for _, s := range img.owner.slices {
			out, err := fn(s)
			if err != nil {
				root.Destroy()
				return nil, err
			}
			root.adoptSlice(out)
		}
	}
	return root, nil
}

// CreateMipMapChain replaces any existing mip levels of the root img with a
// full chain down to 1×1×1. When generateFromImage is set each level is box
// filtered from the previous one; otherwise the levels are allocated but not
// initialised.
func (img *Image) CreateMipMapChain(generateFromImage bool) error {
	if !generateFromImage {
		return img.buildMipMaps(img.MipMapLevelCount(), nil)
	}
	return img.CreateMipMapChainFiltered(FilterBox)
}

// CreateMipMapLevels replaces any existing mip levels of the root img with
// count levels in total (img included), allocated but not initialised. count
// is clamped to [1, MipMapLevelCount]. Containers that store partial mip
// chains fill the levels through Data.
func (img *Image) CreateMipMapLevels(count int) error {
	return img.buildMipMaps(max(1, min(count, img.MipMapLevelCount())), nil)
}

// CreateMipMapChainFiltered builds the mip chain like CreateMipMapChain,
// deriving each level with the given filter.
func (img *Image) CreateMipMapChainFiltered(filter Filter) error {
	resample, err := filter.resampler(img.shape)
	if err != nil {
		return err
	}
	return img.buildMipMaps(img.MipMapLevelCount(), resample)
}

func (img *Image) buildMipMaps(count int, resample func(src, dst *Image) error) error {
	img.mustBeRoot("CreateMipMapChain")
	if err := img.checkBuffer(); err != nil {
		return err
	}
	levels := make([]*Image, 0, count-1)
	discard := func() {
		for _, lvl := range levels {
			lvl.Destroy()
		}
	}
	prev := img
	for i := 1; i < count; i++ {
		lvl, err := prev.shape.Next().materialize(false)
		if err != nil {
			discard()
			return err
		}
		levels = append(levels, lvl)
		if resample != nil {
			if err := resample(prev, lvl); err != nil {
				discard()
				return fmt.Errorf("generating mip level %d: %w", i, err)
			}
		}
		prev = lvl
	}

	for _, old := range img.owner.levels[1:] {
		pixelBuffers.put(old.pix)
		old.pix = nil
	}
	img.owner.levels = img.owner.levels[:1]
	for _, lvl := range levels {
		img.adoptLevel(lvl)
	}
	slog.Debug("created mip chain",
		slog.String("id", img.owner.id.String()),
		slog.String("shape", img.shape.String()),
		slog.Int("levels", count),
		slog.Bool("generated", resample != nil))
	return nil
}

// boxTaps returns the inclusive range of source coordinates averaged into
// destination coordinate i when a dimension shrinks from src to dst. The last
// destination coordinate also takes the odd source coordinate left over.
func boxTaps(i, src, dst uint32) (lo, hi uint32) {
	if src == dst {
		return i, i
	}
	if i == dst-1 {
		return 2 * i, src - 1
	}
	return 2 * i, 2*i + 1
}

// downsampleBox averages each 2×2×2 neighbourhood of src into one pixel of
// dst through the pixel accessor. Along odd dimensions the last neighbourhood
// is three wide.
func downsampleBox(src, dst *Image) error {
	sw, sh, sd, _ := src.Dimensions()
	dw, dh, dd, ds := dst.Dimensions()
	for s := uint32(0); s < ds; s++ {
		for z := uint32(0); z < dd; z++ {
			z0, z1 := boxTaps(z, sd, dd)
			for y := uint32(0); y < dh; y++ {
				y0, y1 := boxTaps(y, sh, dh)
				for x := uint32(0); x < dw; x++ {
					x0, x1 := boxTaps(x, sw, dw)
					var acc Color
					for sz := z0; sz <= z1; sz++ {
						for sy := y0; sy <= y1; sy++ {
							for sx := x0; sx <= x1; sx++ {
								c, err := src.PixelAt(sx, sy, sz, s)
								if err != nil {
									return err
								}
								acc = acc.add(c)
							}
						}
					}
					taps := (z1 - z0 + 1) * (y1 - y0 + 1) * (x1 - x0 + 1)
					if err := dst.SetPixel(x, y, z, s, acc.scale(1/float64(taps))); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// AppendSliceImage links sub under the root img as the next separately stored
// slice image. sub must be a standalone root with the same width, height,
// depth and format; ownership moves to img's chain.
func (img *Image) AppendSliceImage(sub *Image) error {
	img.mustBeRoot("AppendSliceImage")
	if err := img.checkBuffer(); err != nil {
		return err
	}
	if err := sub.checkBuffer(); err != nil {
		return err
	}
	if sub == img || !sub.IsRoot() || len(sub.owner.levels) != 1 || len(sub.owner.slices) != 0 {
		return fmt.Errorf("%w: slice image must be a standalone image", ErrShapeMismatch)
	}
	if sub.width != img.width || sub.height != img.height || sub.depth != img.depth || sub.format != img.format {
		return fmt.Errorf("%w: slice image %s does not match %s", ErrShapeMismatch, sub.shape, img.shape)
	}
	img.adoptSlice(sub)
	return nil
}

// SliceImageCount counts the root and its separately stored slice images.
// Any other member reports 1.
func (img *Image) SliceImageCount() int {
	if !img.IsRoot() {
		return 1
	}
	return 1 + len(img.owner.slices)
}

// SliceImageOf returns the index-th slice image; index 0 is the root.
func (img *Image) SliceImageOf(index int) (*Image, error) {
	if index == 0 {
		return img, nil
	}
	if !img.IsRoot() || index < 0 || index > len(img.owner.slices) {
		return nil, fmt.Errorf("%w: slice image %d of %d", ErrOutOfRange, index, img.SliceImageCount())
	}
	return img.owner.slices[index-1], nil
}

// CollapseSlices packs the root and its slice images into one new image whose
// slices follow in chain order. Mip levels are not carried over.
func (img *Image) CollapseSlices() (*Image, error) {
	img.mustBeRoot("CollapseSlices")
	members := append([]*Image{img}, img.owner.slices...)
	var total uint64
	for _, m := range members {
		if err := m.checkBuffer(); err != nil {
			return nil, err
		}
		total += uint64(m.slices)
	}
	if total > uint64(^uint32(0)) {
		return nil, fmt.Errorf("%w: %d slices", ErrInvalidShape, total)
	}
	hdr := Header{
		width:   img.width,
		height:  img.height,
		depth:   img.depth,
		slices:  uint32(total),
		format:  img.format,
		cubemap: img.cubemap && total%6 == 0,
	}
	out, err := hdr.MaterializeNoClear()
	if err != nil {
		return nil, err
	}
	var dw uint32
	for _, m := range members {
		for sw := uint32(0); sw < m.slices; sw++ {
			if err := CopyPage(m, sw, out, dw); err != nil {
				out.Destroy()
				return nil, err
			}
			dw++
		}
	}
	return out, nil
}
