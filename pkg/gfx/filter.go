package gfx

import (
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// Filter selects how mip levels are derived from their parent.
type Filter uint8

const (
	// FilterBox averages 2×2×2 neighbourhoods in full float precision.
	FilterBox Filter = iota
	// FilterBilinear resamples each 2D slice with golang.org/x/image/draw.
	FilterBilinear
	// FilterCatmullRom resamples each 2D slice with a Catmull-Rom kernel.
	FilterCatmullRom
)

// ParseFilter resolves a filter name ("box", "bilinear", "catmullrom").
func ParseFilter(name string) (Filter, error) {
	switch name {
	case "box", "":
		return FilterBox, nil
	case "bilinear":
		return FilterBilinear, nil
	case "catmullrom", "catmull-rom":
		return FilterCatmullRom, nil
	}
	return FilterBox, fmt.Errorf("gfx: unknown filter %q", name)
}

func (f Filter) String() string {
	switch f {
	case FilterBilinear:
		return "bilinear"
	case FilterCatmullRom:
		return "catmullrom"
	default:
		return "box"
	}
}

// resampler returns the level generator for images shaped like h.
func (f Filter) resampler(h Header) (func(src, dst *Image) error, error) {
	if h.format.IsCompressed() {
		return nil, fmt.Errorf("%w: cannot filter %s", ErrUnsupportedFormat, h.format)
	}
	switch f {
	case FilterBox:
		return downsampleBox, nil
	case FilterBilinear:
		return scaler(h, xdraw.BiLinear)
	case FilterCatmullRom:
		return scaler(h, xdraw.CatmullRom)
	}
	return nil, fmt.Errorf("gfx: unknown filter %d", f)
}

func scaler(h Header, s xdraw.Scaler) (func(src, dst *Image) error, error) {
	if h.Is3D() {
		return nil, fmt.Errorf("%w: resampling filters need 2D levels, got depth %d", ErrShapeMismatch, h.depth)
	}
	return func(src, dst *Image) error {
		for slice := uint32(0); slice < src.slices; slice++ {
			sv := &planeView{img: src, slice: slice}
			dv := &planeView{img: dst, slice: slice}
			s.Scale(dv, dv.Bounds(), sv, sv.Bounds(), xdraw.Src, nil)
			if sv.err != nil {
				return sv.err
			}
			if dv.err != nil {
				return dv.err
			}
		}
		return nil
	}, nil
}

// planeView exposes one depth-0 layer of an image as a draw.Image in 16-bit
// non-premultiplied colour. Values outside [0,1] are clamped.
type planeView struct {
	img   *Image
	slice uint32
	err   error
}

func (p *planeView) ColorModel() color.Model { return color.NRGBA64Model }

func (p *planeView) Bounds() image.Rectangle {
	return image.Rect(0, 0, int(p.img.width), int(p.img.height))
}

func (p *planeView) At(x, y int) color.Color {
	c, err := p.img.PixelAt(uint32(x), uint32(y), 0, p.slice)
	if err != nil {
		if p.err == nil {
			p.err = err
		}
		return color.NRGBA64{}
	}
	return color.NRGBA64{R: to16(c.R), G: to16(c.G), B: to16(c.B), A: to16(c.A)}
}

func (p *planeView) Set(x, y int, c color.Color) {
	n := color.NRGBA64Model.Convert(c).(color.NRGBA64)
	err := p.img.SetPixel(uint32(x), uint32(y), 0, p.slice, Color{
		R: float64(n.R) / 0xffff,
		G: float64(n.G) / 0xffff,
		B: float64(n.B) / 0xffff,
		A: float64(n.A) / 0xffff,
	})
	if err != nil && p.err == nil {
		p.err = err
	}
}

func to16(v float64) uint16 {
	return uint16(clamp(v, 0, 1)*0xffff + 0.5)
}
