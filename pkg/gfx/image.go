package gfx

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jpfielding/gfximage.go/pkg/format"
)

// Image is a Header backed by a pixel buffer.
//
// Every Image belongs to exactly one chain. The first image of the chain is
// its root and owns the rest: mip levels are reachable through LinkedImageOf
// and separately stored array slices through SliceImageOf. Only the root may
// be destroyed, cloned into a new chain or converted in place.
//
// Images are not safe for concurrent mutation; callers synchronise access to
// an image they share between goroutines.
type Image struct {
	shape // read-only outside the package; see Shape
	pix   []byte
	owner *chain
	level int // position in owner.levels, -1 for slice images
}

// shape names the embedded Header of an Image. The unexported field name
// keeps the shape fixed once the buffer has been sized for it, while the
// Header methods are still promoted.
type shape = Header

// chain is the arena holding every image linked under one root.
type chain struct {
	id        uuid.UUID
	levels    []*Image // levels[0] is the root
	slices    []*Image // slice images after the root
	destroyed bool
}

func newRoot(h Header, pix []byte) *Image {
	img := &Image{shape: h, pix: pix}
	img.owner = &chain{id: uuid.New(), levels: []*Image{img}}
	return img
}

// Materialize allocates a zeroed buffer for h and returns it as a new root
// image.
func (h Header) Materialize() (*Image, error) {
	return h.materialize(true)
}

// MaterializeNoClear is Materialize without clearing the buffer; its contents
// are unspecified.
func (h Header) MaterializeNoClear() (*Image, error) {
	return h.materialize(false)
}

func (h Header) materialize(zero bool) (*Image, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	pix, ok := pixelBuffers.get(h.ByteCount(), zero)
	if !ok {
		return nil, fmt.Errorf("%w: %d bytes for %s", ErrAllocation, h.ByteCount(), h)
	}
	return newRoot(h, pix), nil
}

// FromBytes wraps pix as the pixel buffer of a new root image. pix must be
// exactly h.ByteCount() bytes long and is not copied; the image owns it from
// then on and Destroy may recycle it.
func FromBytes(h Header, pix []byte) (*Image, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if uint64(len(pix)) != h.ByteCount() {
		return nil, fmt.Errorf("%w: buffer is %d bytes, %s needs %d", ErrShapeMismatch, len(pix), h, h.ByteCount())
	}
	return newRoot(h, pix), nil
}

// Create allocates a zeroed w×h×d image with the given number of slices.
func Create(w, h, d, slices uint32, f format.Format) (*Image, error) {
	return create(w, h, d, slices, f, true)
}

// CreateNoClear is Create without clearing the buffer.
func CreateNoClear(w, h, d, slices uint32, f format.Format) (*Image, error) {
	return create(w, h, d, slices, f, false)
}

func create(w, h, d, slices uint32, f format.Format, zero bool) (*Image, error) {
	hdr, err := NewHeader(w, h, d, slices, f)
	if err != nil {
		return nil, err
	}
	return hdr.materialize(zero)
}

func Create1D(w uint32, f format.Format) (*Image, error) { return Create(w, 1, 1, 1, f) }
func Create1DNoClear(w uint32, f format.Format) (*Image, error) {
	return CreateNoClear(w, 1, 1, 1, f)
}
func Create1DArray(w, slices uint32, f format.Format) (*Image, error) {
	return Create(w, 1, 1, slices, f)
}
func Create1DArrayNoClear(w, slices uint32, f format.Format) (*Image, error) {
	return CreateNoClear(w, 1, 1, slices, f)
}
func Create2D(w, h uint32, f format.Format) (*Image, error) { return Create(w, h, 1, 1, f) }
func Create2DNoClear(w, h uint32, f format.Format) (*Image, error) {
	return CreateNoClear(w, h, 1, 1, f)
}
func Create2DArray(w, h, slices uint32, f format.Format) (*Image, error) {
	return Create(w, h, 1, slices, f)
}
func Create2DArrayNoClear(w, h, slices uint32, f format.Format) (*Image, error) {
	return CreateNoClear(w, h, 1, slices, f)
}
func Create3D(w, h, d uint32, f format.Format) (*Image, error) { return Create(w, h, d, 1, f) }
func Create3DNoClear(w, h, d uint32, f format.Format) (*Image, error) {
	return CreateNoClear(w, h, d, 1, f)
}
func Create3DArray(w, h, d, slices uint32, f format.Format) (*Image, error) {
	return Create(w, h, d, slices, f)
}
func Create3DArrayNoClear(w, h, d, slices uint32, f format.Format) (*Image, error) {
	return CreateNoClear(w, h, d, slices, f)
}

// CreateCubemap allocates a single cubemap of six w×h faces.
func CreateCubemap(w, h uint32, f format.Format) (*Image, error) {
	return CreateCubemapArray(w, h, 1, f)
}

func CreateCubemapNoClear(w, h uint32, f format.Format) (*Image, error) {
	return CreateCubemapArrayNoClear(w, h, 1, f)
}

// CreateCubemapArray allocates cubes cubemaps, i.e. cubes*6 slices.
func CreateCubemapArray(w, h, cubes uint32, f format.Format) (*Image, error) {
	hdr, err := NewCubemapHeader(w, h, cubes, f)
	if err != nil {
		return nil, err
	}
	return hdr.Materialize()
}

func CreateCubemapArrayNoClear(w, h, cubes uint32, f format.Format) (*Image, error) {
	hdr, err := NewCubemapHeader(w, h, cubes, f)
	if err != nil {
		return nil, err
	}
	return hdr.MaterializeNoClear()
}

// ID identifies the chain the image belongs to.
func (img *Image) ID() uuid.UUID {
	return img.owner.id
}

// Flags reports the cubemap flag and, once the image lost its buffer, the
// header-only flag.
func (img *Image) Flags() Flags {
	var f Flags
	if img.cubemap {
		f |= FlagCubemap
	}
	if img.pix == nil {
		f |= FlagHeaderOnly
	}
	return f
}

// Shape returns the shape-only descriptor of the image.
func (img *Image) Shape() Header {
	return img.shape
}

// Data returns the pixel buffer, nil once the image has been destroyed.
// Writes through the slice modify the image.
func (img *Image) Data() []byte {
	return img.pix
}

// IsRoot reports whether img owns its chain.
func (img *Image) IsRoot() bool {
	return img.owner.levels[0] == img
}

// Root returns the image owning img's chain.
func (img *Image) Root() *Image {
	return img.owner.levels[0]
}

func (img *Image) checkBuffer() error {
	if img.pix == nil {
		return fmt.Errorf("%w: %s", ErrNullBuffer, img.shape)
	}
	return nil
}

// Destroy releases every image of the chain rooted at img. Destroying a
// member that is not the root, or destroying twice, is a contract violation
// and panics.
func (img *Image) Destroy() {
	if !img.IsRoot() {
		panic("gfx: Destroy called on a linked image; destroy the chain root")
	}
	if img.owner.destroyed {
		panic("gfx: image chain destroyed twice")
	}
	slog.Debug("destroying image chain",
		slog.String("id", img.owner.id.String()),
		slog.Int("levels", len(img.owner.levels)),
		slog.Int("sliceImages", len(img.owner.slices)))
	img.owner.release()
}

// release returns every buffer to the pool and marks the chain dead.
func (c *chain) release() {
	for _, lvl := range c.levels {
		pixelBuffers.put(lvl.pix)
		lvl.pix = nil
	}
	for _, s := range c.slices {
		pixelBuffers.put(s.pix)
		s.pix = nil
	}
	c.destroyed = true
}

// relinquish marks the chain dead without recycling buffers that were handed
// over to another image.
func (c *chain) relinquish(kept map[*byte]bool) {
	free := func(img *Image) {
		if len(img.pix) > 0 && !kept[&img.pix[0]] {
			pixelBuffers.put(img.pix)
		}
		img.pix = nil
	}
	for _, lvl := range c.levels {
		free(lvl)
	}
	for _, s := range c.slices {
		free(s)
	}
	c.destroyed = true
}

// Clone deep-copies img and everything linked after it, pixels included,
// into a new chain.
func (img *Image) Clone() (*Image, error) {
	return mapChain(img, func(src *Image) (*Image, error) {
		if err := src.checkBuffer(); err != nil {
			return nil, err
		}
		return cloneLevel(src)
	})
}

// CloneStructure copies the shape of img's chain into a new chain with
// zeroed buffers. img is not read beyond its headers.
func (img *Image) CloneStructure() (*Image, error) {
	return mapChain(img, func(src *Image) (*Image, error) {
		return src.shape.Materialize()
	})
}
