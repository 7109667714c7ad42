// Package codec reads and writes images in container file formats.
//
// Each Codec turns a byte stream into a gfx.Image chain and back. Containers
// that can describe mip levels, array slices and cubemaps (DDS, KTX, GFXZ)
// carry the whole chain; the single-picture formats (PNG, JPEG, BMP, TIFF,
// TGA, HDR) carry one 2D image. Load and Save are thin file adapters over the
// registry.
package codec

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jpfielding/gfximage.go/pkg/gfx"
	"github.com/klauspost/compress/zstd"
)

// Codec defines the interface for a container format
type Codec interface {
	// Name returns the codec identifier (e.g., "dds")
	Name() string
	// Extensions lists the lower-case file extensions, dot included
	Extensions() []string
	// Decode reads one image chain
	Decode(r io.Reader) (*gfx.Image, error)
	// Encode writes img and, where the container allows, its linked images
	Encode(w io.Writer, img *gfx.Image) error
	// CanEncode reports whether an image shaped like h can be stored
	CanEncode(h gfx.Header) bool
}

// HeaderDecoder is implemented by codecs that can read the shape of an image
// without its pixels.
type HeaderDecoder interface {
	DecodeHeader(r io.Reader) (gfx.Header, error)
}

// Predefined codec instances
var (
	PNG  Codec = pngCodec
	JPEG Codec = jpegCodec
	BMP  Codec = bmpCodec
	TIFF Codec = tiffCodec
	TGA  Codec = &tgaCodec{rle: true}
	HDR  Codec = &hdrCodec{}
	DDS  Codec = &ddsCodec{}
	KTX  Codec = &ktxCodec{}
	GFXZ Codec = &gfxzCodec{level: zstd.SpeedDefault}
)

// All returns every registered codec.
func All() []Codec {
	return []Codec{PNG, JPEG, BMP, TIFF, TGA, HDR, DDS, KTX, GFXZ}
}

// magics maps leading file bytes to codecs. TGA has no signature.
var magics = []struct {
	prefix string
	codec  Codec
}{
	{"\x89PNG\r\n\x1a\n", PNG},
	{"\xff\xd8\xff", JPEG},
	{"BM", BMP},
	{"II*\x00", TIFF},
	{"MM\x00*", TIFF},
	{"#?RADIANCE", HDR},
	{"#?RGBE", HDR},
	{ddsMagic, DDS},
	{ktxIdentifier, KTX},
	{gfxzMagic, GFXZ},
}

// ByName returns a codec by name (case-insensitive), or nil if not found
func ByName(name string) Codec {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "jpg" {
		name = "jpeg"
	}
	for _, c := range All() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// ByExtension returns the codec for the extension of path, or nil if not found
func ByExtension(path string) Codec {
	ext := strings.ToLower(filepath.Ext(path))
	for _, c := range All() {
		for _, e := range c.Extensions() {
			if e == ext {
				return c
			}
		}
	}
	return nil
}

// Sniff returns the codec whose signature starts head, or nil if none does.
func Sniff(head []byte) Codec {
	for _, m := range magics {
		if bytes.HasPrefix(head, []byte(m.prefix)) {
			return m.codec
		}
	}
	return nil
}

// open resolves the codec of path from its signature, then its extension.
func open(path string) (*os.File, *bufio.Reader, Codec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	br := bufio.NewReader(f)
	head, _ := br.Peek(16)
	c := Sniff(head)
	if c == nil {
		c = ByExtension(path)
	}
	if c == nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("%w: no codec for %s", gfx.ErrDecode, path)
	}
	return f, br, c, nil
}

// Load decodes the image stored at path.
func Load(path string) (*gfx.Image, error) {
	f, br, c, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := c.Decode(br)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("loaded image",
		slog.String("path", path),
		slog.String("codec", c.Name()),
		slog.String("shape", img.Shape().String()),
		slog.Int("levels", img.LinkedImageCount()))
	return img, nil
}

// LoadHeader returns the shape of the image stored at path, reading only its
// header when the codec allows.
func LoadHeader(path string) (gfx.Header, error) {
	f, br, c, err := open(path)
	if err != nil {
		return gfx.Header{}, err
	}
	defer f.Close()
	if hd, ok := c.(HeaderDecoder); ok {
		h, err := hd.DecodeHeader(br)
		if err != nil {
			return gfx.Header{}, fmt.Errorf("%s: %w", path, err)
		}
		return h, nil
	}
	img, err := c.Decode(br)
	if err != nil {
		return gfx.Header{}, fmt.Errorf("%s: %w", path, err)
	}
	defer img.Destroy()
	return img.Shape(), nil
}

// Save encodes img into path with the codec matching its extension.
func Save(path string, img *gfx.Image) error {
	c := ByExtension(path)
	if c == nil {
		return fmt.Errorf("%w: no codec for %s", gfx.ErrEncode, path)
	}
	if !c.CanEncode(img.Shape()) {
		return fmt.Errorf("%w: %s cannot store %s", gfx.ErrEncode, c.Name(), img.Shape())
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := c.Encode(w, img); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	slog.Debug("saved image",
		slog.String("path", path),
		slog.String("codec", c.Name()),
		slog.String("shape", img.Shape().String()))
	return nil
}

func decodeErr(codec string, err error) error {
	return fmt.Errorf("%w: %s: %w", gfx.ErrDecode, codec, err)
}

// MaxDecodeBytes bounds the pixel storage one Decode may allocate. Files whose
// header declares more fail with gfx.ErrAllocation before any buffer is sized
// from it. Zero disables the check.
var MaxDecodeBytes uint64 = 1 << 32

// checkDecodeSize totals the first levels mip levels of h and one slice image
// of n array slices for every entry of sliceCounts against MaxDecodeBytes.
func checkDecodeSize(h gfx.Header, levels int, sliceCounts ...uint32) error {
	if err := h.Validate(); err != nil {
		return err
	}
	limit := MaxDecodeBytes
	if limit == 0 {
		return nil
	}
	var total uint64
	fits := func(n uint64) bool {
		if n > limit-total {
			return false
		}
		total += n
		return true
	}
	lvl := h
	for i, n := 0, max(1, min(levels, h.MipMapLevelCount())); i < n; i++ {
		if !fits(lvl.ByteCount()) {
			return fmt.Errorf("%w: %s level %d exceeds the %d byte decode limit", gfx.ErrAllocation, h, i, limit)
		}
		lvl = lvl.Next()
	}
	page := h.ByteCountPerPage()
	for _, n := range sliceCounts {
		// page*n stays below limit once the quotient check passes
		if n > 0 && page > (limit-total)/uint64(n) || !fits(page*uint64(n)) {
			return fmt.Errorf("%w: %d slices of %s exceed the %d byte decode limit", gfx.ErrAllocation, n, h, limit)
		}
	}
	return nil
}

func encodeErr(codec string, err error) error {
	return fmt.Errorf("%w: %s: %w", gfx.ErrEncode, codec, err)
}

// isFlat reports whether h is a single uncompressed 2D picture.
func isFlat(h gfx.Header) bool {
	return !h.Format().IsCompressed() && h.Depth() == 1 && h.Slices() == 1
}
