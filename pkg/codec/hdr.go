package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/jpfielding/gfximage.go/pkg/format"
	"github.com/jpfielding/gfximage.go/pkg/gfx"
)

const (
	hdrFormatRGBE = "32-bit_rle_rgbe"
	hdrMinRLE     = 8
	hdrMaxRLE     = 0x7fff
)

// hdrCodec reads and writes Radiance RGBE pictures as R32G32B32_SFLOAT.
type hdrCodec struct{}

func (c *hdrCodec) Name() string         { return "hdr" }
func (c *hdrCodec) Extensions() []string { return []string{".hdr", ".pic"} }

func (c *hdrCodec) CanEncode(h gfx.Header) bool { return isFlat(h) }

// readHDRHeader consumes the text header and resolution line. flip is set
// for bottom-up pictures.
func readHDRHeader(br *bufio.Reader) (gfx.Header, bool, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return gfx.Header{}, false, err
	}
	if !strings.HasPrefix(line, "#?") {
		return gfx.Header{}, false, errors.New("missing #? signature")
	}
	for {
		line, err = br.ReadString('\n')
		if err != nil {
			return gfx.Header{}, false, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "FORMAT="); ok && v != hdrFormatRGBE {
			return gfx.Header{}, false, fmt.Errorf("unsupported pixel format %q", v)
		}
	}
	line, err = br.ReadString('\n')
	if err != nil {
		return gfx.Header{}, false, err
	}
	line = strings.TrimSpace(line)
	var ySign, xSign byte
	var height, width uint32
	if _, err := fmt.Sscanf(line, "%cY %d %cX %d", &ySign, &height, &xSign, &width); err != nil {
		return gfx.Header{}, false, fmt.Errorf("resolution %q: %w", line, err)
	}
	if xSign != '+' {
		return gfx.Header{}, false, fmt.Errorf("unsupported orientation %q", line)
	}
	h, err := gfx.NewHeader(width, height, 1, 1, format.R32G32B32SFloat)
	return h, ySign == '+', err
}

func (c *hdrCodec) DecodeHeader(r io.Reader) (gfx.Header, error) {
	h, _, err := readHDRHeader(bufio.NewReader(r))
	if err != nil {
		return gfx.Header{}, decodeErr("hdr", err)
	}
	return h, nil
}

func (c *hdrCodec) Decode(r io.Reader) (*gfx.Image, error) {
	br := bufio.NewReader(r)
	h, flip, err := readHDRHeader(br)
	if err != nil {
		return nil, decodeErr("hdr", err)
	}
	if err := checkDecodeSize(h, 1); err != nil {
		return nil, decodeErr("hdr", err)
	}
	img, err := h.MaterializeNoClear()
	if err != nil {
		return nil, decodeErr("hdr", err)
	}
	w := int(h.Width())
	pix := img.Data()
	scan := make([]byte, 4*w)
	for y := 0; y < int(h.Height()); y++ {
		if err := readScanline(br, scan); err != nil {
			img.Destroy()
			return nil, decodeErr("hdr", fmt.Errorf("scanline %d: %w", y, err))
		}
		row := pix[y*12*w:]
		for x := 0; x < w; x++ {
			r, g, b := fromRGBE(scan[4*x:])
			binary.LittleEndian.PutUint32(row[12*x:], math.Float32bits(r))
			binary.LittleEndian.PutUint32(row[12*x+4:], math.Float32bits(g))
			binary.LittleEndian.PutUint32(row[12*x+8:], math.Float32bits(b))
		}
	}
	if flip {
		flipRows(pix, 12*w)
	}
	return img, nil
}

// readScanline reads w RGBE pixels into scan, interleaved. Both the
// per-channel run-length layout and flat pixels with the old repeat marker
// are accepted.
func readScanline(br *bufio.Reader, scan []byte) error {
	w := len(scan) / 4
	var head [4]byte
	if _, err := io.ReadFull(br, head[:]); err != nil {
		return err
	}
	if w < hdrMinRLE || w > hdrMaxRLE || head[0] != 2 || head[1] != 2 || head[2]&0x80 != 0 {
		return readFlatScanline(br, head, scan)
	}
	if int(head[2])<<8|int(head[3]) != w {
		return errors.New("scanline width mismatch")
	}
	for ch := 0; ch < 4; ch++ {
		for x := 0; x < w; {
			count, err := br.ReadByte()
			if err != nil {
				return err
			}
			if count > 128 {
				n := int(count - 128)
				if x+n > w {
					return errors.New("run overruns scanline")
				}
				v, err := br.ReadByte()
				if err != nil {
					return err
				}
				for ; n > 0; n-- {
					scan[4*x+ch] = v
					x++
				}
				continue
			}
			n := int(count)
			if n == 0 || x+n > w {
				return errors.New("bad literal count")
			}
			for ; n > 0; n-- {
				v, err := br.ReadByte()
				if err != nil {
					return err
				}
				scan[4*x+ch] = v
				x++
			}
		}
	}
	return nil
}

func readFlatScanline(br *bufio.Reader, first [4]byte, scan []byte) error {
	copy(scan, first[:])
	x, shift := 1, 0
	if first == [4]byte{1, 1, 1, first[3]} {
		return errors.New("repeat marker without a previous pixel")
	}
	var p [4]byte
	for x < len(scan)/4 {
		if _, err := io.ReadFull(br, p[:]); err != nil {
			return err
		}
		if p[0] == 1 && p[1] == 1 && p[2] == 1 {
			n := int(p[3]) << shift
			if x+n > len(scan)/4 {
				return errors.New("repeat overruns scanline")
			}
			for ; n > 0; n-- {
				copy(scan[4*x:4*x+4], scan[4*x-4:4*x])
				x++
			}
			shift += 8
			continue
		}
		copy(scan[4*x:], p[:])
		x++
		shift = 0
	}
	return nil
}

func (c *hdrCodec) Encode(w io.Writer, img *gfx.Image) error {
	if !c.CanEncode(img.Shape()) {
		return encodeErr("hdr", fmt.Errorf("cannot store %s", img.Shape()))
	}
	width, height := int(img.Width()), int(img.Height())
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "#?RADIANCE\nFORMAT=%s\n\n-Y %d +X %d\n", hdrFormatRGBE, height, width)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return encodeErr("hdr", err)
	}

	scan := make([]byte, 4*width)
	channel := make([]byte, width)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			px, err := img.PixelAt(uint32(x), uint32(y), 0, 0)
			if err != nil {
				return encodeErr("hdr", err)
			}
			if img.Format().ChannelCount() == 1 {
				px.G, px.B = px.R, px.R
			}
			e := toRGBE(px.R, px.G, px.B)
			copy(scan[4*x:], e[:])
		}
		buf.Reset()
		if width < hdrMinRLE || width > hdrMaxRLE {
			buf.Write(scan)
		} else {
			buf.Write([]byte{2, 2, byte(width >> 8), byte(width)})
			for ch := 0; ch < 4; ch++ {
				for x := range channel {
					channel[x] = scan[4*x+ch]
				}
				writeRLEChannel(&buf, channel)
			}
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return encodeErr("hdr", err)
		}
	}
	return nil
}

// writeRLEChannel encodes one channel of a scanline. Runs of four or more
// become 128+n followed by the value, anything else goes out as literals.
func writeRLEChannel(buf *bytes.Buffer, data []byte) {
	runAt := func(i int) int {
		n := 1
		for i+n < len(data) && n < 127 && data[i+n] == data[i] {
			n++
		}
		return n
	}
	for i := 0; i < len(data); {
		if n := runAt(i); n >= 4 {
			buf.WriteByte(byte(128 + n))
			buf.WriteByte(data[i])
			i += n
			continue
		}
		start := i
		for i < len(data) && i-start < 128 && runAt(i) < 4 {
			i++
		}
		buf.WriteByte(byte(i - start))
		buf.Write(data[start:i])
	}
}

func toRGBE(r, g, b float64) [4]byte {
	r, g, b = max(0, r), max(0, g), max(0, b)
	v := max(r, g, b)
	if v < 1e-32 {
		return [4]byte{}
	}
	m, e := math.Frexp(v)
	scale := m * 256 / v
	return [4]byte{byte(r * scale), byte(g * scale), byte(b * scale), byte(e + 128)}
}

func fromRGBE(p []byte) (r, g, b float32) {
	if p[3] == 0 {
		return 0, 0, 0
	}
	f := math.Ldexp(1, int(p[3])-(128+8))
	return float32((float64(p[0]) + 0.5) * f),
		float32((float64(p[1]) + 0.5) * f),
		float32((float64(p[2]) + 0.5) * f)
}
