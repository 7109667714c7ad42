package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jpfielding/gfximage.go/pkg/codec"
	"github.com/jpfielding/gfximage.go/pkg/gfx"
	"github.com/jpfielding/gfximage.go/pkg/util"
	"github.com/spf13/cobra"
)

// levelInfo describes one mip level of an image chain
type levelInfo struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
	Depth  uint32 `json:"depth"`
	Bytes  uint64 `json:"bytes"`
	MD5    string `json:"md5"`
}

// imageInfo is the report printed for each file
type imageInfo struct {
	Path        string      `json:"path"`
	Shape       string      `json:"shape"`
	Format      string      `json:"format"`
	Cubemap     bool        `json:"cubemap"`
	Compressed  bool        `json:"compressed"`
	Levels      []levelInfo `json:"levels,omitempty"`
	SliceImages int         `json:"sliceImages,omitempty"`
	ChainBytes  uint64      `json:"chainBytes,omitempty"`
	ContentID   string      `json:"contentId,omitempty"`
}

// NewInfoCmd creates the info cobra command
func NewInfoCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info [files...]",
		Short: "Describe image files",
		Long:  "Loads each file and prints its shape, pixel format, mip chain, slice images and a content identifier derived from the pixels.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			headerOnly, _ := cmd.Flags().GetBool("header-only")
			outFormat, _ := cmd.Flags().GetString("format")
			reports := make([]imageInfo, 0, len(args))
			for _, path := range args {
				if err := ctx.Err(); err != nil {
					return err
				}
				rep, err := describe(path, headerOnly)
				if err != nil {
					return err
				}
				reports = append(reports, rep)
			}
			return printInfo(cmd.OutOrStdout(), outFormat, reports)
		},
	}
	pf := cmd.PersistentFlags()
	pf.Bool("header-only", false, "read only the file header where the container allows")
	pf.StringP("format", "f", "text", "output format (text|json)")
	return cmd
}

func describe(path string, headerOnly bool) (imageInfo, error) {
	if headerOnly {
		h, err := codec.LoadHeader(path)
		if err != nil {
			return imageInfo{}, err
		}
		return headerInfo(path, h), nil
	}
	img, err := codec.Load(path)
	if err != nil {
		return imageInfo{}, err
	}
	defer img.Destroy()

	rep := headerInfo(path, img.Shape())
	for i, n := 0, img.LinkedImageCount(); i < n; i++ {
		lvl, err := img.LinkedImageOf(i)
		if err != nil {
			return imageInfo{}, err
		}
		rep.Levels = append(rep.Levels, levelInfo{
			Width:  lvl.Width(),
			Height: lvl.Height(),
			Depth:  lvl.Depth(),
			Bytes:  lvl.Shape().ByteCount(),
			MD5:    util.Md5ThenHex(lvl.Data()),
		})
	}
	rep.SliceImages = img.SliceImageCount()
	rep.ChainBytes = img.ByteCountOfImageChain()
	rep.ContentID = codec.ContentID(img).String()
	return rep, nil
}

func headerInfo(path string, h gfx.Header) imageInfo {
	return imageInfo{
		Path:       path,
		Shape:      h.String(),
		Format:     h.Format().Name(),
		Cubemap:    h.IsCubemap(),
		Compressed: h.Format().IsCompressed(),
	}
}

func printInfo(w io.Writer, outFormat string, reports []imageInfo) error {
	switch outFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case "text":
	default:
		return fmt.Errorf("unknown output format %q", outFormat)
	}
	for _, rep := range reports {
		fmt.Fprintf(w, "=== %s ===\n", rep.Path)
		fmt.Fprintf(w, "Shape: %s\n", rep.Shape)
		fmt.Fprintf(w, "Format: %s (compressed=%v)\n", rep.Format, rep.Compressed)
		if len(rep.Levels) == 0 {
			continue
		}
		fmt.Fprintf(w, "Levels: %d\n", len(rep.Levels))
		for i, lvl := range rep.Levels {
			fmt.Fprintf(w, "  %d: %dx%dx%d %d bytes md5=%s\n", i, lvl.Width, lvl.Height, lvl.Depth, lvl.Bytes, lvl.MD5)
		}
		fmt.Fprintf(w, "Slice images: %d\n", rep.SliceImages)
		fmt.Fprintf(w, "Chain bytes: %d\n", rep.ChainBytes)
		fmt.Fprintf(w, "Content ID: %s\n", rep.ContentID)
	}
	return nil
}
