package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jpfielding/gfximage.go/pkg/codec"
	"github.com/jpfielding/gfximage.go/pkg/format"
	"github.com/jpfielding/gfximage.go/pkg/gfx"
	"github.com/jpfielding/gfximage.go/pkg/logging"
	"github.com/spf13/cobra"
)

// NewConvertCmd converts files to another pixel format, optionally in another
// container.
func NewConvertCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [files...]",
		Short: "Convert images to another pixel format",
		Long:  "Loads each file, converts every mip level and slice to --format on a bounded worker pool and saves the result next to the input (or under --out) with the extension given by --ext.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("format")
			outDir, _ := cmd.Flags().GetString("out")
			ext, _ := cmd.Flags().GetString("ext")
			workers, _ := cmd.Flags().GetInt("workers")
			target, err := format.FromName(name)
			if err != nil {
				return err
			}
			if ext == "" {
				ext = ".gfxz"
			}

			imgs := make([]*gfx.Image, 0, len(args))
			defer func() {
				for _, img := range imgs {
					img.Destroy()
				}
			}()
			for _, path := range args {
				img, err := codec.Load(path)
				if err != nil {
					return err
				}
				imgs = append(imgs, img)
			}

			ctx := logging.AppendCtx(ctx, slog.String("target", target.Name()))
			converted, err := gfx.ConvertAll(ctx, imgs, target, workers)
			if err != nil {
				return err
			}
			defer func() {
				for _, img := range converted {
					img.Destroy()
				}
			}()
			for i, img := range converted {
				out := outputPath(args[i], outDir, ext)
				if err := codec.Save(out, img); err != nil {
					return err
				}
				slog.InfoContext(ctx, "converted", slog.String("in", args[i]), slog.String("out", out))
			}
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("format", "f", "R8G8B8A8_UNORM", "target pixel format (see the formats command)")
	pf.StringP("out", "o", "", "output directory (defaults to the input directory)")
	pf.String("ext", ".gfxz", "output file extension, selecting the container")
	pf.IntP("workers", "w", 4, "images converted concurrently (0 for no limit)")
	return cmd
}

// NewMipsCmd builds a full mip chain for a file.
func NewMipsCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mips <in> <out>",
		Short: "Generate a mip chain",
		Long:  "Replaces any mip levels of <in> with a full chain filtered from the top level and saves it to <out>. Use a container that stores levels (dds, ktx, gfxz).",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filterName, _ := cmd.Flags().GetString("filter")
			filter, err := gfx.ParseFilter(strings.ToLower(filterName))
			if err != nil {
				return err
			}
			img, err := codec.Load(args[0])
			if err != nil {
				return err
			}
			defer img.Destroy()
			if filter == gfx.FilterBox {
				err = img.CreateMipMapChain(true)
			} else {
				err = img.CreateMipMapChainFiltered(filter)
			}
			if err != nil {
				return err
			}
			slog.InfoContext(ctx, "mip chain built",
				slog.String("filter", filter.String()),
				slog.Int("levels", img.LinkedImageCount()),
				slog.String("chain", img.ID().String()))
			return codec.Save(args[1], img)
		},
	}
	pf := cmd.PersistentFlags()
	pf.String("filter", "box", "mip filter (box|bilinear|catmullrom)")
	return cmd
}

// NewCompressCmd block-compresses a file.
func NewCompressCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress <in> <out>",
		Short: "Block-compress an image",
		Long:  "Compresses every level and slice of <in> into a BC format and saves it to <out>, optionally building a mip chain first.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("format")
			mips, _ := cmd.Flags().GetBool("mips")
			target, err := format.FromName(name)
			if err != nil {
				return err
			}
			if !target.IsCompressed() {
				return fmt.Errorf("%w: %s is not a block format", gfx.ErrUnsupportedFormat, target)
			}
			img, err := codec.Load(args[0])
			if err != nil {
				return err
			}
			defer img.Destroy()
			if mips {
				if err := img.CreateMipMapChain(true); err != nil {
					return err
				}
			}
			out, err := gfx.Compress(img, target)
			if err != nil {
				return err
			}
			defer out.Destroy()
			slog.InfoContext(ctx, "compressed",
				slog.String("format", target.Name()),
				slog.Uint64("bytes", out.ByteCountOfImageChain()))
			return codec.Save(args[1], out)
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("format", "f", "BC7_UNORM", "block format (BC1_RGB_UNORM .. BC7_SRGB)")
	pf.Bool("mips", false, "build a box-filtered mip chain before compressing")
	return cmd
}
