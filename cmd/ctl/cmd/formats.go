package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/jpfielding/gfximage.go/pkg/codec"
	"github.com/jpfielding/gfximage.go/pkg/format"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// NewFormatsCmd lists the pixel formats and containers imgctl understands.
func NewFormatsCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List pixel formats and containers",
		RunE: func(cmd *cobra.Command, args []string) error {
			compressed, _ := cmd.Flags().GetBool("compressed")
			containers, _ := cmd.Flags().GetBool("containers")
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if containers {
				fmt.Fprintln(w, "NAME\tEXTENSIONS")
				for _, c := range codec.All() {
					fmt.Fprintf(w, "%s\t%v\n", c.Name(), c.Extensions())
				}
				return w.Flush()
			}
			fs := lo.Filter(format.All(), func(f format.Format, _ int) bool {
				return !compressed || f.IsCompressed()
			})
			fmt.Fprintln(w, "NAME\tCHANNELS\tBITS\tALPHA\tCOMPRESSED")
			for _, row := range lo.Map(fs, formatRow) {
				fmt.Fprintln(w, row)
			}
			return w.Flush()
		},
	}
	pf := cmd.PersistentFlags()
	pf.Bool("compressed", false, "list only block-compressed formats")
	pf.Bool("containers", false, "list file containers instead of pixel formats")
	return cmd
}

func formatRow(f format.Format, _ int) string {
	return fmt.Sprintf("%s\t%d\t%d\t%v\t%v", f.Name(), f.ChannelCount(), f.BitsPerPixel(), f.HasAlpha(), f.IsCompressed())
}
