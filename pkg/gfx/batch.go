package gfx

import (
	"context"
	"log/slog"

	"github.com/jpfielding/gfximage.go/pkg/format"
	"golang.org/x/sync/errgroup"
)

// ConvertAll converts each image of imgs into target with FastConvert, at
// most limit at a time (limit <= 0 means unbounded). The images must be
// independent chains; none is shared between goroutines. Results keep the
// order of imgs. On the first failure or cancellation every result built so
// far is destroyed and the error is returned.
func ConvertAll(ctx context.Context, imgs []*Image, target format.Format, limit int) ([]*Image, error) {
	out := make([]*Image, len(imgs))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, img := range imgs {
		i, img := i, img
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := FastConvert(img, target)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, res := range out {
			if res != nil {
				res.Destroy()
			}
		}
		slog.DebugContext(ctx, "batch conversion failed", slog.Int("images", len(imgs)), slog.Any("err", err))
		return nil, err
	}
	return out, nil
}
