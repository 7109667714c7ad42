package gfx

import (
	"context"
	"testing"

	"github.com/jpfielding/gfximage.go/pkg/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertAll(t *testing.T) {
	var imgs []*Image
	for i := 0; i < 6; i++ {
		img := mustCreate(t, uint32(2+i), 3, 1, 1, format.R8G8B8A8UNorm)
		defer img.Destroy()
		fill(t, img)
		imgs = append(imgs, img)
	}

	out, err := ConvertAll(context.Background(), imgs, format.R32G32B32A32SFloat, 2)
	require.NoError(t, err)
	require.Len(t, out, len(imgs))
	for i, res := range out {
		assert.Equal(t, format.R32G32B32A32SFloat, res.Format())
		assert.Equal(t, imgs[i].Width(), res.Width())
		res.Destroy()
	}
}

func TestConvertAllFailureCleansUp(t *testing.T) {
	good := mustCreate(t, 4, 4, 1, 1, format.R8G8B8A8UNorm)
	defer good.Destroy()
	bad := mustCreate(t, 4, 4, 1, 1, format.R8G8B8A8UNorm)
	bad.Destroy()

	out, err := ConvertAll(context.Background(), []*Image{good, bad}, format.R16UNorm, 0)
	assert.ErrorIs(t, err, ErrNullBuffer)
	assert.Nil(t, out)
}

func TestConvertAllCancelled(t *testing.T) {
	img := mustCreate(t, 4, 4, 1, 1, format.R8G8B8A8UNorm)
	defer img.Destroy()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ConvertAll(ctx, []*Image{img}, format.R16UNorm, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
