package pipeline

import (
	"context"
	"image"
	"image/color"
	"io"
	"log/slog"
	"testing"

	som "github.com/getcharzp/go-som"
	"github.com/getcharzp/go-som/mask"
	"github.com/getcharzp/go-som/seem"
	"github.com/getcharzp/go-som/visualizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSegmenter struct {
	masks   []*mask.Mask
	levels  []int
	spatial []*mask.Mask
	closed  bool
}

func (f *fakeSegmenter) Automatic(_ context.Context, _ image.Image, levels []int) ([]*mask.Mask, error) {
	f.levels = levels
	return f.masks, nil
}

func (f *fakeSegmenter) Interactive(_ context.Context, _ image.Image, spatial []*mask.Mask) ([]*mask.Mask, error) {
	f.spatial = spatial
	return f.masks, nil
}

func (f *fakeSegmenter) Close() error {
	f.closed = true
	return nil
}

func rectMask(w, h int, r image.Rectangle) *mask.Mask {
	m := mask.New(w, h)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Set(x, y, true)
		}
	}
	return m
}

func newTestRegistry(t *testing.T, models map[som.ModelName]Segmenter) *Registry {
	t.Helper()
	vis, err := visualizer.New("")
	require.NoError(t, err)
	t.Cleanup(vis.Close)
	return NewRegistry(vis, models, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegistry_Run(t *testing.T) {
	fake := &fakeSegmenter{masks: []*mask.Mask{
		rectMask(32, 32, image.Rect(0, 0, 4, 4)),
		rectMask(32, 32, image.Rect(8, 8, 32, 32)),
	}}
	r := newTestRegistry(t, map[som.ModelName]Segmenter{som.ModelSemanticSAM: fake})

	opts := som.DefaultOptions()
	res, err := r.Run(context.Background(), Request{Image: image.NewRGBA(image.Rect(0, 0, 32, 32)), Options: opts})
	require.NoError(t, err)

	assert.Equal(t, som.ModelSemanticSAM, res.Selection.Model)
	assert.Equal(t, []int{4}, fake.levels)
	require.Len(t, res.Marks, 2)
	// 按面积从大到小编号
	assert.Equal(t, 576, res.Marks[0].Area)
	assert.Equal(t, 16, res.Marks[1].Area)
	assert.Equal(t, image.Rect(0, 0, 32, 32), res.Image.Bounds())
}

func TestRegistry_RunUnavailable(t *testing.T) {
	r := newTestRegistry(t, nil)
	opts := som.DefaultOptions()
	opts.Slider = 3

	_, err := r.Run(context.Background(), Request{Image: image.NewRGBA(image.Rect(0, 0, 8, 8)), Options: opts})
	assert.ErrorIs(t, err, som.ErrModelUnavailable)
}

func TestRegistry_RunInteractive(t *testing.T) {
	fake := &fakeSegmenter{masks: []*mask.Mask{rectMask(16, 16, image.Rect(0, 0, 8, 8))}}
	r := newTestRegistry(t, map[som.ModelName]Segmenter{som.ModelSAM: fake})

	opts := som.DefaultOptions()
	opts.Mode = som.ModeInteractive
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))

	_, err := r.Run(context.Background(), Request{Image: img, Options: opts})
	assert.ErrorIs(t, err, som.ErrMaskRequired)

	// 空白涂抹层同样视为未提供
	_, err = r.Run(context.Background(), Request{Image: img, Scribble: image.NewGray(img.Bounds()), Options: opts})
	assert.ErrorIs(t, err, som.ErrMaskRequired)

	scribble := image.NewGray(img.Bounds())
	scribble.SetGray(1, 1, color.Gray{Y: 255})
	scribble.SetGray(12, 12, color.Gray{Y: 255})
	res, err := r.Run(context.Background(), Request{Image: img, Scribble: scribble, Options: opts})
	require.NoError(t, err)
	assert.Equal(t, som.ModelSAM, res.Selection.Model)
	assert.Len(t, fake.spatial, 2)
	assert.Len(t, res.Masks, 1)
}

func TestRegistry_RunInteractiveMaskSize(t *testing.T) {
	fake := &fakeSegmenter{masks: []*mask.Mask{rectMask(100, 100, image.Rect(0, 0, 8, 8))}}
	r := newTestRegistry(t, map[som.ModelName]Segmenter{som.ModelSAM: fake})

	opts := som.DefaultOptions()
	opts.Mode = som.ModeInteractive
	scribble := image.NewGray(image.Rect(0, 0, 10, 10))
	scribble.SetGray(2, 2, color.Gray{Y: 255})

	_, err := r.Run(context.Background(), Request{Image: image.NewRGBA(image.Rect(0, 0, 100, 100)), Scribble: scribble, Options: opts})
	assert.ErrorIs(t, err, som.ErrMaskSize)
	assert.Nil(t, fake.spatial)
}

func TestRegistry_AvailableAndClose(t *testing.T) {
	a, b := &fakeSegmenter{}, &fakeSegmenter{}
	r := newTestRegistry(t, map[som.ModelName]Segmenter{som.ModelSEEM: a, som.ModelSAM: b})

	assert.Equal(t, []som.ModelName{som.ModelSAM, som.ModelSEEM}, r.Available())
	require.NoError(t, r.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestRegistry_Highlight(t *testing.T) {
	fake := &fakeSegmenter{masks: []*mask.Mask{
		rectMask(16, 16, image.Rect(0, 0, 16, 8)),
		rectMask(16, 16, image.Rect(0, 8, 16, 12)),
	}}
	r := newTestRegistry(t, map[som.ModelName]Segmenter{som.ModelSEEM: fake})

	opts := som.ChatOptions()
	opts.Slider = 1
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	res, err := r.Run(context.Background(), Request{Image: img, Options: opts})
	require.NoError(t, err)

	_, marks, err := r.Highlight(img, res, []int{2})
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Equal(t, 64, marks[0].Area)
}

// 没有交互式模型时 SEEM 只支持自动模式
func TestSeemSegmenter_InteractiveUnavailable(t *testing.T) {
	r := newTestRegistry(t, map[som.ModelName]Segmenter{som.ModelSEEM: &seemSegmenter{engine: &seem.Engine{}}})

	opts := som.DefaultOptions()
	opts.Slider = 1
	opts.Mode = som.ModeInteractive
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	scribble := image.NewGray(img.Bounds())
	scribble.SetGray(3, 3, color.Gray{Y: 255})

	_, err := r.Run(context.Background(), Request{Image: img, Scribble: scribble, Options: opts})
	assert.ErrorIs(t, err, som.ErrModelUnavailable)
	assert.ErrorIs(t, err, seem.ErrInteractiveUnavailable)
}
