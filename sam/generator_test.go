package sam

import (
	"context"
	"image"
	"testing"

	"github.com/getcharzp/go-som/mask"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadrantDecoder 8x8 的假解码器:
// 输出 0 为点所在的 4x4 象限, 输出 1 分数过低, 输出 2 为整张图
type quadrantDecoder struct {
	calls int
}

func (d *quadrantDecoder) Size() (int, int) { return 8, 8 }

func (d *quadrantDecoder) ToMask(logits []float32) *mask.Mask {
	return mask.FromLogits(logits, 8, 8, 8, 8, 8, 0)
}

func (d *quadrantDecoder) Predict(prompts [][]Point) ([]Prediction, error) {
	d.calls++
	preds := make([]Prediction, 0, len(prompts))
	for _, pts := range prompts {
		p := pts[0]
		qx, qy := int(p.X)/4*4, int(p.Y)/4*4
		quad := filled(func(x, y int) bool { return x >= qx && x < qx+4 && y >= qy && y < qy+4 })
		full := filled(func(int, int) bool { return true })
		preds = append(preds, Prediction{
			Scores: []float32{0.95, 0.5, 0.99},
			Logits: [][]float32{quad, quad, full},
		})
	}
	return preds, nil
}

func filled(on func(x, y int) bool) []float32 {
	out := make([]float32, 64)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if on(x, y) {
				out[y*8+x] = 5
			} else {
				out[y*8+x] = -5
			}
		}
	}
	return out
}

func TestPointGrid(t *testing.T) {
	pts := pointGrid(2, 8, 8)
	require.Len(t, pts, 4)
	assert.Equal(t, Point{X: 2, Y: 2, Label: LabelForeground}, pts[0])
	assert.Equal(t, Point{X: 6, Y: 2, Label: LabelForeground}, pts[1])
	assert.Equal(t, Point{X: 6, Y: 6, Label: LabelForeground}, pts[3])
}

func TestGenerate(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.PointsPerSide = 2
	cfg.PointsPerBatch = 3

	d := &quadrantDecoder{}
	results, err := Generate(context.Background(), d, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, d.calls)

	// 4 个象限 + 去重后的整图
	require.Len(t, results, 5)
	assert.Equal(t, 64, results[0].Area)
	assert.Equal(t, 2, results[0].Output)
	for _, r := range results[1:] {
		assert.Equal(t, 16, r.Area)
		assert.Equal(t, 0, r.Output)
		assert.Equal(t, r.Mask.Bounds(), r.Box)
	}
}

func TestGenerate_OutputFilter(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.PointsPerSide = 2
	cfg.Outputs = []int{0}

	results, err := Generate(context.Background(), &quadrantDecoder{}, cfg)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, image.Rect(0, 0, 4, 4), results[0].Box)
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Generate(ctx, &quadrantDecoder{}, DefaultGeneratorConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInteractive(t *testing.T) {
	scribble := mask.New(8, 8)
	scribble.Set(5, 1, true)
	scribble.Set(5, 2, true)
	other := mask.New(8, 8)
	other.Set(1, 6, true)

	results, err := Interactive(context.Background(), &quadrantDecoder{}, []*mask.Mask{scribble, other, mask.New(8, 8)})
	require.NoError(t, err)
	require.Len(t, results, 2)
	// 每个区域取分数最高的输出 (整图)
	assert.Equal(t, 2, results[0].Output)
	assert.Equal(t, 64, results[0].Area)
}
