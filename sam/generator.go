package sam

import (
	"context"
	"fmt"
	"image"
	"sort"

	"github.com/getcharzp/go-som/mask"
)

// Decoder 可提示解码器, ImageContext 实现了该接口
type Decoder interface {
	Predict(prompts [][]Point) ([]Prediction, error)
	ToMask(logits []float32) *mask.Mask
	Size() (int, int)
}

// GeneratorConfig 自动分割参数
type GeneratorConfig struct {
	PointsPerSide   int     // 网格每边的点数
	PointsPerBatch  int     // 每次解码的提示数
	PredIoUThresh   float32 // IoU 预测分数阈值
	StabilityThresh float32 // 稳定性分数阈值
	StabilityOffset float32 // 稳定性计算时的阈值偏移
	BoxNMSThresh    float32 // 框 NMS 阈值
	MinRegionArea   int     // 小于该面积的孔洞与孤岛会被清理, 0 表示不清理

	// Outputs 需要保留的输出下标 (0 起), 为空表示全部保留
	Outputs []int
}

// DefaultGeneratorConfig SAM 自动分割的默认参数
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		PointsPerSide:   32,
		PointsPerBatch:  64,
		PredIoUThresh:   0.88,
		StabilityThresh: 0.95,
		StabilityOffset: 1.0,
		BoxNMSThresh:    0.7,
	}
}

// Result 单个分割结果
type Result struct {
	Mask      *mask.Mask
	Box       image.Rectangle
	Area      int
	Score     float32 // IoU 预测分数
	Stability float32
	Output    int // 产生该 mask 的输出下标
}

// Generate 网格点自动分割, 结果按面积从大到小排序
func Generate(ctx context.Context, d Decoder, cfg GeneratorConfig) ([]Result, error) {
	if cfg.PointsPerSide <= 0 {
		return nil, fmt.Errorf("PointsPerSide 必须大于 0")
	}
	batch := max(cfg.PointsPerBatch, 1)

	keepOutput := func(int) bool { return true }
	if len(cfg.Outputs) > 0 {
		allowed := make(map[int]bool, len(cfg.Outputs))
		for _, o := range cfg.Outputs {
			allowed[o] = true
		}
		keepOutput = func(k int) bool { return allowed[k] }
	}

	w, h := d.Size()
	points := pointGrid(cfg.PointsPerSide, w, h)

	var results []Result
	for start := 0; start < len(points); start += batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+batch, len(points))
		prompts := make([][]Point, 0, end-start)
		for _, p := range points[start:end] {
			prompts = append(prompts, []Point{p})
		}

		preds, err := d.Predict(prompts)
		if err != nil {
			return nil, fmt.Errorf("网格点解码失败: %w", err)
		}
		for _, pred := range preds {
			for k, score := range pred.Scores {
				if !keepOutput(k) || score < cfg.PredIoUThresh {
					continue
				}
				stability := mask.StabilityScore(pred.Logits[k], maskThreshold, cfg.StabilityOffset)
				if stability < cfg.StabilityThresh {
					continue
				}
				m := d.ToMask(pred.Logits[k])
				if cfg.MinRegionArea > 0 {
					m = mask.RemoveSmallRegions(m, cfg.MinRegionArea, mask.Holes)
					m = mask.RemoveSmallRegions(m, cfg.MinRegionArea, mask.Islands)
				}
				area := m.Area()
				if area == 0 {
					continue
				}
				results = append(results, Result{
					Mask:      m,
					Box:       m.Bounds(),
					Area:      area,
					Score:     score,
					Stability: stability,
					Output:    k,
				})
			}
		}
	}

	return dedupe(results, cfg.BoxNMSThresh), nil
}

// Interactive 每个涂抹区域生成一个提示点, 返回各区域得分最高的 mask
//
// # Params:
//
//	spatial: 涂抹区域 (原图尺寸), 通常来自 mask.Label
func Interactive(ctx context.Context, d Decoder, spatial []*mask.Mask) ([]Result, error) {
	results := make([]Result, 0, len(spatial))
	for i, sm := range spatial {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if sm.Area() == 0 {
			continue
		}
		p := mask.MarkPoint(sm)
		preds, err := d.Predict([][]Point{{{X: float32(p.X), Y: float32(p.Y), Label: LabelForeground}}})
		if err != nil {
			return nil, fmt.Errorf("第 %d 个涂抹区域解码失败: %w", i, err)
		}
		best := bestOutput(preds[0].Scores)
		m := d.ToMask(preds[0].Logits[best])
		results = append(results, Result{
			Mask:   m,
			Box:    m.Bounds(),
			Area:   m.Area(),
			Score:  preds[0].Scores[best],
			Output: best,
		})
	}
	sortByArea(results)
	return results, nil
}

// dedupe 框 NMS 去重后按面积排序
func dedupe(results []Result, iouThresh float32) []Result {
	if len(results) == 0 {
		return results
	}
	boxes := make([]image.Rectangle, len(results))
	scores := make([]float32, len(results))
	for i, r := range results {
		boxes[i] = r.Box
		scores[i] = r.Score
	}
	keep := mask.NMS(boxes, scores, iouThresh)
	out := make([]Result, 0, len(keep))
	for _, idx := range keep {
		out = append(out, results[idx])
	}
	sortByArea(out)
	return out
}

func sortByArea(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Area > results[j].Area
	})
}

// Generate 对图片执行自动分割
func (e *Engine) Generate(ctx context.Context, img image.Image, cfg GeneratorConfig) ([]Result, error) {
	imgCtx, err := e.EncodeImage(img)
	if err != nil {
		return nil, err
	}
	defer imgCtx.Destroy()
	return Generate(ctx, imgCtx, cfg)
}

// Interactive 对图片按涂抹区域分割
func (e *Engine) Interactive(ctx context.Context, img image.Image, spatial []*mask.Mask) ([]Result, error) {
	imgCtx, err := e.EncodeImage(img)
	if err != nil {
		return nil, err
	}
	defer imgCtx.Destroy()
	return Interactive(ctx, imgCtx, spatial)
}
