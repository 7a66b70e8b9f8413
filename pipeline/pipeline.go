// Package pipeline 加载分割模型, 并把一次标注请求分派到滑块选中的模型
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"

	som "github.com/getcharzp/go-som"
	"github.com/getcharzp/go-som/mask"
	"github.com/getcharzp/go-som/sam"
	"github.com/getcharzp/go-som/seem"
	"github.com/getcharzp/go-som/semsam"
	"github.com/getcharzp/go-som/visualizer"
)

// 涂抹层二值化阈值
const scribbleThreshold = 127

// Request 一次标注请求
type Request struct {
	Image    image.Image
	Scribble image.Image // 交互模式的涂抹层, 白色为涂抹区域
	Options  som.Options
}

// Result 标注结果, Masks 与 Marks 一一对应
type Result struct {
	Image     *image.RGBA
	Masks     []*mask.Mask
	Marks     []visualizer.Mark
	Selection som.Selection
	Options   som.Options
}

// Registry 已加载的模型与绘制器
type Registry struct {
	models map[som.ModelName]Segmenter
	vis    *visualizer.Visualizer
	logger *slog.Logger
}

// NewRegistry 使用现成的模型创建 Registry
func NewRegistry(vis *visualizer.Visualizer, models map[som.ModelName]Segmenter, logger *slog.Logger) *Registry {
	if models == nil {
		models = make(map[som.ModelName]Segmenter)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{models: models, vis: vis, logger: logger}
}

// Load 分别加载三个模型, 某个模型加载失败只记录日志, 不影响其它模型
func Load(paths som.ModelPaths, vis *visualizer.Visualizer, logger *slog.Logger) *Registry {
	r := NewRegistry(vis, nil, logger)

	if e, err := sam.NewEngine(sam.ConfigFromPaths(paths)); err != nil {
		r.logger.Error("加载模型失败", "model", som.ModelSAM, "error", err)
	} else {
		r.models[som.ModelSAM] = &samSegmenter{engine: e, cfg: sam.DefaultGeneratorConfig()}
	}

	if e, err := semsam.NewEngine(semsam.ConfigFromPaths(paths)); err != nil {
		r.logger.Error("加载模型失败", "model", som.ModelSemanticSAM, "error", err)
	} else {
		r.models[som.ModelSemanticSAM] = &semsamSegmenter{engine: e}
	}

	if e, err := seem.NewEngine(seem.ConfigFromPaths(paths)); err != nil {
		r.logger.Error("加载模型失败", "model", som.ModelSEEM, "error", err)
	} else {
		r.models[som.ModelSEEM] = &seemSegmenter{engine: e}
	}

	r.logger.Info("模型加载完成", "available", r.Available())
	return r
}

// Available 已加载的模型, 按名称排序
func (r *Registry) Available() []som.ModelName {
	out := make([]som.ModelName, 0, len(r.models))
	for name := range r.models {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close 释放全部模型
func (r *Registry) Close() error {
	var errs []error
	for name, m := range r.models {
		if err := m.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Run 选择模型、分割并绘制标注
func (r *Registry) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Image == nil {
		return nil, fmt.Errorf("图片不能为空")
	}
	opts := req.Options.Normalize()
	sel := som.Select(opts.Slider, opts.Mode)

	seg, ok := r.models[sel.Model]
	if !ok {
		return nil, fmt.Errorf("%w: %s", som.ErrModelUnavailable, sel.Model)
	}

	var (
		masks []*mask.Mask
		err   error
	)
	if opts.Mode == som.ModeInteractive {
		spatial, serr := spatialMasks(req.Image, req.Scribble)
		if serr != nil {
			return nil, serr
		}
		masks, err = seg.Interactive(ctx, req.Image, spatial)
	} else {
		masks, err = seg.Automatic(ctx, req.Image, sel.Levels)
	}
	if err != nil {
		return nil, fmt.Errorf("%s 分割失败: %w", sel.Model, err)
	}

	// 大的 mask 先绘制, 小的 mask 与标记不会被覆盖
	sort.SliceStable(masks, func(i, j int) bool {
		return masks[i].Area() > masks[j].Area()
	})

	annotated, marks, err := r.vis.Annotate(req.Image, masks, opts)
	if err != nil {
		return nil, fmt.Errorf("绘制标注失败: %w", err)
	}
	r.logger.Debug("标注完成", "model", sel.Model, "levels", sel.Levels, "masks", len(masks))

	return &Result{
		Image:     annotated,
		Masks:     masks,
		Marks:     marks,
		Selection: sel,
		Options:   opts,
	}, nil
}

// Highlight 只绘制 result 中被引用的 mask
func (r *Registry) Highlight(src image.Image, res *Result, indices []int) (*image.RGBA, []visualizer.Mark, error) {
	return r.vis.Highlight(src, res.Masks, indices, res.Options.LabelMode)
}

// spatialMasks 将涂抹层拆分为连通的涂抹区域, 涂抹层必须与原图同尺寸
func spatialMasks(img, scribble image.Image) ([]*mask.Mask, error) {
	if scribble == nil {
		return nil, som.ErrMaskRequired
	}
	if is, ss := img.Bounds().Size(), scribble.Bounds().Size(); is != ss {
		return nil, fmt.Errorf("%w: 图片 %v, mask %v", som.ErrMaskSize, is, ss)
	}
	spatial := mask.Label(mask.FromImage(scribble, scribbleThreshold))
	if len(spatial) == 0 {
		return nil, som.ErrMaskRequired
	}
	return spatial, nil
}
