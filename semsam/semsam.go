// Package semsam Semantic-SAM 多粒度分割, 每个提示输出 6 个层级的 mask
package semsam

import (
	"context"
	"fmt"
	"image"

	som "github.com/getcharzp/go-som"
	"github.com/getcharzp/go-som/mask"
	"github.com/getcharzp/go-som/sam"
)

// NumLevels 粒度层级数
const NumLevels = 6

// 自动分割参数
const (
	predIoUThresh   = 0.88
	stabilityThresh = 0.92
	// 孔洞与孤岛的面积阈值 (hole_scale, island_scale)
	regionArea = 100
)

// DefaultConfig Semantic-SAM (SwinL) 的默认配置
func DefaultConfig() sam.Config {
	cfg := sam.DefaultConfig()
	cfg.EncodeModelPath = "./semsam_weights/swinl_encoder.onnx"
	cfg.DecodeModelPath = "./semsam_weights/swinl_decoder.onnx"
	cfg.NumMasks = NumLevels
	return cfg
}

// ConfigFromPaths 以 ModelPaths 中的 Semantic-SAM 路径生成配置
func ConfigFromPaths(p som.ModelPaths) sam.Config {
	cfg := DefaultConfig()
	cfg.OnnxRuntimeLibPath = p.OnnxRuntimeLibPath
	cfg.EncodeModelPath = p.SemSamEncoder
	cfg.DecodeModelPath = p.SemSamDecoder
	cfg.UseCuda = p.UseCuda
	cfg.NumThreads = p.NumThreads
	return cfg
}

// Engine Semantic-SAM 引擎
type Engine struct {
	engine *sam.Engine
}

// NewEngine 初始化 Semantic-SAM 引擎
func NewEngine(cfg sam.Config) (*Engine, error) {
	if cfg.NumMasks != NumLevels {
		return nil, fmt.Errorf("Semantic-SAM 需要 %d 个输出, 当前为 %d", NumLevels, cfg.NumMasks)
	}
	e, err := sam.NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{engine: e}, nil
}

// Destroy 释放相关资源
func (e *Engine) Destroy() error {
	return e.engine.Destroy()
}

// GeneratorConfig 指定层级的自动分割参数
//
// # Params:
//
//	levels: 粒度层级, 取值 1..6, 越小越细
func GeneratorConfig(levels []int) (sam.GeneratorConfig, error) {
	cfg := sam.DefaultGeneratorConfig()
	cfg.PredIoUThresh = predIoUThresh
	cfg.StabilityThresh = stabilityThresh
	cfg.MinRegionArea = regionArea

	if len(levels) == 0 {
		return cfg, fmt.Errorf("至少需要一个层级")
	}
	for _, l := range levels {
		if l < 1 || l > NumLevels {
			return cfg, fmt.Errorf("层级 %d 超出范围 [1, %d]", l, NumLevels)
		}
		cfg.Outputs = append(cfg.Outputs, l-1)
	}
	return cfg, nil
}

// Generate 对图片执行指定层级的自动分割
func (e *Engine) Generate(ctx context.Context, img image.Image, levels []int) ([]sam.Result, error) {
	cfg, err := GeneratorConfig(levels)
	if err != nil {
		return nil, err
	}
	return e.engine.Generate(ctx, img, cfg)
}

// Interactive 对图片按涂抹区域分割, 每个区域取得分最高的层级
func (e *Engine) Interactive(ctx context.Context, img image.Image, spatial []*mask.Mask) ([]sam.Result, error) {
	return e.engine.Interactive(ctx, img, spatial)
}
