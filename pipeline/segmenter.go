package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	som "github.com/getcharzp/go-som"
	"github.com/getcharzp/go-som/mask"
	"github.com/getcharzp/go-som/sam"
	"github.com/getcharzp/go-som/seem"
	"github.com/getcharzp/go-som/semsam"
)

// Segmenter 一个分割模型
type Segmenter interface {
	// Automatic 自动分割, levels 仅 Semantic-SAM 使用
	Automatic(ctx context.Context, img image.Image, levels []int) ([]*mask.Mask, error)
	// Interactive 按涂抹区域分割
	Interactive(ctx context.Context, img image.Image, spatial []*mask.Mask) ([]*mask.Mask, error)
	Close() error
}

type samSegmenter struct {
	engine *sam.Engine
	cfg    sam.GeneratorConfig
}

func (s *samSegmenter) Automatic(ctx context.Context, img image.Image, _ []int) ([]*mask.Mask, error) {
	res, err := s.engine.Generate(ctx, img, s.cfg)
	return samMasks(res), err
}

func (s *samSegmenter) Interactive(ctx context.Context, img image.Image, spatial []*mask.Mask) ([]*mask.Mask, error) {
	res, err := s.engine.Interactive(ctx, img, spatial)
	return samMasks(res), err
}

func (s *samSegmenter) Close() error { return s.engine.Destroy() }

type semsamSegmenter struct {
	engine *semsam.Engine
}

func (s *semsamSegmenter) Automatic(ctx context.Context, img image.Image, levels []int) ([]*mask.Mask, error) {
	res, err := s.engine.Generate(ctx, img, levels)
	return samMasks(res), err
}

func (s *semsamSegmenter) Interactive(ctx context.Context, img image.Image, spatial []*mask.Mask) ([]*mask.Mask, error) {
	res, err := s.engine.Interactive(ctx, img, spatial)
	return samMasks(res), err
}

func (s *semsamSegmenter) Close() error { return s.engine.Destroy() }

type seemSegmenter struct {
	engine *seem.Engine
}

func (s *seemSegmenter) Automatic(ctx context.Context, img image.Image, _ []int) ([]*mask.Mask, error) {
	res, err := s.engine.Predict(ctx, img)
	return seemMasks(res), err
}

func (s *seemSegmenter) Interactive(ctx context.Context, img image.Image, spatial []*mask.Mask) ([]*mask.Mask, error) {
	res, err := s.engine.Interactive(ctx, img, spatial)
	if errors.Is(err, seem.ErrInteractiveUnavailable) {
		return nil, fmt.Errorf("%w: %w", som.ErrModelUnavailable, err)
	}
	return seemMasks(res), err
}

func (s *seemSegmenter) Close() error { return s.engine.Destroy() }

func samMasks(res []sam.Result) []*mask.Mask {
	out := make([]*mask.Mask, len(res))
	for i, r := range res {
		out[i] = r.Mask
	}
	return out
}

func seemMasks(res []seem.SegResult) []*mask.Mask {
	out := make([]*mask.Mask, len(res))
	for i, r := range res {
		out[i] = r.Mask
	}
	return out
}
