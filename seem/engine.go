package seem

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sort"

	som "github.com/getcharzp/go-som"
	"github.com/getcharzp/go-som/mask"
	"github.com/up-zero/gotool/convertutil"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrInteractiveUnavailable 未加载交互式模型
var ErrInteractiveUnavailable = errors.New("未加载交互式模型")

// Engine SEEM 全景/交互分割引擎
type Engine struct {
	session            *ort.DynamicAdvancedSession
	interactiveSession *ort.DynamicAdvancedSession
	config             Config
}

// NewEngine 初始化 SEEM 引擎
func NewEngine(cfg Config) (*Engine, error) {
	oc := new(som.OnnxConfig)
	if err := convertutil.CopyProperties(cfg, oc); err != nil {
		return nil, fmt.Errorf("复制参数失败: %w", err)
	}
	if err := oc.New(); err != nil {
		return nil, err
	}
	defer oc.Destroy()

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"pixel_values"}, []string{"pred_logits", "pred_masks"}, oc.SessionOptions)
	if err != nil {
		return nil, fmt.Errorf("创建 ONNX 会话失败: %w", err)
	}
	e := &Engine{session: session, config: cfg}

	e.interactiveSession = openOptional(cfg.InteractiveModelPath, func(path string) (*ort.DynamicAdvancedSession, error) {
		return ort.NewDynamicAdvancedSession(path,
			[]string{"pixel_values", "spatial_masks"}, []string{"pred_masks"}, oc.SessionOptions)
	})
	return e, nil
}

// openOptional 打开可选的交互式模型, 路径为空或加载失败时返回零值, 全景分割不受影响
func openOptional[T any](path string, open func(string) (T, error)) T {
	var zero T
	if path == "" {
		return zero
	}
	if _, err := os.Stat(path); err != nil {
		slog.Warn("未找到 SEEM 交互式模型, 交互模式不可用", "path", path)
		return zero
	}
	v, err := open(path)
	if err != nil {
		slog.Warn("加载 SEEM 交互式模型失败, 交互模式不可用", "path", path, "error", err)
		return zero
	}
	return v
}

// Destroy 释放相关资源
func (e *Engine) Destroy() error {
	if e.session != nil {
		if err := e.session.Destroy(); err != nil {
			return fmt.Errorf("销毁 ONNX 会话失败: %w", err)
		}
	}
	if e.interactiveSession != nil {
		if err := e.interactiveSession.Destroy(); err != nil {
			return fmt.Errorf("销毁交互式 ONNX 会话失败: %w", err)
		}
	}
	return nil
}

// Predict 执行全景分割, 结果按面积从大到小排序
func (e *Engine) Predict(ctx context.Context, img image.Image) ([]SegResult, error) {
	data, params, err := preprocess(img, e.config.InputSize)
	if err != nil {
		return nil, err
	}
	size := int64(e.config.InputSize)
	inputTensor, err := ort.NewTensor(ort.NewShape(1, 3, size, size), data)
	if err != nil {
		return nil, fmt.Errorf("创建图片 Input Tensor 失败: %w", err)
	}
	defer inputTensor.Destroy()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outputs := make([]ort.Value, 2)
	if err := e.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("推理失败: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			o.Destroy()
		}
	}()

	// pred_logits: [1, Q, C+1]
	// pred_masks:  [1, Q, H/4, W/4]
	logits := outputs[0].(*ort.Tensor[float32]).GetData()
	masksT := outputs[1].(*ort.Tensor[float32])
	shape := masksT.GetShape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("pred_masks 形状错误: %v", shape)
	}
	q, mh, mw := int(shape[1]), int(shape[2]), int(shape[3])
	if len(logits) != q*(e.config.NumClasses+1) {
		return nil, fmt.Errorf("pred_logits 长度(%d)与类别数(%d)不匹配", len(logits), e.config.NumClasses)
	}

	grid := maskGrid{
		queries: q,
		h:       mh,
		w:       mw,
		validW:  max(1, params.newW*mw/e.config.InputSize),
		validH:  max(1, params.newH*mh/e.config.InputSize),
	}
	segments := panoptic(logits, masksT.GetData(), grid, e.config)

	results := make([]SegResult, 0, len(segments))
	for _, s := range segments {
		m := mask.FromLogits(s.logits, grid.w, grid.validW, grid.validH, params.origW, params.origH, 0)
		area := m.Area()
		if area == 0 {
			continue
		}
		results = append(results, SegResult{
			ClassID: s.classID,
			Score:   s.score,
			Box:     m.Bounds(),
			Area:    area,
			Mask:    m,
		})
	}
	sortByArea(results)
	return results, nil
}

// Interactive 按涂抹区域分割, 每个区域输出一个 mask
//
// # Params:
//
//	img: 原图
//	spatial: 涂抹区域 (原图尺寸), 通常来自 mask.Label
func (e *Engine) Interactive(ctx context.Context, img image.Image, spatial []*mask.Mask) ([]SegResult, error) {
	if e.interactiveSession == nil {
		return nil, ErrInteractiveUnavailable
	}
	if len(spatial) == 0 {
		return nil, nil
	}
	b := img.Bounds()
	for _, sm := range spatial {
		if sm.Width != b.Dx() || sm.Height != b.Dy() {
			return nil, fmt.Errorf("涂抹区域尺寸 %dx%d 与图片 %dx%d 不一致", sm.Width, sm.Height, b.Dx(), b.Dy())
		}
	}

	data, params, err := preprocess(img, e.config.InputSize)
	if err != nil {
		return nil, err
	}
	size := e.config.InputSize
	inputTensor, err := ort.NewTensor(ort.NewShape(1, 3, int64(size), int64(size)), data)
	if err != nil {
		return nil, fmt.Errorf("创建图片 Input Tensor 失败: %w", err)
	}
	defer inputTensor.Destroy()

	spatialData := make([]float32, len(spatial)*size*size)
	for i, sm := range spatial {
		scaleSpatial(sm, params, size, spatialData[i*size*size:(i+1)*size*size])
	}
	spatialTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(spatial)), int64(size), int64(size)), spatialData)
	if err != nil {
		return nil, fmt.Errorf("创建 Spatial Tensor 失败: %w", err)
	}
	defer spatialTensor.Destroy()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outputs := make([]ort.Value, 1)
	if err := e.interactiveSession.Run([]ort.Value{inputTensor, spatialTensor}, outputs); err != nil {
		return nil, fmt.Errorf("交互式推理失败: %w", err)
	}
	defer outputs[0].Destroy()

	masksT := outputs[0].(*ort.Tensor[float32])
	shape := masksT.GetShape()
	if len(shape) != 4 || int(shape[1]) != len(spatial) {
		return nil, fmt.Errorf("pred_masks 形状错误: %v", shape)
	}
	mh, mw := int(shape[2]), int(shape[3])
	raw := masksT.GetData()
	validW := max(1, params.newW*mw/size)
	validH := max(1, params.newH*mh/size)

	results := make([]SegResult, 0, len(spatial))
	for i := range spatial {
		logits := raw[i*mh*mw : (i+1)*mh*mw]
		m := mask.FromLogits(logits, mw, validW, validH, params.origW, params.origH, 0)
		area := m.Area()
		if area == 0 {
			continue
		}
		results = append(results, SegResult{ClassID: -1, Score: 1, Box: m.Bounds(), Area: area, Mask: m})
	}
	sortByArea(results)
	return results, nil
}

// scaleSpatial 将原图尺寸的涂抹区域缩放到输入尺度 (最近邻)
func scaleSpatial(sm *mask.Mask, params imageParams, size int, dst []float32) {
	for y := 0; y < params.newH; y++ {
		sy := min(int(float32(y)/params.scale), sm.Height-1)
		for x := 0; x < params.newW; x++ {
			sx := min(int(float32(x)/params.scale), sm.Width-1)
			if sm.At(sx, sy) {
				dst[y*size+x] = 1
			}
		}
	}
}

func sortByArea(results []SegResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Area > results[j].Area
	})
}
