package sam

import (
	"fmt"
	"image"
	"runtime"

	som "github.com/getcharzp/go-som"
	"github.com/getcharzp/go-som/mask"
	"github.com/up-zero/gotool/convertutil"
	"github.com/up-zero/gotool/imageutil"
	ort "github.com/yalue/onnxruntime_go"
)

// Engine 持有 ONNX Session，负责创建 ImageContext
type Engine struct {
	encoderSession *ort.DynamicAdvancedSession
	decoderSession *ort.DynamicAdvancedSession
	config         Config
}

// NewEngine 初始化 SAM 引擎
func NewEngine(cfg Config) (*Engine, error) {
	if len(cfg.EmbeddingNames) == 0 || cfg.NumMasks <= 0 {
		return nil, fmt.Errorf("EmbeddingNames 与 NumMasks 不能为空")
	}
	onnxConfig := new(som.OnnxConfig)
	if err := convertutil.CopyProperties(cfg, onnxConfig); err != nil {
		return nil, fmt.Errorf("复制参数失败: %w", err)
	}
	if err := onnxConfig.New(); err != nil {
		return nil, err
	}
	defer onnxConfig.Destroy()

	// encoder session
	encInputs := []string{"pixel_values"}
	encSession, err := ort.NewDynamicAdvancedSession(cfg.EncodeModelPath, encInputs, cfg.EmbeddingNames, onnxConfig.SessionOptions)
	if err != nil {
		return nil, fmt.Errorf("创建 Encoder ONNX 会话失败: %w", err)
	}

	// decoder session
	decInputs := append([]string{"input_points", "input_labels", "input_boxes"}, cfg.EmbeddingNames...)
	decOutputs := []string{"iou_scores", "pred_masks"}
	decSession, err := ort.NewDynamicAdvancedSession(cfg.DecodeModelPath, decInputs, decOutputs, onnxConfig.SessionOptions)
	if err != nil {
		encSession.Destroy()
		return nil, fmt.Errorf("创建 Decoder ONNX 会话失败: %w", err)
	}

	return &Engine{
		encoderSession: encSession,
		decoderSession: decSession,
		config:         cfg,
	}, nil
}

// Destroy 释放相关资源
func (e *Engine) Destroy() error {
	if e.encoderSession != nil {
		if err := e.encoderSession.Destroy(); err != nil {
			return fmt.Errorf("销毁 Encoder ONNX 会话失败: %w", err)
		}
	}
	if e.decoderSession != nil {
		if err := e.decoderSession.Destroy(); err != nil {
			return fmt.Errorf("销毁 Decoder ONNX 会话失败: %w", err)
		}
	}
	return nil
}

// ImageContext 包含特定图像的特征缓存和参数
type ImageContext struct {
	engine          *Engine
	imageEmbeddings []ort.Value

	origW, origH int
	scale        float32
	newW, newH   int
	isDestroyed  bool
}

// EncodeImage 图像特征提取
func (e *Engine) EncodeImage(img image.Image) (*ImageContext, error) {
	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()
	if origW == 0 || origH == 0 {
		return nil, fmt.Errorf("图片尺寸为空")
	}

	scale := float32(inputSize) / float32(max(origW, origH))
	newW := int(float32(origW) * scale)
	newH := int(float32(origH) * scale)

	resizedImg := imageutil.Resize(img, newW, newH)
	tensorData := normalizeAndPad(resizedImg, inputSize, inputSize)

	inputShape := ort.NewShape(1, 3, int64(inputSize), int64(inputSize))
	inputTensor, err := ort.NewTensor(inputShape, tensorData)
	if err != nil {
		return nil, fmt.Errorf("创建图片 Input Tensor 失败: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, len(e.config.EmbeddingNames))
	if err := e.encoderSession.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("encoder 推理失败: %w", err)
	}

	ctx := &ImageContext{
		engine:          e,
		imageEmbeddings: outputs,
		origW:           origW,
		origH:           origH,
		scale:           scale,
		newW:            newW,
		newH:            newH,
	}

	// 设置 Finalizer 以防用户忘记 Destroy
	runtime.SetFinalizer(ctx, func(c *ImageContext) { c.Destroy() })

	return ctx, nil
}

// Destroy 释放图像特征缓存
func (ctx *ImageContext) Destroy() {
	if ctx.isDestroyed {
		return
	}
	for _, v := range ctx.imageEmbeddings {
		if v != nil {
			v.Destroy()
		}
	}
	ctx.imageEmbeddings = nil
	ctx.isDestroyed = true
}

// Size 原图尺寸
func (ctx *ImageContext) Size() (int, int) {
	return ctx.origW, ctx.origH
}

// Prediction 单个提示的全部输出
type Prediction struct {
	Scores []float32   // 每个输出的 IoU 预测分数
	Logits [][]float32 // 每个输出的低分辨率 logits (256x256)
}

// Predict 批量解码, 每个提示包含相同数量的点
//
// # Params:
//
//	prompts: 提示列表, prompts[i] 为第 i 个提示的点 (原图坐标)
func (ctx *ImageContext) Predict(prompts [][]Point) ([]Prediction, error) {
	if ctx.isDestroyed {
		return nil, fmt.Errorf("图片特征已销毁")
	}
	if len(prompts) == 0 {
		return nil, nil
	}

	numPrompts := int64(len(prompts))
	numPoints := int64(len(prompts[0]))
	coords := make([]float32, 0, numPrompts*numPoints*2)
	labels := make([]int64, 0, numPrompts*numPoints)

	// 坐标转换到 1024 尺度
	for i, points := range prompts {
		if int64(len(points)) != numPoints {
			return nil, fmt.Errorf("第 %d 个提示的点数(%d)与第一个(%d)不一致", i, len(points), numPoints)
		}
		for _, pt := range points {
			coords = append(coords, pt.X*ctx.scale, pt.Y*ctx.scale)
			labels = append(labels, int64(pt.Label))
		}
	}

	tPoints, err := ort.NewTensor(ort.NewShape(1, numPrompts, numPoints, 2), coords)
	if err != nil {
		return nil, fmt.Errorf("创建 Decoder Points Tensor 失败: %w", err)
	}
	defer tPoints.Destroy()

	tLabels, err := ort.NewTensor(ort.NewShape(1, numPrompts, numPoints), labels)
	if err != nil {
		return nil, fmt.Errorf("创建 Decoder Labels Tensor 失败: %w", err)
	}
	defer tLabels.Destroy()

	// box 通过 point 控制
	var emptyFloat []float32
	tBoxes, err := ort.NewTensor(ort.NewShape(1, 0, 4), emptyFloat)
	if err != nil {
		return nil, fmt.Errorf("创建 Decoder Boxes Tensor 失败: %w", err)
	}
	defer tBoxes.Destroy()

	inputs := append([]ort.Value{tPoints, tLabels, tBoxes}, ctx.imageEmbeddings...)
	outputs := make([]ort.Value, 2)

	if err := ctx.engine.decoderSession.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("decoder 推理失败: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			o.Destroy()
		}
	}()

	rawScores := outputs[0].(*ort.Tensor[float32]).GetData()
	rawMasks := outputs[1].(*ort.Tensor[float32]).GetData()

	numMasks := ctx.engine.config.NumMasks
	pixelsPerMask := lowResSize * lowResSize
	if len(rawScores) != int(numPrompts)*numMasks || len(rawMasks) != len(rawScores)*pixelsPerMask {
		return nil, fmt.Errorf("decoder 输出形状不匹配: scores=%d masks=%d", len(rawScores), len(rawMasks))
	}

	// 输出 Tensor 销毁后数据失效, 需要拷贝
	preds := make([]Prediction, numPrompts)
	for i := range preds {
		p := Prediction{
			Scores: make([]float32, numMasks),
			Logits: make([][]float32, numMasks),
		}
		for k := 0; k < numMasks; k++ {
			idx := i*numMasks + k
			p.Scores[k] = rawScores[idx]
			p.Logits[k] = append([]float32(nil), rawMasks[idx*pixelsPerMask:(idx+1)*pixelsPerMask]...)
		}
		preds[i] = p
	}
	return preds, nil
}

// ToMask 将低分辨率 logits 放大为原图尺寸的 mask
func (ctx *ImageContext) ToMask(logits []float32) *mask.Mask {
	validMaskW := max(1, int(float32(ctx.newW)/4.0))
	validMaskH := max(1, int(float32(ctx.newH)/4.0))
	return mask.FromLogits(logits, lowResSize, validMaskW, validMaskH, ctx.origW, ctx.origH, maskThreshold)
}

// Decode 使用一组点解码, 返回得分最高的 mask
func (ctx *ImageContext) Decode(points []Point) (*mask.Mask, float32, error) {
	preds, err := ctx.Predict([][]Point{points})
	if err != nil {
		return nil, 0, err
	}
	best := bestOutput(preds[0].Scores)
	return ctx.ToMask(preds[0].Logits[best]), preds[0].Scores[best], nil
}

// bestOutput 分数最高的输出下标
func bestOutput(scores []float32) int {
	bestIdx := 0
	bestScore := float32(-100.0)
	for i, s := range scores {
		if s > bestScore {
			bestScore = s
			bestIdx = i
		}
	}
	return bestIdx
}
