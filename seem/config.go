package seem

import (
	"image"

	som "github.com/getcharzp/go-som"
	"github.com/getcharzp/go-som/mask"
)

// 均值和方差常量
const (
	MeanR = 0.485
	MeanG = 0.456
	MeanB = 0.406

	StdR = 0.229
	StdG = 0.224
	StdB = 0.225
)

// Config 引擎的初始化参数
type Config struct {
	ModelPath            string // 全景分割模型
	InteractiveModelPath string // (可选) 交互式分割模型, 为空时不支持交互模式
	OnnxRuntimeLibPath   string // ONNX Runtime 动态库路径

	// 推理参数
	ObjectMaskThreshold float32 // 类别置信度阈值 (默认 0.8)
	OverlapThreshold    float32 // 被遮挡比例阈值 (默认 0.8)

	// 模型参数
	InputSize  int // 默认 1024
	NumClasses int // 默认 133 (COCO panoptic), 最后一类之后为背景

	// 可选参数
	UseCuda    bool // (可选) 是否启用 CUDA
	NumThreads int  // (可选) ONNX 线程数, 默认由CPU核心数决定
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		ModelPath:            "./seem_weights/seem_focall_panoptic.onnx",
		InteractiveModelPath: "./seem_weights/seem_focall_interactive.onnx",
		OnnxRuntimeLibPath:   som.DefaultLibraryPath(),
		ObjectMaskThreshold:  0.8,
		OverlapThreshold:     0.8,
		InputSize:            1024,
		NumClasses:           133,
	}
}

// ConfigFromPaths 以 ModelPaths 中的 SEEM 路径生成配置
func ConfigFromPaths(p som.ModelPaths) Config {
	cfg := DefaultConfig()
	cfg.OnnxRuntimeLibPath = p.OnnxRuntimeLibPath
	cfg.ModelPath = p.SeemModel
	cfg.InteractiveModelPath = p.SeemInteractiveModel
	cfg.UseCuda = p.UseCuda
	cfg.NumThreads = p.NumThreads
	return cfg
}

// imageParams 图片尺寸信息
type imageParams struct {
	origW, origH int
	scale        float32
	newW, newH   int
}

// SegResult 分割结果
type SegResult struct {
	// 分类ID, 交互模式下为 -1
	//	0: person
	//	1: bicycle
	//	2: car
	// 详细映射参考 COCO panoptic 133 类
	ClassID int
	Score   float32
	Box     image.Rectangle
	Area    int
	Mask    *mask.Mask
}
