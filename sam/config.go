package sam

import som "github.com/getcharzp/go-som"

type Label int

const (
	LabelBackground  Label = 0 // 背景/排除
	LabelForeground  Label = 1 // 前景/点击
	LabelBoxTopLeft  Label = 2 // 框选左上
	LabelBoxBotRight Label = 3 // 框选右下
)

// 均值和方差常量
const (
	MeanG = 0.456
	MeanB = 0.406
	MeanR = 0.485

	StdG = 0.224
	StdB = 0.225
	StdR = 0.229
)

const (
	// inputSize 输入图片的长边尺寸
	inputSize = 1024
	// lowResSize 解码器输出的低分辨率 mask 边长
	lowResSize = 256
	// maskThreshold 阈值
	maskThreshold = 0.0
)

type Point struct {
	X, Y  float32
	Label Label
}

// Config 配置项
type Config struct {
	// 必填参数
	OnnxRuntimeLibPath string // onnxruntime.dll (或 .so, .dylib) 的路径
	EncodeModelPath    string // 图片特征提取模型
	DecodeModelPath    string // Mask解码模型

	// 模型参数
	EmbeddingNames []string // Encoder 输出名, 按顺序传给 Decoder
	NumMasks       int      // 每个提示输出的 mask 数, SAM 为 3

	// 可选参数
	UseCuda    bool // (可选) 是否启用 CUDA
	NumThreads int  // (可选) ONNX 线程数, 默认由CPU核心数决定
}

// DefaultConfig 返回 SAM (ViT-H) 的默认配置
func DefaultConfig() Config {
	return Config{
		OnnxRuntimeLibPath: som.DefaultLibraryPath(),
		EncodeModelPath:    "./sam_weights/vit_h_encoder.onnx",
		DecodeModelPath:    "./sam_weights/vit_h_decoder.onnx",
		EmbeddingNames:     []string{"image_embeddings"},
		NumMasks:           3,
	}
}

// ConfigFromPaths 以 ModelPaths 中的 SAM 路径生成配置
func ConfigFromPaths(p som.ModelPaths) Config {
	cfg := DefaultConfig()
	cfg.OnnxRuntimeLibPath = p.OnnxRuntimeLibPath
	cfg.EncodeModelPath = p.SamEncoder
	cfg.DecodeModelPath = p.SamDecoder
	cfg.UseCuda = p.UseCuda
	cfg.NumThreads = p.NumThreads
	return cfg
}
