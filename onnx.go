package som

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// OnnxConfig ONNX Runtime 会话配置, 各模型引擎共用
type OnnxConfig struct {
	SessionOptions *ort.SessionOptions

	// 必填参数
	OnnxRuntimeLibPath string // onnxruntime.dll (或 .so, .dylib) 的路径
	// 可选参数
	UseCuda    bool // (可选) 是否启用 CUDA
	NumThreads int  // (可选) ONNX 线程数, 默认由CPU核心数决定
}

var (
	initErr error
	once    sync.Once
)

// New 初始化 ONNX 环境并创建会话选项
func (cfg *OnnxConfig) New() error {
	if cfg.OnnxRuntimeLibPath == "" {
		return fmt.Errorf("OnnxRuntimeLibPath 不能为空")
	}
	// 环境只初始化一次, 三个模型共享
	once.Do(func() {
		ort.SetSharedLibraryPath(cfg.OnnxRuntimeLibPath)
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return fmt.Errorf("初始化 ONNX Runtime 环境失败: %w", initErr)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("创建 SessionOptions 失败: %w", err)
	}
	if cfg.NumThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			options.Destroy()
			return err
		}
	}

	if cfg.UseCuda {
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			options.Destroy()
			return fmt.Errorf("创建 CUDAProviderOptions 失败: %w", err)
		}
		defer cudaOptions.Destroy()
		if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			options.Destroy()
			return fmt.Errorf("添加 CUDA 执行提供者失败: %w", err)
		}
	}
	cfg.SessionOptions = options

	return nil
}

// Destroy 释放会话选项, 会话创建完成后即可调用
func (cfg *OnnxConfig) Destroy() {
	if cfg.SessionOptions != nil {
		cfg.SessionOptions.Destroy()
		cfg.SessionOptions = nil
	}
}

// DefaultLibraryPath 根据运行时环境判断加载哪个库文件
func DefaultLibraryPath() string {
	baseDir := "./lib/"
	libName := "onnxruntime"

	if runtime.GOOS == "windows" {
		return baseDir + libName + ".dll"
	}

	var ext string
	switch runtime.GOOS {
	case "darwin":
		ext = "dylib"
	case "linux":
		ext = "so"
	default:
		return baseDir + libName + "_amd64.so"
	}

	// ./lib/onnxruntime_amd64.so, ./lib/onnxruntime_arm64.dylib
	return fmt.Sprintf("%s%s_%s.%s", baseDir, libName, runtime.GOARCH, ext)
}

// ModelPaths 三个模型的权重路径与运行时参数
type ModelPaths struct {
	OnnxRuntimeLibPath string

	SamEncoder string
	SamDecoder string

	SemSamEncoder string
	SemSamDecoder string

	SeemModel            string
	SeemInteractiveModel string // (可选) SEEM 交互式分割模型

	UseCuda    bool
	NumThreads int
}

// DefaultModelPaths 默认权重路径
func DefaultModelPaths() ModelPaths {
	return ModelPaths{
		OnnxRuntimeLibPath:   DefaultLibraryPath(),
		SamEncoder:           "./sam_weights/vit_h_encoder.onnx",
		SamDecoder:           "./sam_weights/vit_h_decoder.onnx",
		SemSamEncoder:        "./semsam_weights/swinl_encoder.onnx",
		SemSamDecoder:        "./semsam_weights/swinl_decoder.onnx",
		SeemModel:            "./seem_weights/seem_focall_panoptic.onnx",
		SeemInteractiveModel: "./seem_weights/seem_focall_interactive.onnx",
	}
}

// ModelPathsFromEnv 以默认值为基础, 使用 SOM_* 环境变量覆盖
func ModelPathsFromEnv() ModelPaths {
	p := DefaultModelPaths()
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("SOM_ONNXRUNTIME_LIB", &p.OnnxRuntimeLibPath)
	str("SOM_SAM_ENCODER", &p.SamEncoder)
	str("SOM_SAM_DECODER", &p.SamDecoder)
	str("SOM_SEMSAM_ENCODER", &p.SemSamEncoder)
	str("SOM_SEMSAM_DECODER", &p.SemSamDecoder)
	str("SOM_SEEM_MODEL", &p.SeemModel)
	str("SOM_SEEM_INTERACTIVE_MODEL", &p.SeemInteractiveModel)
	// none 关闭 SEEM 交互模式
	if strings.EqualFold(p.SeemInteractiveModel, "none") {
		p.SeemInteractiveModel = ""
	}

	if v, err := strconv.ParseBool(os.Getenv("SOM_USE_CUDA")); err == nil {
		p.UseCuda = v
	}
	if v, err := strconv.Atoi(os.Getenv("SOM_NUM_THREADS")); err == nil && v > 0 {
		p.NumThreads = v
	}
	return p
}
