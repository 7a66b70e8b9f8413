package som

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLibraryPath(t *testing.T) {
	p := DefaultLibraryPath()
	assert.True(t, strings.HasPrefix(p, "./lib/onnxruntime"), p)
}

func TestModelPathsFromEnv(t *testing.T) {
	t.Setenv("SOM_SAM_ENCODER", "/models/sam_enc.onnx")
	t.Setenv("SOM_SEEM_INTERACTIVE_MODEL", "")
	t.Setenv("SOM_USE_CUDA", "true")
	t.Setenv("SOM_NUM_THREADS", "4")

	p := ModelPathsFromEnv()
	def := DefaultModelPaths()
	assert.Equal(t, "/models/sam_enc.onnx", p.SamEncoder)
	assert.Equal(t, def.SamDecoder, p.SamDecoder)
	// 空值不覆盖默认路径
	assert.Equal(t, def.SeemInteractiveModel, p.SeemInteractiveModel)
	assert.True(t, p.UseCuda)
	assert.Equal(t, 4, p.NumThreads)
}

func TestModelPathsFromEnv_DisableSeemInteractive(t *testing.T) {
	t.Setenv("SOM_SEEM_INTERACTIVE_MODEL", "none")
	p := ModelPathsFromEnv()
	assert.Empty(t, p.SeemInteractiveModel)
	assert.Equal(t, DefaultModelPaths().SeemModel, p.SeemModel)
}
