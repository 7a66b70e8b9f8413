package seem

import (
	"errors"
	"image"
	"math"

	"github.com/up-zero/gotool/imageutil"
)

// ErrEmptyImage 图片宽或高为 0
var ErrEmptyImage = errors.New("图片尺寸为空")

// preprocess 长边缩放到 inputSize, 归一化并在右下补零 (CHW)
func preprocess(img image.Image, inputSize int) ([]float32, imageParams, error) {
	bounds := img.Bounds()
	params := imageParams{
		origW: bounds.Dx(),
		origH: bounds.Dy(),
	}
	if params.origW == 0 || params.origH == 0 {
		return nil, params, ErrEmptyImage
	}
	params.scale = float32(inputSize) / float32(max(params.origW, params.origH))
	params.newW = int(float32(params.origW) * params.scale)
	params.newH = int(float32(params.origH) * params.scale)

	resized := imageutil.Resize(img, params.newW, params.newH)
	rb := resized.Bounds()

	plane := inputSize * inputSize
	data := make([]float32, 3*plane)
	for y := 0; y < params.newH; y++ {
		for x := 0; x < params.newW; x++ {
			r, g, b, _ := resized.At(rb.Min.X+x, rb.Min.Y+y).RGBA()
			idx := y*inputSize + x
			data[idx] = (float32(r)/65535.0 - MeanR) / StdR
			data[plane+idx] = (float32(g)/65535.0 - MeanG) / StdG
			data[2*plane+idx] = (float32(b)/65535.0 - MeanB) / StdB
		}
	}
	return data, params, nil
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + float32(math.Exp(float64(-x))))
}

// softmaxArgmax 返回 softmax 后的最大类别与概率
func softmaxArgmax(logits []float32) (int, float32) {
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		maxLogit = max(maxLogit, v)
	}
	sum := float32(0)
	best, bestIdx := float32(-1), 0
	for i, v := range logits {
		e := float32(math.Exp(float64(v - maxLogit)))
		sum += e
		if e > best {
			best, bestIdx = e, i
		}
	}
	return bestIdx, best / sum
}
