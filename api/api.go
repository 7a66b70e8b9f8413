// Package api 演示服务的 JSON 接口定义, 服务端与客户端共用
package api

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"strings"
)

// DefaultPort 演示服务端口
const DefaultPort = 6092

// 接口路径
const (
	PathInference = "/api/inference"
	PathChat      = "/api/chat"
	PathHighlight = "/api/highlight"
	PathHealth    = "/healthz"
)

// InferenceRequest 标注请求, Image 与 ImageURL 二选一
type InferenceRequest struct {
	Image     string   `json:"image,omitempty"`     // base64 或 data URL
	ImageURL  string   `json:"image_url,omitempty"` // 由服务端下载
	Mask      string   `json:"mask,omitempty"`      // 交互模式的涂抹层, base64 或 data URL
	Slider    *float64 `json:"slider,omitempty"`    // 为空时使用服务端默认值
	Mode      string   `json:"mode,omitempty"`
	Alpha     *float64 `json:"alpha,omitempty"`
	LabelMode string   `json:"label_mode,omitempty"`
	AnnoMode  []string `json:"anno_mode,omitempty"`
}

// Float 返回 v 的指针, 便于填写可选字段
func Float(v float64) *float64 {
	return &v
}

// Mark 标记信息
type Mark struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Box   [4]int `json:"box"` // x0, y0, x1, y1
	Point [2]int `json:"point"`
	Area  int    `json:"area"`
}

// InferenceResponse 标注结果
type InferenceResponse struct {
	RunID  string `json:"run_id"`
	Image  string `json:"image"` // PNG base64
	Model  string `json:"model"`
	Levels []int  `json:"levels,omitempty"`
	Marks  []Mark `json:"marks"`
}

// ChatRequest 针对最近一次标注提问
type ChatRequest struct {
	Prompt string `json:"prompt"`
}

// ChatResponse 视觉问答回复及其中引用的标记
type ChatResponse struct {
	Reply string `json:"reply"`
	Marks []int  `json:"marks"`
}

// HighlightRequest 高亮请求, Marks 为空时从 Text 解析, Text 也为空时使用最近一次回复
type HighlightRequest struct {
	Marks []int  `json:"marks,omitempty"`
	Text  string `json:"text,omitempty"`
}

// HighlightResponse 高亮结果
type HighlightResponse struct {
	Image string `json:"image"`
	Marks []Mark `json:"marks"`
}

// HealthResponse 健康检查
type HealthResponse struct {
	Status string   `json:"status"`
	Models []string `json:"models"`
}

// ErrorResponse 错误信息
type ErrorResponse struct {
	Error string `json:"error"`
}

// EncodePNG 将图片编码为 PNG base64
func EncodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("PNG 编码失败: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeImage 解码 base64 或 data URL 形式的 PNG/JPEG 图片
func DecodeImage(s string) (image.Image, error) {
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, fmt.Errorf("data URL 格式错误")
		}
		s = payload
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("base64 解码失败: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("图片解码失败: %w", err)
	}
	return img, nil
}
