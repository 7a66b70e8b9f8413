package som

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMaskRequired 交互模式下未提供涂抹区域
	ErrMaskRequired = errors.New("交互模式需要提供涂抹 mask")
	// ErrMaskSize 涂抹 mask 与图片尺寸不一致
	ErrMaskSize = errors.New("涂抹 mask 与图片尺寸不一致")
	// ErrModelUnavailable 所选模型未加载
	ErrModelUnavailable = errors.New("模型不可用")
)

// ModelName 分割模型
type ModelName string

const (
	ModelSEEM        ModelName = "seem"
	ModelSemanticSAM ModelName = "semantic-sam"
	ModelSAM         ModelName = "sam"
)

// Mode 分割模式
type Mode string

const (
	ModeAutomatic   Mode = "Automatic"
	ModeInteractive Mode = "Interactive"
)

// LabelMode 标记样式
type LabelMode string

const (
	LabelNumber   LabelMode = "Number"
	LabelAlphabet LabelMode = "Alphabet"
)

// Symbol 返回标记的起始符号: Number -> "1", Alphabet -> "a"
func (l LabelMode) Symbol() string {
	if l == LabelAlphabet {
		return "a"
	}
	return "1"
}

// AnnoMode 标注方式
type AnnoMode string

const (
	AnnoMask AnnoMode = "Mask"
	AnnoBox  AnnoMode = "Box"
	AnnoMark AnnoMode = "Mark"
)

// 粒度滑块的取值范围
const (
	SliderMin = 1.0
	SliderMax = 3.0

	seemUpper = 1.5 // slider < 1.5 使用 SEEM
	samLower  = 2.5 // slider > 2.5 使用 SAM
	levelStep = 0.14
)

// Selection 滑块与模式映射出的模型
type Selection struct {
	Model  ModelName
	Levels []int // 仅 semantic-sam 使用, 取值 1..6
}

// Select 根据粒度滑块与分割模式选择模型
//
// # Params:
//
//	slider: 粒度, [1, 1.5) seem, [1.5, 2.5] semantic-sam, (2.5, 3] sam
//	mode: 分割模式, 交互模式下中间区间回退到 sam
func Select(slider float64, mode Mode) Selection {
	switch {
	case slider < seemUpper:
		return Selection{Model: ModelSEEM}
	case slider > samLower:
		return Selection{Model: ModelSAM}
	case mode != ModeAutomatic:
		return Selection{Model: ModelSAM}
	}

	// 每 0.14 一个层级, 超过第 6 档时使用全部层级
	for level := 1; level <= 6; level++ {
		if slider < seemUpper+levelStep*float64(level) {
			return Selection{Model: ModelSemanticSAM, Levels: []int{level}}
		}
	}
	return Selection{Model: ModelSemanticSAM, Levels: []int{6, 1, 2, 3, 4, 5}}
}

// Options 一次标注请求的全部参数
type Options struct {
	Slider    float64
	Mode      Mode
	Alpha     float64
	LabelMode LabelMode
	AnnoMode  []AnnoMode
}

// DefaultOptions 命令行默认参数
func DefaultOptions() Options {
	return Options{
		Slider:    2,
		Mode:      ModeAutomatic,
		Alpha:     0.1,
		LabelMode: LabelNumber,
		AnnoMode:  []AnnoMode{AnnoMask, AnnoMark},
	}
}

// ChatOptions 对话演示的默认参数
func ChatOptions() Options {
	return Options{
		Slider:    1.8,
		Mode:      ModeAutomatic,
		Alpha:     0.05,
		LabelMode: LabelNumber,
		AnnoMode:  []AnnoMode{AnnoMark},
	}
}

// Has 是否包含某种标注方式
func (o Options) Has(a AnnoMode) bool {
	for _, m := range o.AnnoMode {
		if m == a {
			return true
		}
	}
	return false
}

// Normalize 将滑块与透明度限制在合法范围内
func (o Options) Normalize() Options {
	o.Slider = min(max(o.Slider, SliderMin), SliderMax)
	o.Alpha = min(max(o.Alpha, 0), 1)
	if o.Mode == "" {
		o.Mode = ModeAutomatic
	}
	if o.LabelMode == "" {
		o.LabelMode = LabelNumber
	}
	return o
}

// ParseMode 解析分割模式, 大小写不敏感
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "automatic", "auto":
		return ModeAutomatic, nil
	case "interactive":
		return ModeInteractive, nil
	}
	return "", fmt.Errorf("未知的分割模式: %q", s)
}

// ParseLabelMode 解析标记样式
func ParseLabelMode(s string) (LabelMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "number", "1":
		return LabelNumber, nil
	case "alphabet", "a":
		return LabelAlphabet, nil
	}
	return "", fmt.Errorf("未知的标记样式: %q", s)
}

// ParseAnnoModes 解析标注方式列表, 支持逗号分隔
func ParseAnnoModes(values []string) ([]AnnoMode, error) {
	var out []AnnoMode
	seen := make(map[AnnoMode]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			var m AnnoMode
			switch strings.ToLower(part) {
			case "mask":
				m = AnnoMask
			case "box":
				m = AnnoBox
			case "mark":
				m = AnnoMark
			default:
				return nil, fmt.Errorf("未知的标注方式: %q", part)
			}
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}
