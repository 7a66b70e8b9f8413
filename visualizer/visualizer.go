// Package visualizer 在图片上绘制 Set-of-Mark 标注: 半透明 mask、外接框与编号
package visualizer

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"sync"

	som "github.com/getcharzp/go-som"
	"github.com/getcharzp/go-som/mask"
	"github.com/up-zero/gotool/imageutil"
)

// 高亮时 mask 的透明度
const highlightAlpha = 0.5

// Mark 一个已绘制的标记
type Mark struct {
	Index int    // 从 1 开始, 与 mask 顺序一致
	Label string // 显示的文本, 如 "3" 或 "c"
	Box   image.Rectangle
	Point image.Point // 标记中心
	Area  int
	Color color.RGBA
}

// Visualizer 标注绘制器, 可并发使用
type Visualizer struct {
	mu     sync.Mutex
	drawer *som.TextDrawer
}

// New 创建绘制器
//
// # Params:
//
//	fontPath: 字体路径, 为空时使用内置字体
func New(fontPath string) (*Visualizer, error) {
	d, err := som.NewTextDrawer(fontPath)
	if err != nil {
		return nil, err
	}
	return &Visualizer{drawer: d}, nil
}

// Close 释放字体资源
func (v *Visualizer) Close() {
	v.drawer.Close()
}

// Annotate 按 opts 绘制全部 mask, masks 的顺序即编号顺序
func (v *Visualizer) Annotate(img image.Image, masks []*mask.Mask, opts som.Options) (*image.RGBA, []Mark, error) {
	dst := toRGBA(img)
	marks := make([]Mark, len(masks))
	for i, m := range masks {
		marks[i] = Mark{
			Index: i + 1,
			Label: LabelText(i+1, opts.LabelMode),
			Box:   m.Bounds(),
			Point: mask.MarkPoint(m),
			Area:  m.Area(),
			Color: Color(i),
		}
	}

	if opts.Has(som.AnnoMask) {
		for i, m := range masks {
			blendMask(dst, m, marks[i].Color, opts.Alpha)
			drawEdge(dst, m, marks[i].Color)
		}
	}
	if opts.Has(som.AnnoBox) {
		thickness := max(1, int(math.Sqrt(float64(dst.Bounds().Dx()*dst.Bounds().Dy()))/300))
		for _, mk := range marks {
			if mk.Box.Empty() {
				continue
			}
			imageutil.DrawThickRectOutline(dst, mk.Box, mk.Color, thickness)
		}
	}
	if opts.Has(som.AnnoMark) {
		if err := v.drawMarks(dst, marks); err != nil {
			return nil, nil, err
		}
	}
	return dst, marks, nil
}

// Highlight 只绘制被引用的 mask 及其编号
//
// # Params:
//
//	img: 原图
//	masks: 全部 mask, 顺序与标注时一致
//	indices: 需要高亮的编号 (从 1 开始), 越界的编号被忽略
//	labelMode: 标记样式
func (v *Visualizer) Highlight(img image.Image, masks []*mask.Mask, indices []int, labelMode som.LabelMode) (*image.RGBA, []Mark, error) {
	dst := toRGBA(img)
	var marks []Mark
	for _, idx := range indices {
		if idx < 1 || idx > len(masks) {
			continue
		}
		m := masks[idx-1]
		mk := Mark{
			Index: idx,
			Label: LabelText(idx, labelMode),
			Box:   m.Bounds(),
			Point: mask.MarkPoint(m),
			Area:  m.Area(),
			Color: Color(idx - 1),
		}
		blendMask(dst, m, mk.Color, highlightAlpha)
		drawEdge(dst, m, mk.Color)
		marks = append(marks, mk)
	}
	if err := v.drawMarks(dst, marks); err != nil {
		return nil, nil, err
	}
	return dst, marks, nil
}

func (v *Visualizer) drawMarks(dst *image.RGBA, marks []Mark) error {
	if len(marks) == 0 {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	b := dst.Bounds()
	fontSize := max(math.Sqrt(float64(b.Dx()*b.Dy()))/60, 10)
	if err := v.drawer.SetSize(fontSize); err != nil {
		return err
	}
	for _, mk := range marks {
		if mk.Area == 0 {
			continue
		}
		v.drawer.DrawLabel(dst, mk.Label, mk.Point, textColor(mk.Color), mk.Color)
	}
	return nil
}

// LabelText 编号的显示文本: Number 为 1, 2, 3...; Alphabet 为 a..z, aa, ab...
func LabelText(index int, mode som.LabelMode) string {
	if mode != som.LabelAlphabet {
		return strconv.Itoa(index)
	}
	var buf []byte
	for n := index; n > 0; n = (n - 1) / 26 {
		buf = append([]byte{byte('a' + (n-1)%26)}, buf...)
	}
	return string(buf)
}

// blendMask 以 alpha 混合 mask 颜色
func blendMask(dst *image.RGBA, m *mask.Mask, c color.RGBA, alpha float64) {
	if alpha <= 0 {
		return
	}
	b := dst.Bounds()
	for y := 0; y < min(m.Height, b.Dy()); y++ {
		for x := 0; x < min(m.Width, b.Dx()); x++ {
			if !m.At(x, y) {
				continue
			}
			i := dst.PixOffset(b.Min.X+x, b.Min.Y+y)
			dst.Pix[i+0] = mix(dst.Pix[i+0], c.R, alpha)
			dst.Pix[i+1] = mix(dst.Pix[i+1], c.G, alpha)
			dst.Pix[i+2] = mix(dst.Pix[i+2], c.B, alpha)
		}
	}
}

// drawEdge 以纯色绘制 mask 的 4 邻域边界
func drawEdge(dst *image.RGBA, m *mask.Mask, c color.RGBA) {
	b := dst.Bounds()
	for y := 0; y < min(m.Height, b.Dy()); y++ {
		for x := 0; x < min(m.Width, b.Dx()); x++ {
			if !m.At(x, y) {
				continue
			}
			if m.At(x-1, y) && m.At(x+1, y) && m.At(x, y-1) && m.At(x, y+1) {
				continue
			}
			dst.SetRGBA(b.Min.X+x, b.Min.Y+y, c)
		}
	}
}

func mix(a, b uint8, alpha float64) uint8 {
	return uint8(math.Round(float64(a)*(1-alpha) + float64(b)*alpha))
}

func toRGBA(img image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}
