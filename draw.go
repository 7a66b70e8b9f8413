package som

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// TextDrawer 文本绘制工具
type TextDrawer struct {
	font     *opentype.Font
	face     font.Face
	fontSize float64
}

// NewTextDrawer 从字体文件创建文本绘制工具
//
// # Params:
//
//	fontPath: 字体路径, 为空时使用内置的 Go Bold 字体
func NewTextDrawer(fontPath string) (*TextDrawer, error) {
	if fontPath == "" {
		return NewTextDrawerFromBytes(gobold.TTF)
	}
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("打开字体文件失败：%w", err)
	}
	return NewTextDrawerFromBytes(fontBytes)
}

// NewTextDrawerFromBytes 从字体数据创建文本绘制工具
func NewTextDrawerFromBytes(fontBytes []byte) (*TextDrawer, error) {
	ttFont, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("解析字体文件失败：%w", err)
	}

	d := &TextDrawer{font: ttFont}
	if err := d.SetSize(12); err != nil {
		return nil, err
	}
	return d, nil
}

// SetSize 动态调整字体大小
func (d *TextDrawer) SetSize(fontSize float64) error {
	if d.face != nil && d.fontSize == fontSize {
		return nil
	}

	if d.face != nil {
		d.face.Close()
	}

	nf, err := opentype.NewFace(d.font, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return err
	}

	d.face = nf
	d.fontSize = fontSize
	return nil
}

// Measure 返回文本的宽度与高度 (ascent + descent)
func (d *TextDrawer) Measure(text string) (int, int) {
	width := font.MeasureString(d.face, text)
	metrics := d.face.Metrics()
	return width.Ceil(), (metrics.Ascent + metrics.Descent).Ceil()
}

// DrawText 绘制文本, (x, y) 为基线起点
func (d *TextDrawer) DrawText(img draw.Image, text string, x, y int, c color.Color) {
	fd := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: d.face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	fd.DrawString(text)
}

// DrawLabel 以 center 为中心绘制带背景框的文本, 背景框会被限制在图片范围内
//
// # Params:
//
//	img: 被绘制的图像
//	text: 标记文本
//	center: 文本中心点
//	fg, bg: 文字颜色与背景颜色
func (d *TextDrawer) DrawLabel(img draw.Image, text string, center image.Point, fg, bg color.Color) image.Rectangle {
	w, h := d.Measure(text)
	pad := max(1, h/6)
	box := image.Rect(center.X-w/2-pad, center.Y-h/2-pad, center.X+w/2+pad, center.Y+h/2+pad)

	// 贴边时整体平移
	bounds := img.Bounds()
	if box.Min.X < bounds.Min.X {
		box = box.Add(image.Pt(bounds.Min.X-box.Min.X, 0))
	}
	if box.Min.Y < bounds.Min.Y {
		box = box.Add(image.Pt(0, bounds.Min.Y-box.Min.Y))
	}
	if box.Max.X > bounds.Max.X {
		box = box.Sub(image.Pt(box.Max.X-bounds.Max.X, 0))
	}
	if box.Max.Y > bounds.Max.Y {
		box = box.Sub(image.Pt(0, box.Max.Y-bounds.Max.Y))
	}

	draw.Draw(img, box.Intersect(bounds), image.NewUniform(bg), image.Point{}, draw.Src)
	ascent := d.face.Metrics().Ascent.Ceil()
	d.DrawText(img, text, box.Min.X+pad, box.Min.Y+pad+ascent, fg)
	return box
}

// Close 释放资源
func (d *TextDrawer) Close() {
	if d.face != nil {
		d.face.Close()
	}
}
