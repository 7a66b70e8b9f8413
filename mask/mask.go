// Package mask 二值 mask 的基础运算: 面积、外接框、连通域、距离变换与 NMS
package mask

import (
	"image"
	"image/color"
)

// Mask 二值 mask, Pix 取值 0 或 255, 按行存储
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// New 创建空 mask
func New(w, h int) *Mask {
	return &Mask{Width: w, Height: h, Pix: make([]uint8, w*h)}
}

// At 像素是否属于前景, 越界返回 false
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x] != 0
}

// Set 设置像素
func (m *Mask) Set(x, y int, on bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	if on {
		m.Pix[y*m.Width+x] = 255
	} else {
		m.Pix[y*m.Width+x] = 0
	}
}

// Area 前景像素数
func (m *Mask) Area() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Bounds 前景的最小外接矩形, 无前景时返回空矩形
func (m *Mask) Bounds() image.Rectangle {
	minX, minY := m.Width, m.Height
	maxX, maxY := -1, -1
	for y := 0; y < m.Height; y++ {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x, v := range row {
			if v == 0 {
				continue
			}
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}
	if maxX < 0 {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// IoU 两个同尺寸 mask 的交并比
func (m *Mask) IoU(o *Mask) float32 {
	if m.Width != o.Width || m.Height != o.Height {
		return 0
	}
	inter, union := 0, 0
	for i := range m.Pix {
		a, b := m.Pix[i] != 0, o.Pix[i] != 0
		if a && b {
			inter++
		}
		if a || b {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float32(inter) / float32(union)
}

// Clone 深拷贝
func (m *Mask) Clone() *Mask {
	c := &Mask{Width: m.Width, Height: m.Height, Pix: make([]uint8, len(m.Pix))}
	copy(c.Pix, m.Pix)
	return c
}

// Gray 转换为灰度图
func (m *Mask) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	copy(img.Pix, m.Pix)
	return img
}

// FromImage 按亮度阈值将任意图片转换为 mask (亮度 > threshold 为前景)
func FromImage(img image.Image, threshold uint8) *Mask {
	b := img.Bounds()
	m := New(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			if g.Y > threshold {
				m.Pix[y*m.Width+x] = 255
			}
		}
	}
	return m
}

// FromLogits 将低分辨率 logits 双线性放大到原图尺寸并二值化
//
// # Params:
//
//	logits: 低分辨率 logits, 行宽为 stride
//	validW, validH: logits 中对应原图 (不含 padding) 的区域
//	dstW, dstH: 原图尺寸
//	threshold: 二值化阈值
func FromLogits(logits []float32, stride, validW, validH, dstW, dstH int, threshold float32) *Mask {
	m := New(dstW, dstH)
	if validW <= 0 || validH <= 0 {
		return m
	}
	xRatio := float32(validW) / float32(dstW)
	yRatio := float32(validH) / float32(dstH)

	type tap struct {
		i0, i1 int
		f      float32
	}
	xs := make([]tap, dstW)
	for x := range xs {
		i0, i1, f := sample(x, xRatio, validW)
		xs[x] = tap{i0, i1, f}
	}

	for y := 0; y < dstH; y++ {
		y0, y1, fy := sample(y, yRatio, validH)
		r0, r1 := logits[y0*stride:], logits[y1*stride:]
		for x, t := range xs {
			top := r0[t.i0]*(1-t.f) + r0[t.i1]*t.f
			bottom := r1[t.i0]*(1-t.f) + r1[t.i1]*t.f
			if top*(1-fy)+bottom*fy > threshold {
				m.Pix[y*dstW+x] = 255
			}
		}
	}
	return m
}

// sample 目标像素中心对应的源坐标, 返回相邻的两个源下标与插值权重, 越界时取边缘
func sample(i int, ratio float32, n int) (int, int, float32) {
	s := (float32(i)+0.5)*ratio - 0.5
	if s <= 0 {
		return 0, 0, 0
	}
	i0 := int(s)
	if i0 >= n-1 {
		return n - 1, n - 1, 0
	}
	return i0, i0 + 1, s - float32(i0)
}
