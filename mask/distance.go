package mask

import (
	"image"
	"math"
)

// chamfer 3-4 距离变换的权重
const (
	chamferOrtho = 3
	chamferDiag  = 4
)

// MarkPoint 返回距离 mask 边界最远的前景点, 用于放置标记.
// 图像边界视为背景; mask 为空时返回原点.
func MarkPoint(m *Mask) image.Point {
	dist := distanceTransform(m)
	best, bestIdx := -1, -1
	for i, d := range dist {
		if d > best {
			best, bestIdx = d, i
		}
	}
	if best <= 0 {
		return image.Point{}
	}
	return image.Pt(bestIdx%m.Width, bestIdx/m.Width)
}

// distanceTransform 前景像素到最近背景像素的 chamfer 距离, 背景为 0
func distanceTransform(m *Mask) []int {
	w, h := m.Width, m.Height
	inf := math.MaxInt32 / 2
	dist := make([]int, w*h)
	for i, v := range m.Pix {
		if v != 0 {
			dist[i] = inf
		}
	}
	at := func(x, y int) int {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return dist[y*w+x]
	}

	// 正向扫描
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if dist[i] == 0 {
				continue
			}
			d := dist[i]
			d = min(d, at(x-1, y)+chamferOrtho)
			d = min(d, at(x, y-1)+chamferOrtho)
			d = min(d, at(x-1, y-1)+chamferDiag)
			d = min(d, at(x+1, y-1)+chamferDiag)
			dist[i] = d
		}
	}
	// 反向扫描
	for y := h - 1; y >= 0; y-- {
		for x := w - 1; x >= 0; x-- {
			i := y*w + x
			if dist[i] == 0 {
				continue
			}
			d := dist[i]
			d = min(d, at(x+1, y)+chamferOrtho)
			d = min(d, at(x, y+1)+chamferOrtho)
			d = min(d, at(x+1, y+1)+chamferDiag)
			d = min(d, at(x-1, y+1)+chamferDiag)
			dist[i] = d
		}
	}
	return dist
}
