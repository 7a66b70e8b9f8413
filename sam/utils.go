package sam

import (
	"image"
)

// normalizeAndPad 归一化和填充
func normalizeAndPad(src image.Image, targetW, targetH int) []float32 {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	data := make([]float32, 3*targetW*targetH)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			rf := (float32(r)/65535.0 - MeanR) / StdR
			gf := (float32(g)/65535.0 - MeanG) / StdG
			bf := (float32(b)/65535.0 - MeanB) / StdB

			// 目标索引 (CHW)
			idx := y*targetW + x
			data[idx] = rf
			data[targetW*targetH+idx] = gf
			data[2*targetW*targetH+idx] = bf
		}
	}
	return data
}

// pointGrid 生成 n*n 的均匀网格点, 点位于每个格子的中心
func pointGrid(n, w, h int) []Point {
	points := make([]Point, 0, n*n)
	offset := 1.0 / (2.0 * float32(n))
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			fx := offset + float32(i)/float32(n)
			fy := offset + float32(j)/float32(n)
			points = append(points, Point{
				X:     fx * float32(w),
				Y:     fy * float32(h),
				Label: LabelForeground,
			})
		}
	}
	return points
}
