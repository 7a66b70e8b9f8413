package mask

import (
	"image"
	"sort"
)

// StabilityScore 稳定性分数: 在阈值上下偏移 offset 后二值化, 两者的 IoU
//
// # Params:
//
//	logits: mask logits
//	threshold: 二值化阈值
//	offset: 阈值偏移量
func StabilityScore(logits []float32, threshold, offset float32) float32 {
	inter, union := 0, 0
	for _, v := range logits {
		if v > threshold+offset {
			inter++
		}
		if v > threshold-offset {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float32(inter) / float32(union)
}

// BoxIoU 两个矩形框的交并比
func BoxIoU(r1, r2 image.Rectangle) float32 {
	intersect := r1.Intersect(r2)
	if intersect.Empty() {
		return 0.0
	}

	interArea := intersect.Dx() * intersect.Dy()
	area1 := r1.Dx() * r1.Dy()
	area2 := r2.Dx() * r2.Dy()

	return float32(interArea) / float32(area1+area2-interArea)
}

// NMS 非极大值抑制, 返回保留的下标 (按分数从高到低), 不修改入参
//
// # Params:
//
//	boxes: 检测框
//	scores: 与 boxes 一一对应的分数
//	iouThresh: IOU 阈值
func NMS(boxes []image.Rectangle, scores []float32, iouThresh float32) []int {
	order := make([]int, len(boxes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	keep := make([]int, 0, len(order))
	suppressed := make([]bool, len(boxes))

	for oi, i := range order {
		if suppressed[i] {
			continue
		}
		keep = append(keep, i)

		for _, j := range order[oi+1:] {
			if suppressed[j] {
				continue
			}
			if BoxIoU(boxes[i], boxes[j]) > iouThresh {
				suppressed[j] = true
			}
		}
	}
	return keep
}
