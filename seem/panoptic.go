package seem

// maskGrid 低分辨率 mask 的尺寸信息
type maskGrid struct {
	queries int
	h, w    int
	// 对应原图 (不含 padding) 的有效区域
	validW, validH int
}

// segment 全景后处理保留下来的区域, logits 为 ±1 的二值图 (行宽 grid.w)
type segment struct {
	query   int
	classID int
	score   float32
	logits  []float32
}

// panoptic 全景后处理
//
//  1. 每个 query 做 softmax, 丢弃背景与低于 ObjectMaskThreshold 的 query
//  2. 每个像素归属 score*sigmoid(mask) 最大的 query
//  3. 归属面积 / 自身面积 (sigmoid >= 0.5) 低于 OverlapThreshold 的区域视为被遮挡, 丢弃
func panoptic(logits, masks []float32, grid maskGrid, cfg Config) []segment {
	numLabels := cfg.NumClasses + 1
	pixels := grid.h * grid.w

	type kept struct {
		query   int
		classID int
		score   float32
	}
	var keep []kept
	for q := 0; q < grid.queries; q++ {
		classID, score := softmaxArgmax(logits[q*numLabels : (q+1)*numLabels])
		if classID == cfg.NumClasses || score <= cfg.ObjectMaskThreshold {
			continue
		}
		keep = append(keep, kept{query: q, classID: classID, score: score})
	}
	if len(keep) == 0 {
		return nil
	}

	// 每个像素归属的 kept 下标, -1 表示无
	owner := make([]int, pixels)
	probs := make([][]float32, len(keep))
	for k, kq := range keep {
		probs[k] = make([]float32, pixels)
		src := masks[kq.query*pixels : (kq.query+1)*pixels]
		for i, v := range src {
			probs[k][i] = sigmoid(v)
		}
	}
	for y := 0; y < grid.validH; y++ {
		for x := 0; x < grid.validW; x++ {
			i := y*grid.w + x
			best, bestK := float32(-1), -1
			for k, kq := range keep {
				p := kq.score * probs[k][i]
				if p > best {
					best, bestK = p, k
				}
			}
			owner[i] = bestK
		}
	}

	var segments []segment
	for k, kq := range keep {
		maskArea, originalArea := 0, 0
		out := make([]float32, pixels)
		for i := range out {
			out[i] = -1
		}
		for y := 0; y < grid.validH; y++ {
			for x := 0; x < grid.validW; x++ {
				i := y*grid.w + x
				on := probs[k][i] >= 0.5
				if on {
					originalArea++
				}
				if on && owner[i] == k {
					maskArea++
					out[i] = 1
				}
			}
		}
		if maskArea == 0 || originalArea == 0 {
			continue
		}
		if float32(maskArea)/float32(originalArea) < cfg.OverlapThreshold {
			continue
		}
		segments = append(segments, segment{
			query:   kq.query,
			classID: kq.classID,
			score:   kq.score,
			logits:  out,
		})
	}
	return segments
}
