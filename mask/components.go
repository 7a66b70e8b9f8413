package mask

// RegionMode 小区域清理的对象
type RegionMode int

const (
	Holes   RegionMode = iota // 前景内部的小孔洞
	Islands                   // 孤立的小前景块
)

var neighbors4 = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// Label 4 邻域连通域标记, 每个连通域返回一个 mask, 按扫描顺序排列
func Label(m *Mask) []*Mask {
	labels := labelComponents(m.Pix, m.Width, m.Height, 255)
	var out []*Mask
	for _, comp := range labels {
		c := New(m.Width, m.Height)
		for _, idx := range comp {
			c.Pix[idx] = 255
		}
		out = append(out, c)
	}
	return out
}

// RemoveSmallRegions 移除面积小于 minArea 的孔洞或孤岛, 返回新 mask
func RemoveSmallRegions(m *Mask, minArea int, mode RegionMode) *Mask {
	out := m.Clone()
	if minArea <= 0 {
		return out
	}

	// 孔洞: 对背景做连通域, 但与图像边界相连的背景不算孔洞
	target := uint8(255)
	if mode == Holes {
		target = 0
	}
	for _, comp := range labelComponents(m.Pix, m.Width, m.Height, target) {
		if len(comp) >= minArea {
			continue
		}
		if mode == Holes && touchesBorder(comp, m.Width, m.Height) {
			continue
		}
		fill := uint8(0)
		if mode == Holes {
			fill = 255
		}
		for _, idx := range comp {
			out.Pix[idx] = fill
		}
	}
	return out
}

// labelComponents 返回值等于 target 的像素的 4 邻域连通域 (像素下标列表)
func labelComponents(pix []uint8, w, h int, target uint8) [][]int {
	match := func(v uint8) bool {
		if target == 0 {
			return v == 0
		}
		return v != 0
	}

	visited := make([]bool, len(pix))
	var comps [][]int
	queue := make([]int, 0, 64)

	for start := range pix {
		if visited[start] || !match(pix[start]) {
			continue
		}
		visited[start] = true
		queue = append(queue[:0], start)
		comp := []int{start}

		for len(queue) > 0 {
			idx := queue[0]
			queue = queue[1:]
			x, y := idx%w, idx/w
			for _, d := range neighbors4 {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				n := ny*w + nx
				if visited[n] || !match(pix[n]) {
					continue
				}
				visited[n] = true
				queue = append(queue, n)
				comp = append(comp, n)
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

func touchesBorder(comp []int, w, h int) bool {
	for _, idx := range comp {
		x, y := idx%w, idx/w
		if x == 0 || y == 0 || x == w-1 || y == h-1 {
			return true
		}
	}
	return false
}
