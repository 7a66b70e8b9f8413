package visualizer

import "image/color"

// palette 取自 CSS4 颜色表, 去掉了过暗与过亮的颜色
var palette = []color.RGBA{
	{R: 0x1E, G: 0x90, B: 0xFF, A: 0xFF}, // dodgerblue
	{R: 0xFF, G: 0x63, B: 0x47, A: 0xFF}, // tomato
	{R: 0x32, G: 0xCD, B: 0x32, A: 0xFF}, // limegreen
	{R: 0xFF, G: 0xD7, B: 0x00, A: 0xFF}, // gold
	{R: 0x94, G: 0x00, B: 0xD3, A: 0xFF}, // darkviolet
	{R: 0x00, G: 0xCE, B: 0xD1, A: 0xFF}, // darkturquoise
	{R: 0xFF, G: 0x14, B: 0x93, A: 0xFF}, // deeppink
	{R: 0xFF, G: 0x8C, B: 0x00, A: 0xFF}, // darkorange
	{R: 0x6B, G: 0x8E, B: 0x23, A: 0xFF}, // olivedrab
	{R: 0x41, G: 0x69, B: 0xE1, A: 0xFF}, // royalblue
	{R: 0xDC, G: 0x14, B: 0x3C, A: 0xFF}, // crimson
	{R: 0x20, G: 0xB2, B: 0xAA, A: 0xFF}, // lightseagreen
	{R: 0xBA, G: 0x55, B: 0xD3, A: 0xFF}, // mediumorchid
	{R: 0xD2, G: 0x69, B: 0x1E, A: 0xFF}, // chocolate
	{R: 0x7B, G: 0x68, B: 0xEE, A: 0xFF}, // mediumslateblue
	{R: 0x3C, G: 0xB3, B: 0x71, A: 0xFF}, // mediumseagreen
	{R: 0xF0, G: 0x80, B: 0x80, A: 0xFF}, // lightcoral
	{R: 0x46, G: 0x82, B: 0xB4, A: 0xFF}, // steelblue
	{R: 0xDA, G: 0xA5, B: 0x20, A: 0xFF}, // goldenrod
	{R: 0xC7, G: 0x15, B: 0x85, A: 0xFF}, // mediumvioletred
	{R: 0x00, G: 0x80, B: 0x80, A: 0xFF}, // teal
	{R: 0x9A, G: 0xCD, B: 0x32, A: 0xFF}, // yellowgreen
	{R: 0xCD, G: 0x5C, B: 0x5C, A: 0xFF}, // indianred
	{R: 0x64, G: 0x95, B: 0xED, A: 0xFF}, // cornflowerblue
}

// Color 第 i 个 mask 的颜色
func Color(i int) color.RGBA {
	return palette[i%len(palette)]
}

// textColor 根据背景亮度选择黑色或白色文字
func textColor(bg color.RGBA) color.RGBA {
	luma := 0.299*float64(bg.R) + 0.587*float64(bg.G) + 0.114*float64(bg.B)
	if luma > 150 {
		return color.RGBA{A: 0xFF}
	}
	return color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
}
