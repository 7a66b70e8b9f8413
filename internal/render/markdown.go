// Package render 终端中的 Markdown 输出
package render

import (
	"github.com/charmbracelet/glamour"
)

// Markdown 渲染视觉问答的回答
//
// 非终端时只做 Normalize 后原样输出, 保证 [n] 标记可以被后续程序解析. 渲染失败时返回整理后的文本.
func Markdown(text string, tty bool) string {
	text = Normalize(text)
	if !tty {
		return text
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(0))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}
