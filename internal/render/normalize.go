package render

import (
	"regexp"
	"strings"
)

var (
	// **[3]**, __[3]__, *[3]*, _[3]_
	emphasizedMark = regexp.MustCompile(`(\*\*|__|\*|_)(\[\d+\])(\*\*|__|\*|_)`)
	blankLines     = regexp.MustCompile(`\n{3,}`)
)

// Normalize 整理模型输出: 去掉标记外的强调符号, 去掉行尾空白, 合并多余的空行
//
// glamour 会把 **[3]** 中的方括号拆开渲染, 标记外的强调符号需要先去掉.
func Normalize(text string) string {
	text = emphasizedMark.ReplaceAllStringFunc(text, func(s string) string {
		sub := emphasizedMark.FindStringSubmatch(s)
		if sub[1] != sub[3] {
			return s
		}
		return sub[2]
	})

	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	return blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
}
