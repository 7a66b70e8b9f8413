// Package marks 从对话回复中解析形如 [3] 的标记引用
package marks

import (
	"sort"
	"strconv"
	"strings"
)

// 解析前从每个词中去掉的字符
var stripper = strings.NewReplacer(".", "", ",", "", ")", "", `"`, "")

// Parse 提取文本中方括号内的编号, 去重后升序返回
//
// 例如 "[3] and [7]." 返回 [3 7]. 每个词只取第一个方括号, 非纯数字的内容被忽略.
func Parse(text string) []int {
	seen := make(map[int]bool)
	var out []int
	for _, word := range strings.Fields(text) {
		word = stripper.Replace(word)
		_, after, ok := strings.Cut(word, "[")
		if !ok {
			continue
		}
		inner, _, _ := strings.Cut(after, "]")
		if !isDigits(inner) {
			continue
		}
		n, err := strconv.Atoi(inner)
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Select 按编号 (从 1 开始) 选取元素, 越界的编号被忽略
func Select[T any](items []T, marks []int) []T {
	out := make([]T, 0, len(marks))
	for _, m := range marks {
		if m < 1 || m > len(items) {
			continue
		}
		out = append(out, items[m-1])
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
