package marks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []int
	}{
		{"两个编号", "[3] and [7]", []int{3, 7}},
		{"标点", `The cup is "[12]", next to the plate ([4]).`, []int{4, 12}},
		{"去重", "[2] [2] [1]", []int{1, 2}},
		{"非数字", "[a] [3b] [] [5]", []int{5}},
		{"无方括号", "there are 3 cups", nil},
		{"换行", "left:\n[9]\nright: [10]", []int{9, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.text))
		})
	}
}

func TestSelect(t *testing.T) {
	items := []string{"a", "b", "c"}
	assert.Equal(t, []string{"c", "a"}, Select(items, []int{3, 1}))
	assert.Equal(t, []string{"b"}, Select(items, []int{0, 2, 4}))
	assert.Empty(t, Select(items, nil))
}
