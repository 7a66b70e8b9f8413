package render

import (
	"testing"

	"github.com/getcharzp/go-som/marks"
	"github.com/stretchr/testify/assert"
)

func TestMarkdown_KeepsMarks(t *testing.T) {
	for _, text := range []string{
		"The cup is **[3]** and the plate is [7].",
		"- __[1]__ a cat\n- *[12]* a sofa",
		"Nothing marked here.",
	} {
		out := Markdown(text, false)
		assert.Equal(t, marks.Parse(text), marks.Parse(out), out)
	}
	assert.Equal(t, "The cup is [3].", Markdown("The cup is **[3]**.", false))
}

func TestMarkdown_TTY(t *testing.T) {
	out := Markdown("# Answer\n\nThe cup is **[3]**.", true)
	assert.Contains(t, out, "cup")
	assert.Contains(t, out, "3")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "see [2] and [5]", Normalize("see **[2]** and _[5]_"))
	// 两侧符号不一致时不处理
	assert.Equal(t, "**[2]_", Normalize("**[2]_"))
	assert.Equal(t, "a\n\nb", Normalize("a   \n\n\n\nb\t"))
	assert.Equal(t, "**bold** text", Normalize("**bold** text"))
}
