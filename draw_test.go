package som

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextDrawer_DrawLabel(t *testing.T) {
	d, err := NewTextDrawer("")
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.SetSize(20))
	w, h := d.Measure("12")
	assert.Greater(t, w, 0)
	assert.Greater(t, h, 0)

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	bg := color.RGBA{R: 255, A: 255}
	box := d.DrawLabel(img, "12", image.Pt(0, 0), color.White, bg)

	// 贴边的标记被平移回图片内
	assert.True(t, box.In(img.Bounds()), "box %v", box)
	assert.Equal(t, bg, img.RGBAAt(box.Min.X, box.Min.Y))
}

func TestNewTextDrawer_MissingFile(t *testing.T) {
	_, err := NewTextDrawer("./fonts/missing.ttf")
	assert.Error(t, err)
}
