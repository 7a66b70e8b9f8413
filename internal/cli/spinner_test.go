package cli

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteWithSpinner_NoTTY(t *testing.T) {
	if IsATTY() {
		t.Skip("需要非终端环境")
	}
	n, err := ExecuteWithSpinner("分割中...", func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = ExecuteWithSpinner("分割中...", func() (int, error) { return 0, errors.New("boom") })
	assert.EqualError(t, err, "boom")
}

func TestSpinnerModel(t *testing.T) {
	m := newSpinnerModel("加载模型")
	assert.Contains(t, m.View(), "加载模型")

	next, cmd := m.Update(doneMsg{})
	fm := next.(spinnerModel)
	assert.True(t, fm.done)
	assert.Empty(t, fm.View())
	require.NotNil(t, cmd)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	fm = next.(spinnerModel)
	assert.False(t, fm.done)
	assert.True(t, fm.quitting)
}
