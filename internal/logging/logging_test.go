package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	level, err = ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Options{Level: "warn", JSON: true})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "model", "seem")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "seem", entry["model"])
}

func TestPrettyHandler(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, PrettyHandlerOptions{SlogOpts: slog.HandlerOptions{Level: slog.LevelDebug}}))

	logger.With("run", "abc").WithGroup("req").Debug("推理完成", "marks", 3, "error", errors.New("boom"))

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "DEBUG: 推理完成")
	start := strings.Index(line, "{")
	require.GreaterOrEqual(t, start, 0)

	var fields map[string]any
	require.NoError(t, json.Unmarshal([]byte(line[start:]), &fields))
	assert.Equal(t, "abc", fields["run"])
	assert.Equal(t, float64(3), fields["req.marks"])
	assert.Equal(t, "boom", fields["req.error"])
}
