package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"error":    slog.LevelError,
		" WARN ":   slog.LevelWarn,
		"warning":  slog.LevelWarn,
		"Info":     slog.LevelInfo,
		"debug":    slog.LevelDebug,
		"verbose!": slog.LevelDebug,
	}
	for input, want := range cases {
		assert.Equal(t, want, levelFromString(input), input)
	}
}

func TestNewWriterJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWriter(&buf, "info", "json")
	logger.Debug("hidden")
	logger.With("component", "pipeline").Info("import finished", "imported", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "import finished", entry["msg"])
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, float64(3), entry["imported"])
}

func TestNewWriterText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewWriter(&buf, "warn", "text").Warn("unit skipped", "source_id", "msg-1")
	assert.Contains(t, buf.String(), "source_id=msg-1")
}
