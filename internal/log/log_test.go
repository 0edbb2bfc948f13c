package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	t.Run("text format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{})

		logger.Info("server started", "port", 3000)

		out := buf.String()
		assert.Contains(t, out, "server started")
		assert.Contains(t, out, "port=3000")
	})

	t.Run("json format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{JSON: true})

		logger.Info("server started", "port", 3000)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "server started", entry["msg"])
		assert.EqualValues(t, 3000, entry["port"])
	})

	t.Run("level filters output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

		logger.Debug("noise")
		logger.Info("more noise")
		assert.Empty(t, buf.String())

		logger.Warn("something happened")
		assert.Contains(t, buf.String(), "something happened")
	})
}

func TestNewNop(t *testing.T) {
	t.Parallel()

	logger := NewNop()
	assert.NotPanics(t, func() {
		logger.Error("discarded", "key", "value")
	})
}
