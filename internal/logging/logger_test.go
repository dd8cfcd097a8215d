package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ShayCichocki/arifi/internal/config"
)

func TestNew_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "debug", Format: "json"}, zapcore.AddSync(&buf))

	logger.Debug("analyzer finished", zap.String("tool", "flake8"))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "analyzer finished", entry["msg"])
	assert.Equal(t, "flake8", entry["tool"])
	assert.Equal(t, "arifi", entry["logger"])
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "warn", Format: "console"}, zapcore.AddSync(&buf))

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestNew_ConsoleColor(t *testing.T) {
	saved := color.NoColor
	t.Cleanup(func() { color.NoColor = saved })

	tests := []struct {
		name       string
		noColor    bool
		wantEscape bool
	}{
		{"plain when color is disabled", true, false},
		{"colored on a terminal", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			color.NoColor = tt.noColor

			var buf bytes.Buffer
			logger := New(config.LoggingConfig{Level: "info", Format: "console"}, zapcore.AddSync(&buf))
			logger.Warn("retrying")

			out := buf.String()
			assert.Contains(t, out, "WARN")
			assert.Equal(t, tt.wantEscape, strings.Contains(out, "\x1b["))
		})
	}
}

func TestNew_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "chatty"}, zapcore.AddSync(&buf))

	logger.Debug("debug line")
	logger.Info("info line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.Contains(t, out, "info line")
}

func TestNew_FileCore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arifi.log")
	var console bytes.Buffer

	logger := New(config.LoggingConfig{
		Level:      "info",
		Format:     "console",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	}, zapcore.AddSync(&console))

	logger.Info("session finished")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry), "file output should be JSON")
	assert.Equal(t, "session finished", entry["msg"])
	assert.Contains(t, console.String(), "session finished")
}
