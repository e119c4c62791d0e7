package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-assistant/internal/infra/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.input), tt.input)
	}
}

func TestOpenOutput(t *testing.T) {
	tests := []struct {
		output string
		want   io.Writer
	}{
		{"stdout", os.Stdout},
		{"stderr", os.Stderr},
		{"", os.Stderr},
		{"discard", io.Discard},
		{"none", io.Discard},
	}
	for _, tt := range tests {
		w, closer, err := openOutput(tt.output)
		require.NoError(t, err, tt.output)
		assert.Equal(t, tt.want, w, tt.output)
		assert.NoError(t, closer())
	}
}

func TestOpenOutputInvalidPath(t *testing.T) {
	_, _, err := openOutput("/nonexistent/dir/log.txt")
	assert.Error(t, err)
}

func TestNewJSONFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	log, closer, err := New(config.LoggerConfig{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("filtered out")
	log.Warn("context load failed", "error", "boom")
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "filtered out")
	assert.Contains(t, out, `"msg":"context load failed"`)
	assert.Contains(t, out, `"service":"portfolio-assistant"`)
}

func TestNewTextFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, closer, err := New(config.LoggerConfig{Level: "info", Format: "text", Output: path})
	require.NoError(t, err)
	log.Info("proxy listening", "addr", ":3000")
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "msg=\"proxy listening\""))
}

func TestNewInvalidOutput(t *testing.T) {
	_, _, err := New(config.LoggerConfig{Output: "/nonexistent/dir/app.log"})
	assert.Error(t, err)
}

func TestForTerminal(t *testing.T) {
	assert.Equal(t, "discard", ForTerminal(config.LoggerConfig{Output: "stderr"}).Output)
	assert.Equal(t, "discard", ForTerminal(config.LoggerConfig{}).Output)
	assert.Equal(t, "/var/log/a.log", ForTerminal(config.LoggerConfig{Output: "/var/log/a.log"}).Output)
}
