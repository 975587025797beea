package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	level string
	dir   string
}

func (s stubProvider) GetAppName() string      { return "statsync" }
func (s stubProvider) GetLogLevel() string     { return s.level }
func (s stubProvider) GetLogDirectory() string { return s.dir }
func (s stubProvider) GetLogMaxSizeMB() int    { return 1 }
func (s stubProvider) GetLogMaxBackups() int   { return 1 }
func (s stubProvider) GetLogMaxAgeDays() int   { return 1 }

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLoggerConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(stubProvider{level: "warn"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", slog.String("file", "awstats012024.example.com.txt"))

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "file=awstats012024.example.com.txt")
}

func TestNewLoggerWritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	logger := NewLogger(stubProvider{level: "info", dir: dir}, &buf).With(slog.String("run_id", "abc"))

	logger.Info("processed")

	data, err := os.ReadFile(filepath.Join(dir, "statsync.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"processed"`)
	assert.Contains(t, string(data), `"run_id":"abc"`)
	assert.Contains(t, buf.String(), "processed")
}
