package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, ValidateConfig(DefaultConfig()))

	cfg := DefaultConfig()
	cfg.Format = "xml"
	assert.Error(t, ValidateConfig(cfg))

	cfg = DefaultConfig()
	cfg.File = "lectio.log"
	cfg.MaxSizeMB = 0
	assert.Error(t, ValidateConfig(cfg))

	cfg = DefaultConfig()
	cfg.MaxBackups = -1
	assert.Error(t, ValidateConfig(cfg))
}

func TestNewWithWriter_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Level = "warn"
	logger := NewWithWriter(cfg, &buf)

	logger.Info("dropped")
	logger.Warn("kept", "date", "2025-01-01")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "2025-01-01", entry["date"])
}

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = "text"
	NewWithWriter(cfg, &buf).Info("hello", "trigger", "manual")

	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "trigger=manual")
}

func TestNew_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "lectio.log")
	cfg := DefaultConfig()
	cfg.File = path

	logger, closer, err := New(cfg)
	require.NoError(t, err)
	logger.Info("written to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"

	_, _, err := New(cfg)
	assert.Error(t, err)
}
