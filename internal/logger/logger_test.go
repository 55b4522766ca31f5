package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stageline/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestJSONHandlerHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	SetLevel(slog.LevelWarn)
	l := slog.New(newHandler(&buf, "json"))
	l.Info("skipped")
	l.Warn("kept", "card_id", "c1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "c1", rec["card_id"])
}

func TestTextHandlerWritesPlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	SetLevel(slog.LevelInfo)
	slog.New(newHandler(&buf, "text")).Info("card moved", "position", 2)
	assert.Contains(t, buf.String(), "card moved")
	assert.Contains(t, buf.String(), "position=2")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stageline.log")
	l, err := New(config.LoggerConfig{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)
	l.Debug("hello")
	assert.FileExists(t, path)
}
