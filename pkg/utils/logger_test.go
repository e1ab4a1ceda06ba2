package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "service.log")

	logger, err := NewLogger(LoggerConfig{Level: "warn", OutputPath: path, Format: "json", Service: "timesheet-ocr"})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", zap.String("resource_key", "Jane_Smith"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"msg":"kept"`)
	assert.Contains(t, string(data), `"service":"timesheet-ocr"`)
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("loud"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}

func TestKeyValueLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	kv := NewKeyValueLogger(zap.New(core))

	kv.Info("Timesheet processed", "run_id", "run-1", "entries", 3, 42, "ignored", "dangling")
	kv.Error("Timesheet processing failed", "error", errors.New("boom"))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	fields := entries[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.EqualValues(t, 3, fields["entries"])
	assert.Len(t, fields, 2)

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])

	// nil falls back to a no-op logger
	assert.NotPanics(t, func() { NewKeyValueLogger(nil).Info("x") })
}
