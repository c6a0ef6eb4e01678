package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredLogger_LogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(LogLevelInfo, &buf)

	logger.Debug("debug message")
	assert.Empty(t, buf.String())

	buf.Reset()
	logger.Info("info message")
	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, LogLevelInfo, entry.Level)
	assert.Equal(t, "info message", entry.Message)

	buf.Reset()
	logger.Error("error message", errors.New("test error"))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, LogLevelError, entry.Level)
	assert.Equal(t, "test error", entry.Error)
}

func TestStructuredLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(LogLevelInfo, &buf)

	contextLogger := logger.With(String("component", "hierarchy"))
	contextLogger.Info("node created", String("node_id", "n-1"), Int("count", 3), Bool("root", true))

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hierarchy", entry.Fields["component"])
	assert.Equal(t, "n-1", entry.Fields["node_id"])
	assert.Equal(t, float64(3), entry.Fields["count"])
	assert.Equal(t, true, entry.Fields["root"])

	// the parent logger is unchanged
	buf.Reset()
	logger.Info("plain")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Nil(t, entry.Fields)
}

func TestStructuredLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerFromConfig(&LoggerConfig{Level: LogLevelDebug, Format: LogFormatText, Output: &buf})

	logger.Warn("slow query", String("op", "find_all"), Int("nodes", 10))
	line := buf.String()
	assert.Contains(t, line, " WARN slow query")
	assert.True(t, strings.Index(line, "nodes=10") < strings.Index(line, "op=find_all"), "keys are sorted")

	buf.Reset()
	logger.Error("failed", errors.New("boom"))
	assert.Contains(t, buf.String(), `error="boom"`)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", LogLevelDebug},
		{"INFO", LogLevelInfo},
		{"warn", LogLevelWarn},
		{"warning", LogLevelWarn},
		{"error", LogLevelError},
		{"invalid", LogLevelInfo},
		{"", LogLevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLogLevel(tt.input))
		})
	}
}

func TestNewLoggerFromConfig(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerFromConfig(&LoggerConfig{Level: LogLevelWarn, Format: LogFormatJSON, Output: &buf})

	logger.Info("info message")
	assert.Empty(t, buf.String())

	logger.Warn("warn message")
	assert.Contains(t, buf.String(), "warn message")

	assert.NotNil(t, NewLoggerFromConfig(nil))
	assert.NotNil(t, NewLoggerFromConfig(&LoggerConfig{}))
}

func TestBadgerLogger(t *testing.T) {
	var buf bytes.Buffer
	bl := NewBadgerLogger(NewStructuredLogger(LogLevelWarn, &buf))

	bl.Infof("opening %s\n", "db")
	assert.Empty(t, buf.String())

	bl.Warningf("value log %d\n", 3)
	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "value log 3", entry.Message)
	assert.Equal(t, "badger", entry.Fields["component"])
}

func BenchmarkStructuredLogger_Info(b *testing.B) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(LogLevelInfo, &buf)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("benchmark message", String("request_id", "req-123"), Int("iteration", i))
		buf.Reset()
	}
}
