package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger_DefaultConfig(t *testing.T) {
	logger := NewLogger(nil)
	assert.NotNil(t, logger)
}

func TestLogger_LevelGating(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("debug message")
	logger.Info("info message")
	assert.Empty(t, buf.String(), "debug/info should be gated out below LevelWarn")

	logger.Warn("warn message")
	assert.Contains(t, buf.String(), "warn message")
}

func TestLogger_FormatArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Info("registration created", "id", 42, "token", "7")

	output := buf.String()
	assert.True(t, strings.Contains(output, "id=42"))
	assert.True(t, strings.Contains(output, "token=7"))
	assert.True(t, strings.Contains(output, "[INFO]"))
}

func TestLogger_Printf(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Debugf("select drained %d events", 3)
	assert.Contains(t, buf.String(), "select drained 3 events")
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))
	t.Cleanup(func() { SetDefault(NewLogger(nil)) })

	Debug("debug message", "key", "value")
	assert.Contains(t, buf.String(), "debug message")
	assert.Contains(t, buf.String(), "key=value")

	buf.Reset()
	Info("info message")
	assert.Contains(t, buf.String(), "info message")

	buf.Reset()
	Warn("warning message")
	assert.Contains(t, buf.String(), "warning message")

	buf.Reset()
	Error("error message")
	assert.Contains(t, buf.String(), "error message")
}
