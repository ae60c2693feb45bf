package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	logger := NewLogger(&Config{Level: "debug", Style: StyleJSON})
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug level not enabled")
	}

	logger = NewLogger(&Config{Level: "warn", Style: StyleTerminal})
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn level not enabled")
	}
}

func TestNewLoggerFallbacks(t *testing.T) {
	logger := NewLogger(&Config{Level: "verbose", Style: "fancy"})
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("unknown level should fall back to info")
	}

	logger = NewLogger(nil)
	if logger == nil {
		t.Fatal("nil config should still build a logger")
	}

	logger = NewLogger(&Config{Style: StyleNoop})
	if logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("noop logger should drop everything")
	}
}
