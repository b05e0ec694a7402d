package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// ParseLogLevel converts a level name to a zapcore.Level.
// Accepts debug, info, warn/warning, error, fatal (case-insensitive).
// Unknown or empty values fall back to the provided default.
func ParseLogLevel(s string, fallback zapcore.Level) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return fallback
	}
}
