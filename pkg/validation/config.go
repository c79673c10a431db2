// Package validation provides configuration validation utilities.
package validation

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Log formats accepted by the logger setup.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// ParseLogLevel maps a configured level name onto a zap level. An empty name
// means info.
func ParseLogLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// ValidateLogFormat checks the logging encoder name. An empty name is
// accepted and means json.
func ValidateLogFormat(format string) error {
	switch format {
	case "", LogFormatJSON, LogFormatConsole:
		return nil
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}
}
