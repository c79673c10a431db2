package validation

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		want      zapcore.Level
		expectErr bool
	}{
		{name: "Empty defaults to info", level: "", want: zapcore.InfoLevel},
		{name: "Debug", level: "debug", want: zapcore.DebugLevel},
		{name: "Info", level: "info", want: zapcore.InfoLevel},
		{name: "Warn", level: "warn", want: zapcore.WarnLevel},
		{name: "Warning alias", level: "warning", want: zapcore.WarnLevel},
		{name: "Error", level: "error", want: zapcore.ErrorLevel},
		{name: "Case insensitive", level: " DEBUG ", want: zapcore.DebugLevel},
		{name: "Unknown", level: "verbose", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLogLevel(tt.level)
			if tt.expectErr {
				if err == nil {
					t.Errorf("ParseLogLevel(%q) expected error but got none", tt.level)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLogLevel(%q) unexpected error = %v", tt.level, err)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestValidateLogFormat(t *testing.T) {
	for _, format := range []string{"", "json", "console"} {
		if err := ValidateLogFormat(format); err != nil {
			t.Errorf("ValidateLogFormat(%q) unexpected error = %v", format, err)
		}
	}
	for _, format := range []string{"text", "JSON", "logfmt"} {
		if err := ValidateLogFormat(format); err == nil {
			t.Errorf("ValidateLogFormat(%q) expected error but got none", format)
		}
	}
}
