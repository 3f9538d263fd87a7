package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		name        string
		configLevel string
		want        []string
		suppressed  []string
	}{
		{
			"debug passes everything",
			"debug",
			[]string{"[DEBUG]", "[INFO]", "[WARN]", "[ERROR]"},
			nil,
		},
		{
			"info drops debug",
			"info",
			[]string{"[INFO]", "[WARN]", "[ERROR]"},
			[]string{"[DEBUG]"},
		},
		{
			"warn drops debug and info",
			"warn",
			[]string{"[WARN]", "[ERROR]"},
			[]string{"[DEBUG]", "[INFO]"},
		},
		{
			"error drops all but errors",
			"error",
			[]string{"[ERROR]"},
			[]string{"[DEBUG]", "[INFO]", "[WARN]"},
		},
		{
			"unknown level defaults to info",
			"chatty",
			[]string{"[INFO]", "[WARN]", "[ERROR]"},
			[]string{"[DEBUG]"},
		},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(&buf, tt.configLevel)

			log.Debug(ctx, "debug message")
			log.Info(ctx, "info message")
			log.Warn(ctx, "warn message")
			log.Error(ctx, "error message")

			out := buf.String()
			for _, tag := range tt.want {
				if !strings.Contains(out, tag) {
					t.Errorf("output missing %s:\n%s", tag, out)
				}
			}
			for _, tag := range tt.suppressed {
				if strings.Contains(out, tag) {
					t.Errorf("output should not contain %s:\n%s", tag, out)
				}
			}
		})
	}
}

func TestFormatting(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info")

	log.Info(context.Background(), "session %s advanced to %s", "2025-03-15", "delivering")

	if !strings.Contains(buf.String(), "session 2025-03-15 advanced to delivering") {
		t.Errorf("formatted output = %q", buf.String())
	}
}

func TestCaseInsensitiveLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "ERROR")

	ctx := context.Background()
	log.Info(ctx, "should be dropped")
	log.Error(ctx, "should appear")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Error("level comparison should be case-insensitive")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("errors should always be logged")
	}
}
