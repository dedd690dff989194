package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(LogConfig{Writer: &buf, Level: "warn"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	log.Info("hidden %d", 1)
	log.Warn("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown 2") {
		t.Errorf("expected warn line, got %q", out)
	}
}

func TestLoggerWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(LogConfig{Writer: &buf, Level: "debug"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	log.With("ingest").With("embed").Debug("batch %d", 3)

	if !strings.Contains(buf.String(), "[DEBUG] ingest.embed: batch 3") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel},
		{"", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInvalidOutput(t *testing.T) {
	if _, err := NewLogger(LogConfig{Output: "syslog"}); err == nil {
		t.Fatal("expected error for unknown output")
	}
}
