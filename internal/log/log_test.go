package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewJSONLogger(t *testing.T) {
	var b bytes.Buffer
	l := NewJSONLogger(&b, "warn")
	l.Info().Msg("dropped")
	l.Warn().Str("component", "fee").Msg("kept")

	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), b.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["message"] != "kept" || entry["component"] != "fee" || entry["level"] != "warn" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewConsoleLogger_NoColorOffTerminal(t *testing.T) {
	var b bytes.Buffer
	logger := NewConsoleLogger(&b, "info")
	logger.Info().Msg("hello")
	if strings.Contains(b.String(), "\x1b[") {
		t.Errorf("console output to a buffer has color codes: %q", b.String())
	}
	if !strings.Contains(b.String(), "hello") {
		t.Errorf("output = %q", b.String())
	}
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool.log")
	if err := Init("debug", true, path); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = Init("info", false, "") })

	Retarget.Debug().Int64("next_retarget", 2116).Msg("window")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"component":"retarget"`) || !strings.Contains(string(data), `"next_retarget":2116`) {
		t.Errorf("log file = %q", data)
	}
}

func TestInit_BadFile(t *testing.T) {
	if err := Init("info", false, filepath.Join(t.TempDir(), "missing", "dir", "x.log")); err == nil {
		t.Fatal("expected error for unwritable log file")
	}
}

func TestWithComponent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool.log")
	if err := Init("info", true, path); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = Init("info", false, "") })

	logger := WithComponent("fallback")
	logger.Info().Str("step", "smart").Msg("step failed")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"component":"fallback"`) || !strings.Contains(string(data), `"step":"smart"`) {
		t.Errorf("log file = %q", data)
	}
}
