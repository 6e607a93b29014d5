package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestValidLevelAndFormat(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error"} {
		if !ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = false", s)
		}
	}
	if ValidLevel("trace") {
		t.Error("ValidLevel(trace) = true")
	}
	for _, s := range []string{"text", "json"} {
		if !ValidFormat(s) {
			t.Errorf("ValidFormat(%q) = false", s)
		}
	}
	if ValidFormat("xml") {
		t.Error("ValidFormat(xml) = true")
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "freshet.log")
	logger, closer := New(Config{Level: "info", Format: "json", FilePath: path})
	if closer == nil {
		t.Fatal("expected a closer for file-backed logging")
	}

	logger.Info("hello", slog.String("k", "v"))
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file missing entry: %s", data)
	}
	if !strings.Contains(string(data), `"k":"v"`) {
		t.Errorf("log file missing attr: %s", data)
	}
}

func TestNewStdoutHasNoCloser(t *testing.T) {
	logger, closer := New(Config{Level: "debug", Format: "text"})
	if closer != nil {
		t.Error("expected nil closer without a file path")
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug level to be enabled")
	}
}

func TestConfigString(t *testing.T) {
	c := Config{Level: "info", Format: "json"}
	if got := c.String(); got != "level=info format=json" {
		t.Errorf("String() = %q", got)
	}

	c.FilePath = "/var/log/freshet.log"
	c.FileMaxSizeMB = 100
	c.FileMaxFiles = 3
	c.FileMaxAgeDays = 30
	if got := c.String(); !strings.Contains(got, "file=/var/log/freshet.log") {
		t.Errorf("String() = %q", got)
	}
}
