package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/saurav-sabu/RepoScribe/internal/infra/config"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LoggerConfig{Level: "info", Format: "json"})

	log.Info("worker completed", "worker", "file_analyzer_agent")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v, output: %s", err, buf.String())
	}
	if entry["msg"] != "worker completed" {
		t.Errorf("msg = %q, want %q", entry["msg"], "worker completed")
	}
	if entry["worker"] != "file_analyzer_agent" {
		t.Errorf("worker = %v", entry["worker"])
	}
}

func TestNewWithWriterLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LoggerConfig{Level: "warn", Format: "text"})

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn record missing")
	}
}

func TestRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LoggerConfig{Level: "debug", Format: "json"})

	log.With("api_key", "gsk-live").Info("provider ready",
		"token", "t0k3n",
		slog.Group("request", "Authorization", "Bearer abc", "model", "qwen"))

	out := buf.String()
	for _, secret := range []string{"gsk-live", "t0k3n", "Bearer abc"} {
		if strings.Contains(out, secret) {
			t.Errorf("secret %q leaked: %s", secret, out)
		}
	}
	if !strings.Contains(out, "qwen") {
		t.Errorf("non-secret attribute dropped: %s", out)
	}
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("nothing")
	if log.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard logger should be disabled at every level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reposcribe.log")
	log, closer, err := New(config.LoggerConfig{Level: "info", Format: "text", Output: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("to file")
	if err := closer(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file missing record: %s", data)
	}
}

func TestNewBadOutput(t *testing.T) {
	_, _, err := New(config.LoggerConfig{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	if err == nil {
		t.Error("expected error for unwritable output")
	}
}
