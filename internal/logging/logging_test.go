package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestJSONLoggerIsPlainOnBuffers(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug", "json").With("component", "test")
	logger.Debug("hello", "n", 1)
	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "\033[") {
		t.Fatalf("expected no color codes for non-terminal output: %q", line)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("expected json record, got %q: %v", line, err)
	}
	if rec["msg"] != "hello" || rec["component"] != "test" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "text")
	logger.Info("dropped")
	logger.Warn("kept")
	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Fatalf("unexpected output: %q", out)
	}
	if ParseLevel("nonsense") != slog.LevelInfo {
		t.Fatalf("unknown levels should default to info")
	}
}
