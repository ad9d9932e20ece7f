package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInitJSON(t *testing.T) {
	buf := bytes.Buffer{}
	if err := Init(Config{Level: LevelInfo, Format: "json", Output: &buf}); err != nil {
		t.Fatal(err)
	}
	defer Discard()

	Debug("hidden")
	LogPhase("legalize")
	With("function", "add16").Warn("slow")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d:\n%s", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["msg"] != "Starting phase" || rec["phase"] != "legalize" || rec["level"] != "INFO" {
		t.Errorf("unexpected record %v", rec)
	}
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["function"] != "add16" || rec["level"] != "WARN" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestInitText(t *testing.T) {
	buf := bytes.Buffer{}
	if err := Init(Config{Level: LevelDebug, Format: "text", Output: &buf}); err != nil {
		t.Fatal(err)
	}
	defer Discard()

	LogLegalized("mul32", 3, 41, 120)
	if s := buf.String(); !strings.Contains(s, "function=mul32") || !strings.Contains(s, "steps=41") {
		t.Errorf("unexpected record %q", s)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"error":   LevelError,
		"verbose": LevelInfo,
	}
	for k, v := range tests {
		if got := ParseLevel(k); got != v {
			t.Errorf("%s: got %d, want %d", k, got, v)
		}
	}
}
