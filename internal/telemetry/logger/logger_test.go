package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info("snapshot sent", "peer", "10.0.0.1:8136", "entries", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "snapshot sent" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["peer"] != "10.0.0.1:8136" {
		t.Errorf("peer = %v", entry["peer"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "text", Output: &buf})

	log.Debug("dropped")
	log.Info("dropped too")
	log.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("low-severity entries were not filtered: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn entry missing: %q", out)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "text", Output: &buf})

	SetLevel("debug")
	defer SetLevel("info")

	if Level() != "debug" {
		t.Fatalf("Level() = %q, want debug", Level())
	}
	log.Debug("visible now")
	if !strings.Contains(buf.String(), "visible now") {
		t.Error("debug entry missing after SetLevel(debug)")
	}
}

func TestParseLevelFallback(t *testing.T) {
	if got := parseLevel("nonsense"); got != parseLevel("info") {
		t.Errorf("unknown level should fall back to info, got %v", got)
	}
}
