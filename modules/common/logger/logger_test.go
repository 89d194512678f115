package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	log.Debug().Msg("hidden")
	log.Info().Str("session_id", "abc").Msg("✅ ready")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "✅ ready" {
		t.Fatalf("message = %v, want ✅ ready", entry["message"])
	}
	if entry["session_id"] != "abc" {
		t.Fatalf("session_id = %v, want abc", entry["session_id"])
	}
	if _, ok := entry["time"]; !ok {
		t.Fatalf("expected timestamp field in %v", entry)
	}
}

func TestNewDevelopmentEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("development", &buf)

	log.Debug().Msg("visible")
	if !bytes.Contains(buf.Bytes(), []byte("visible")) {
		t.Fatalf("debug message missing from output %q", buf.String())
	}
}
