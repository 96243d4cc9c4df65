package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "docgateway-api", "debug", "json")
	if err != nil {
		t.Fatalf("NewWithWriter() error: %v", err)
	}

	log.Debug("worker started")
	_ = log.Sync()

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["service"] != "docgateway-api" {
		t.Fatalf("expected service field, got %v", entry["service"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Fatalf("expected timestamp key in %v", entry)
	}
}

func TestNewWithWriterLevelFallback(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "", "verbose", "json")
	if err != nil {
		t.Fatalf("NewWithWriter() error: %v", err)
	}

	log.Debug("hidden")
	_ = log.Sync()
	if buf.Len() != 0 {
		t.Fatalf("debug entry should be filtered at info level, got %s", buf.String())
	}
}

func TestNewWithWriterUnknownFormat(t *testing.T) {
	if _, err := NewWithWriter(&bytes.Buffer{}, "", "info", "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
