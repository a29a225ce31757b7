// ABOUTME: Tests for logger setup and level parsing
// ABOUTME: Checks handler format selection and component tagging
package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetup_JSONWithComponent(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	Setup("info", "json", &buf)
	Component("ingest").Info("parsed", "file", "001.txt")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if record[FieldComponent] != "ingest" {
		t.Errorf("component = %v, want ingest", record[FieldComponent])
	}
	if record["file"] != "001.txt" {
		t.Errorf("file = %v", record["file"])
	}
}

func TestSetup_TextRespectsLevel(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := Setup("warn", "text", &buf)
	logger.Info("hidden")
	logger.Warn("shown", Error(errors.New("boom")))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "error=boom") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestNewComponentLogger_NilBase(t *testing.T) {
	logger := NewComponentLogger(nil, "api")
	if logger == nil {
		t.Fatal("expected logger")
	}
	logger.Info("discarded")
}
