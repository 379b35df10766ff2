package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != LevelInfo {
		t.Errorf("Level = %q, want %q", cfg.Level, LevelInfo)
	}
	if cfg.Pretty {
		t.Error("Pretty = true, want false (JSON output by default)")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel}, // unknown levels default to Info
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSetup_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelDebug, Output: buf})

	logger.Info().
		Str("form_id", "form1").
		Int("page", 2).
		Int("total_pages", 5).
		Msg("Fetched results page")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["form_id"] != "form1" {
		t.Errorf("form_id = %v, want %q", entry["form_id"], "form1")
	}
	if entry["message"] != "Fetched results page" {
		t.Errorf("message = %v", entry["message"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("timestamp field missing")
	}
}

func TestNewLogger_ComponentField(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelDebug, Output: buf})

	// Component loggers are how the exporter packages tag their output.
	for _, component := range []string{"fetch-controller", "downloader", "cache"} {
		buf.Reset()
		logger := NewLogger(component)
		logger.Info().Msg("ready")

		if !strings.Contains(buf.String(), `"component":"`+component+`"`) {
			t.Errorf("output missing component %q: %s", component, buf.String())
		}
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelWarn, Output: buf})

	// Below the configured level: the per-page fetch chatter.
	logger.Debug().Int("page", 1).Msg("Page flattened")
	logger.Info().Msg("Fetch session complete")

	// At or above the configured level: cooldowns and failures.
	logger.Warn().Int("page", 3).Msg("Rate limited, suspending fetch")
	logger.Error().Str("url", "https://example.com/a.png").Msg("Download permanently failed")

	output := buf.String()
	if strings.Contains(output, "Page flattened") {
		t.Error("debug message not filtered at warn level")
	}
	if strings.Contains(output, "Fetch session complete") {
		t.Error("info message not filtered at warn level")
	}
	if !strings.Contains(output, "Rate limited, suspending fetch") {
		t.Error("warn message missing")
	}
	if !strings.Contains(output, "Download permanently failed") {
		t.Error("error message missing")
	}
}

func TestSetup_PrettyOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger.Info().Msg("Export complete")

	// Console output is human-readable, not a JSON document.
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Errorf("pretty output should not be JSON: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "Export complete") {
		t.Errorf("message missing from pretty output: %q", buf.String())
	}
}
