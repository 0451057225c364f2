package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func withOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prevOut, prevLogger, prevLevel := output, log.Logger, zerolog.GlobalLevel()
	output = buf
	t.Cleanup(func() {
		output = prevOut
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})
	return buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInit_JSON(t *testing.T) {
	buf := withOutput(t)
	Init(Config{Format: "json", Level: "info"})

	log.Debug().Msg("hidden")
	log.Info().Str("investigation_id", "abc12345").Msg("Investigation started")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if entry["investigation_id"] != "abc12345" || entry["level"] != "info" {
		t.Errorf("unexpected entry %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestInit_Console(t *testing.T) {
	buf := withOutput(t)
	Init(Config{Format: "console", Level: "debug"})

	log.Debug().Str("path", "/tmp/x").Msg("Catalog loaded")

	out := buf.String()
	if !strings.Contains(out, "Catalog loaded") || !strings.Contains(out, "path=") {
		t.Errorf("unexpected console output %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Error("expected human-readable output")
	}
}

func TestInit_AutoNonTerminalIsJSON(t *testing.T) {
	buf := withOutput(t)
	Init(Config{Format: "auto"})

	log.Info().Msg("hello")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected JSON when output is not a terminal, got %q", buf.String())
	}
}

func TestStdLogger(t *testing.T) {
	buf := withOutput(t)
	Init(Config{Format: "json"})

	StdLogger("mcp").Printf("transport error: %s", "EOF")

	out := buf.String()
	if !strings.Contains(out, `"component":"mcp"`) || !strings.Contains(out, "transport error: EOF") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestGormWriter(t *testing.T) {
	buf := withOutput(t)
	Init(Config{Format: "json"})

	gormWriter{}.Printf("%s [%.3fms] %s\n", "db.go:10", 250.0, "SLOW SQL")

	out := buf.String()
	if !strings.Contains(out, `"component":"gorm"`) || !strings.Contains(out, "SLOW SQL") {
		t.Errorf("unexpected output %q", out)
	}
	if GormLogger(0) == nil {
		t.Error("expected gorm logger")
	}
}
