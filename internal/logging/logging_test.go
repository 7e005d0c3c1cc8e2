package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "micstream.log")

	log := newLogger("debug", &console, path)
	log.Debug().Str("device", "mic").Msg("Opened input stream")

	if !strings.Contains(console.String(), "Opened input stream") {
		t.Fatalf("expected console output, got %q", console.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if !strings.Contains(string(data), `"device":"mic"`) {
		t.Fatalf("expected JSON fields in log file, got %q", data)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var console bytes.Buffer
	log := newLogger("warn", &console, "")

	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	if strings.Contains(console.String(), "hidden") {
		t.Fatal("info message should be filtered at warn level")
	}
	if !strings.Contains(console.String(), "shown") {
		t.Fatal("warn message should be written")
	}
}

func TestNewLoggerUnknownLevel(t *testing.T) {
	var console bytes.Buffer
	log := newLogger("chatty", &console, "")

	log.Debug().Msg("hidden")
	log.Info().Msg("shown")

	if strings.Contains(console.String(), "hidden") || !strings.Contains(console.String(), "shown") {
		t.Fatalf("expected info level fallback, got %q", console.String())
	}
}
