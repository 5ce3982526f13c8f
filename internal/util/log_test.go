package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger("debug")
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}

	logger = NewLogger("invalid")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", logger.GetLevel())
	}

	logger = NewLogger(" WARN ")
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %s", logger.GetLevel())
	}
}

func TestNewConsoleLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger("info", &buf)
	logger.Info().Str("instrument", "BTCUSD:DEMO").Msg("bot started")
	logger.Debug().Msg("hidden")

	out := buf.String()
	if !strings.Contains(out, "bot started") || !strings.Contains(out, "BTCUSD:DEMO") {
		t.Fatalf("unexpected console output: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked at info level: %s", out)
	}
}
