package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogFileName(t *testing.T) {
	got := LogFileName(time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC))
	if got != "bot_2024-03-09.log" {
		t.Fatalf("unexpected file name: %s", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupLoggerWritesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	now := func() time.Time { return time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC) }

	if err := SetupLogger(Options{Dir: dir, Level: "INFO", Console: &console, Now: now}); err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}
	t.Cleanup(func() { _ = CloseGlobalLogger() })

	ApplicationLogger().Info("module loaded", "module", "matchday_module")
	DatabaseLogger().Debug("hidden at info level")

	if !strings.Contains(console.String(), "module loaded") {
		t.Fatalf("console missing record: %q", console.String())
	}
	if strings.Contains(console.String(), "hidden at info level") {
		t.Fatalf("debug record should be filtered")
	}
	if !strings.Contains(console.String(), "category=application") {
		t.Fatalf("category attribute missing: %q", console.String())
	}

	if err := CloseGlobalLogger(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "bot_2025-01-02.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "matchday_module") {
		t.Fatalf("file missing record: %q", string(data))
	}
}

func TestSetLevelEnablesDebug(t *testing.T) {
	var console bytes.Buffer
	if err := SetupLogger(Options{Level: "INFO", Console: &console}); err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}
	SetLevel("DEBUG")
	DiscordLogger().Debug("now visible")
	if !strings.Contains(console.String(), "now visible") {
		t.Fatalf("expected debug record after SetLevel, got %q", console.String())
	}
}
