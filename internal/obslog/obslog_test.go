package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_TO_FILE", "false")
	t.Setenv("LOG_FORMAT", "JSON")
	o := OptionsFromEnv()
	if o.Level != zapcore.DebugLevel || o.File != "" || o.Format != "json" || !o.Console {
		t.Fatalf("unexpected options %+v", o)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{"warn": zapcore.WarnLevel, "WARNING": zapcore.WarnLevel, "error": zapcore.ErrorLevel, "bogus": zapcore.InfoLevel, "": zapcore.InfoLevel}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bot.log")
	l, err := New(Options{Level: zapcore.InfoLevel, File: path, Format: "json"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("wc_match_started", zap.String("channel", "room1"))
	_ = l.Sync()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"wc_match_started"`) || !strings.Contains(string(b), `"channel":"room1"`) {
		t.Fatalf("unexpected log %s", b)
	}
}

func TestSetNilFallsBackToNop(t *testing.T) {
	prev := L()
	t.Cleanup(func() { Set(prev) })
	Set(nil)
	if L() == nil {
		t.Fatalf("L must never be nil")
	}
}
