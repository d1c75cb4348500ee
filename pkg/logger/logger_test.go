package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitWriter_LevelsAndModule(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, zerolog.InfoLevel)
	defer Close()

	Debug("hidden %d", 1)
	Info("tick %d", 2)
	l := For("executor")
	l.Warn().Str("state", "OPEN_MENU").Msg("lookup missing")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line should be filtered at info level: %s", out)
	}
	if !strings.Contains(out, `"message":"tick 2"`) {
		t.Errorf("expected formatted info line, got: %s", out)
	}
	if !strings.Contains(out, `"module":"executor"`) || !strings.Contains(out, `"state":"OPEN_MENU"`) {
		t.Errorf("expected module and state fields, got: %s", out)
	}
}

func TestInit_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autopilot.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	Error("dump failed: %s", "no space")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "dump failed: no space") {
		t.Errorf("log file missing message: %s", data)
	}
	if !strings.Contains(string(data), `"level":"error"`) {
		t.Errorf("log file missing level: %s", data)
	}
}

func TestInit_BadPath(t *testing.T) {
	if err := Init(filepath.Join(t.TempDir(), "missing", "dir", "x.log")); err == nil {
		t.Error("expected error for unwritable path")
	}
}

func TestClose_DiscardsAfterwards(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, zerolog.DebugLevel)
	Close()
	Info("after close")
	if buf.Len() != 0 {
		t.Errorf("expected no output after Close, got: %s", buf.String())
	}
}
