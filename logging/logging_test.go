package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLogging_ParseLevel(t *testing.T) {
	type levelTest struct {
		input    string
		expected zapcore.Level
		err      bool
	}

	var levelTests = []levelTest{
		{"DEBUG", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"ERROR", zapcore.ErrorLevel, false},
		{"chatty", zapcore.InfoLevel, true},
	}

	for _, test := range levelTests {
		actual, err := ParseLevel(test.input)
		if (err != nil) != test.err {
			t.Fatalf("expected error %v for %q got %v", test.err, test.input, err)
		}
		if actual != test.expected {
			t.Fatalf("expected %v got %v", test.expected, actual)
		}
	}
}

func TestLogging_AlertCapture(t *testing.T) {
	l := NewNop()

	l.Debug("core/test: %v", "ignored")
	l.Info("core/test: %v", "ignored")
	l.Warning("core/test: slot %v is unreachable", 3)
	l.Error("core/test: slot %v is unresponsive", 4)

	alerts := l.Alerts().Drain()
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts got %v", len(alerts))
	}
	if alerts[0].Level != zapcore.WarnLevel || alerts[1].Level != zapcore.ErrorLevel {
		t.Fatalf("expected warning then error got %v then %v", alerts[0].Level, alerts[1].Level)
	}
	if alerts[1].Message != "core/test: slot 4 is unresponsive" {
		t.Fatalf("expected formatted message got %q", alerts[1].Message)
	}
	if l.Alerts().Len() != 0 {
		t.Fatalf("expected drained buffer")
	}
}

func TestLogging_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bbbpool.log")

	l, err := New("INFO", path, true)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	l.Info("core/test: hello %v", "file")
	if err := l.Sync(); err != nil {
		t.Fatalf("err: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !strings.Contains(string(content), "core/test: hello file") {
		t.Fatalf("expected log file to contain message, got %q", content)
	}

	if err := l.Reopen(); err != nil {
		t.Fatalf("err: %v", err)
	}
}

func TestLogging_SetLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bbbpool.log")

	l, err := New("WARN", path, false)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	l.Info("core/test: hidden")
	if err := l.SetLevel("debug"); err != nil {
		t.Fatalf("err: %v", err)
	}
	l.Debug("core/test: shown")
	l.Sync()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if strings.Contains(string(content), "hidden") || !strings.Contains(string(content), "shown") {
		t.Fatalf("expected only the entry logged after the change got %q", content)
	}

	if err := l.SetLevel("verbose"); err == nil {
		t.Fatalf("expected an error")
	}
}
