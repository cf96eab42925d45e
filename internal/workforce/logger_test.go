package workforce

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDebugLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	logger, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("NewDebugLogger() error = %v", err)
	}

	logger.Log("worker %s picked task %s", "w1", "0.0")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "worker w1 picked task 0.0") {
		t.Errorf("log missing entry:\n%s", data)
	}
}

func TestDebugLoggerNilSafe(t *testing.T) {
	var logger *DebugLogger
	logger.Log("ignored")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() on nil = %v, want nil", err)
	}

	SetDebugLogger(nil)
	debugLog("ignored %d", 1)
}
