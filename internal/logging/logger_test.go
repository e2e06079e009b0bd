package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerDefaults(t *testing.T) {
	logger := NewLogger(nil)
	if logger == nil {
		t.Fatal("NewLogger(nil) returned nil")
	}
	if logger.level != LevelInfo {
		t.Errorf("level = %v, want LevelInfo", logger.level)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	if buf.Len() != 0 {
		t.Errorf("expected no output below configured level, got: %s", buf.String())
	}

	logger.Warn("warning message")
	if !strings.Contains(buf.String(), "warning message") {
		t.Errorf("expected warning message in output, got: %s", buf.String())
	}
}

func TestLoggerWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	driverLogger := logger.With("uring")
	driverLogger.Info("ring created", "entries", 1024)

	output := buf.String()
	if !strings.Contains(output, "[uring]") {
		t.Errorf("expected component tag [uring] in output, got: %s", output)
	}
	if !strings.Contains(output, "entries=1024") {
		t.Errorf("expected entries=1024 in output, got: %s", output)
	}

	timerLogger := driverLogger.With("timer")
	timerLogger.Debug("wheel cascade")
	if !strings.Contains(buf.String(), "[uring.timer]") {
		t.Errorf("expected nested component tag, got: %s", buf.String())
	}
}

func TestLoggerPrintfCompat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelInfo, Output: &buf})
	logger.Printf("queue %d ready", 3)
	if !strings.Contains(buf.String(), "queue 3 ready") {
		t.Errorf("expected formatted message, got: %s", buf.String())
	}
}

func TestDefaultLoggerSingleton(t *testing.T) {
	a := Default()
	b := Default()
	if a != b {
		t.Error("expected Default() to return the same instance")
	}

	custom := NewLogger(&Config{Level: LevelError})
	SetDefault(custom)
	if Default() != custom {
		t.Error("expected SetDefault to replace the singleton")
	}
}
