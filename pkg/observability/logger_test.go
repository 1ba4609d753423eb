package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func parseLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log output is not JSON: %q: %v", line, err)
	}
	return entry
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.Info("hello")

	entry := parseLogLine(t, &buf)
	if entry["msg"] != "hello" {
		t.Errorf("Expected msg 'hello', got %v", entry["msg"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("Expected level INFO, got %v", entry["level"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Debug("dropped")
	logger.Info("also dropped")

	if buf.Len() != 0 {
		t.Errorf("Expected no output below warn level, got %q", buf.String())
	}

	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Error("Expected warn message to be logged")
	}
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("page", "/home").WithField("count", 3).Info("tracked")

	entry := parseLogLine(t, &buf)
	if entry["page"] != "/home" {
		t.Errorf("Expected page field, got %v", entry["page"])
	}
	if entry["count"] != float64(3) {
		t.Errorf("Expected count field, got %v", entry["count"])
	}
}

func TestLogger_WithErrorNil(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	// nil error must not add a field or panic
	logger.WithError(nil).Info("ok")

	entry := parseLogLine(t, &buf)
	if _, ok := entry["error"]; ok {
		t.Error("nil error should not add an error field")
	}
}

func TestFromContext_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-123")

	FromContext(ctx).Info("handled")

	entry := parseLogLine(t, &buf)
	if entry["request_id"] != "req-123" {
		t.Errorf("Expected request_id field, got %v", entry["request_id"])
	}
}

func TestGetLogger_Fallback(t *testing.T) {
	// A bare context yields a usable default logger
	logger := GetLogger(context.Background())
	if logger == nil {
		t.Fatal("Expected fallback logger, got nil")
	}
}

func TestLogLevel_String(t *testing.T) {
	if DebugLevel.String() != "DEBUG" || ErrorLevel.String() != "ERROR" {
		t.Error("LogLevel String() mismatch")
	}
}
