package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var output map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("failed to parse JSON output %q: %v", buf.String(), err)
	}
	return output
}

func TestNewLogger_DefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level to be info, got %s", cfg.Level)
	}
	if cfg.Component != "krisp-import" {
		t.Errorf("expected default component 'krisp-import', got %s", cfg.Component)
	}
	if cfg.JSONFormat {
		t.Error("expected default JSONFormat to be false")
	}
}

func TestNewLogger_NilConfig(t *testing.T) {
	log := NewLogger(nil)
	if log == nil {
		t.Error("expected non-nil logger with nil config")
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(&Config{
		Level:      LevelDebug,
		Component:  "importer",
		JSONFormat: true,
		Output:     buf,
	})

	log.Info("meeting imported", F("title", "Weekly Sync"))

	output := decodeLine(t, buf)
	if output["message"] != "meeting imported" {
		t.Errorf("expected message 'meeting imported', got %v", output["message"])
	}
	if output["component"] != "importer" {
		t.Errorf("expected component 'importer', got %v", output["component"])
	}
	if output["title"] != "Weekly Sync" {
		t.Errorf("expected title 'Weekly Sync', got %v", output["title"])
	}
	if _, ok := output["time"]; !ok {
		t.Error("expected timestamp field 'time' in output")
	}
	if output["level"] != "info" {
		t.Errorf("expected level 'info', got %v", output["level"])
	}
}

func TestLogger_AllLevels(t *testing.T) {
	tests := []struct {
		name     string
		logFunc  func(Logger)
		expected string
	}{
		{"debug", func(l Logger) { l.Debug("debug message") }, "debug"},
		{"info", func(l Logger) { l.Info("info message") }, "info"},
		{"warn", func(l Logger) { l.Warn("warn message") }, "warn"},
		{"error", func(l Logger) { l.Error("error message") }, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			log := NewLogger(&Config{Level: LevelDebug, JSONFormat: true, Output: buf})

			tt.logFunc(log)

			if got := decodeLine(t, buf)["level"]; got != tt.expected {
				t.Errorf("expected level %s, got %v", tt.expected, got)
			}
		})
	}
}

func TestLogger_WithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(&Config{Level: LevelInfo, JSONFormat: true, Output: buf})

	log = log.With(F("source", "export.zip"), F("attempt", 2))
	log.Info("parsing")

	output := decodeLine(t, buf)
	if output["source"] != "export.zip" {
		t.Errorf("expected source 'export.zip', got %v", output["source"])
	}
	if output["attempt"] != float64(2) {
		t.Errorf("expected attempt 2, got %v", output["attempt"])
	}
}

func TestLogger_WithContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(&Config{Level: LevelInfo, JSONFormat: true, Output: buf})

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanID:  trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	log.WithContext(ctx).Info("traced import")

	output := decodeLine(t, buf)
	if output["trace_id"] != "0102030405060708090a0b0c0d0e0f10" {
		t.Errorf("expected trace_id from span context, got %v", output["trace_id"])
	}
}

func TestLogger_WithContext_EmptyContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(&Config{Level: LevelInfo, JSONFormat: true, Output: buf})

	log.WithContext(context.Background()).Info("no trace")

	if _, ok := decodeLine(t, buf)["trace_id"]; ok {
		t.Error("trace_id should not be present with empty context")
	}
}

func TestLogger_FieldTypes(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(&Config{Level: LevelInfo, JSONFormat: true, Output: buf})

	testTime := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	testErr := errors.New("test error")

	log.Info("type test",
		F("string_field", "hello"),
		F("int_field", 42),
		F("int64_field", int64(9999999999)),
		F("float_field", 3.14),
		F("bool_field", true),
		F("duration_field", 5*time.Second),
		F("time_field", testTime),
		F("tags_field", []string{"krisp", "standup"}),
		Err(testErr),
	)

	output := decodeLine(t, buf)
	if output["string_field"] != "hello" {
		t.Errorf("string_field mismatch: %v", output["string_field"])
	}
	if output["int_field"] != float64(42) { // JSON numbers are float64
		t.Errorf("int_field mismatch: %v", output["int_field"])
	}
	if output["int64_field"] != float64(9999999999) {
		t.Errorf("int64_field mismatch: %v", output["int64_field"])
	}
	if output["float_field"] != 3.14 {
		t.Errorf("float_field mismatch: %v", output["float_field"])
	}
	if output["bool_field"] != true {
		t.Errorf("bool_field mismatch: %v", output["bool_field"])
	}
	if tags, ok := output["tags_field"].([]interface{}); !ok || len(tags) != 2 {
		t.Errorf("tags_field mismatch: %v", output["tags_field"])
	}
	if output["error"] != "test error" {
		t.Errorf("error field mismatch: %v", output["error"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(&Config{Level: LevelWarn, JSONFormat: true, Output: buf})

	log.Debug("debug - should not appear")
	log.Info("info - should not appear")
	log.Warn("warn - should appear")
	log.Error("error - should appear")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")

	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), output)
	}
	if !strings.Contains(lines[0], "warn - should appear") {
		t.Errorf("expected first line to be warn, got: %s", lines[0])
	}
	if !strings.Contains(lines[1], "error - should appear") {
		t.Errorf("expected second line to be error, got: %s", lines[1])
	}
}

func TestLogger_ConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(&Config{Level: LevelInfo, Output: buf})

	log.Info("console output test", F("speaker", "alice"))

	output := buf.String()
	if !strings.Contains(output, "console output test") {
		t.Errorf("console output should contain message: %s", output)
	}
	if !strings.Contains(output, "INF") {
		t.Errorf("console output should contain level indicator: %s", output)
	}
	// A buffer is not a terminal, so no escape sequences.
	if strings.Contains(output, "\x1b[") {
		t.Errorf("console output to a buffer should not be coloured: %q", output)
	}
}

// recordingSink captures entries synchronously.
type recordingSink struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (s *recordingSink) Write(e LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *recordingSink) Flush(context.Context) error { return nil }
func (s *recordingSink) Close() error                { return nil }

func TestLogger_Sinks(t *testing.T) {
	sink := &recordingSink{}
	log := NewLogger(&Config{
		Level:      LevelInfo,
		Component:  "watch",
		JSONFormat: true,
		Output:     &bytes.Buffer{},
		Sinks:      []Sink{sink},
	})

	log.Debug("below level")
	log.With(F("source", "a.zip")).Info("imported", F("tags", 7))

	if len(sink.entries) != 1 {
		t.Fatalf("expected 1 sink entry, got %d", len(sink.entries))
	}
	e := sink.entries[0]
	if e.Component != "watch" || e.Level != "info" || e.Message != "imported" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.Fields["source"] != "a.zip" || e.Fields["tags"] != "7" {
		t.Errorf("bound and call fields should both reach sinks: %v", e.Fields)
	}
	if !strings.HasPrefix(e.Caller, "logger_test.go:") {
		t.Errorf("caller should point at the test, got %q", e.Caller)
	}
}

func TestF_And_Err_Helpers(t *testing.T) {
	f := F("key", "value")
	if f.Key != "key" || f.Value != "value" {
		t.Errorf("F helper failed: %+v", f)
	}

	testErr := errors.New("test")
	errField := Err(testErr)
	if errField.Key != "error" {
		t.Errorf("Err helper should use 'error' as key, got: %s", errField.Key)
	}
	if errField.Value != testErr {
		t.Errorf("Err helper value mismatch")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"invalid", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %s, want %s", tt.input, got, tt.expected)
			}
			if got := toZerolog(ParseLevel(tt.input)).String(); got != string(tt.expected) {
				t.Errorf("toZerolog(%s) = %s", tt.expected, got)
			}
		})
	}
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()
	log.Info("discarded")
	if log.With(F("a", 1)) != log {
		t.Error("With on a nop logger should return itself")
	}
	if log.WithContext(context.Background()) != log {
		t.Error("WithContext on a nop logger should return itself")
	}
}
