package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewEmitsJSONByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Writer: &buf})
	logger.Info("hello", "component", "test")

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "hello" || record["component"] != "test" {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Writer: &buf, Format: "text"})
	logger.Info("hello")

	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Writer: &buf, Level: "warn"})
	logger.Info("dropped")
	logger.Warn("kept")

	output := buf.String()
	if strings.Contains(output, "dropped") {
		t.Fatalf("info record should be filtered at warn level: %q", output)
	}
	if !strings.Contains(output, "kept") {
		t.Fatalf("warn record missing: %q", output)
	}
}

func TestRequestIDContextRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-123")
	id, ok := RequestIDFromContext(ctx)
	if !ok || id != "req-123" {
		t.Fatalf("expected req-123, got %q ok=%v", id, ok)
	}

	if _, ok := RequestIDFromContext(context.Background()); ok {
		t.Fatal("empty context must not yield a request id")
	}
	if ctx := ContextWithRequestID(context.Background(), "   "); ctx != context.Background() {
		t.Fatal("blank request id must not be stored")
	}
}

func TestWithContextAnnotatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Writer: &buf})
	ctx := ContextWithRequestID(context.Background(), "req-123")

	WithContext(ctx, logger).Info("hello")

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["request_id"] != "req-123" {
		t.Fatalf("expected request_id annotation, got %v", record)
	}
}
