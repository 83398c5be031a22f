package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line %q is not JSON: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	log.Debug(ctx, "debug")
	log.Info(ctx, "info")
	log.Warn(ctx, "warn")
	log.Error(ctx, "error")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0]["level"] != "warn" || entries[1]["level"] != "error" {
		t.Errorf("levels = %v, %v", entries[0]["level"], entries[1]["level"])
	}
}

func TestLogger_WithProcedure(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("debug", &buf).WithProcedure(ProcedureMeta{Path: "post.list", Kind: "query"})
	log.Info(context.Background(), "hello", Field{Key: "n", Value: 2})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e["rpc.path"] != "post.list" || e["rpc.kind"] != "query" {
		t.Errorf("procedure attrs = %v / %v", e["rpc.path"], e["rpc.kind"])
	}
	if e["msg"] != "hello" || e["n"] != float64(2) {
		t.Errorf("entry = %v", e)
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("info", &buf)
	log.Info(context.Background(), "call",
		Field{Key: "input", Value: `{"password":"x"}`},
		Field{Key: "authorization", Value: "Bearer abc"},
		Field{Key: "path", Value: "user.login"},
	)

	e := decodeLines(t, &buf)[0]
	if e["input"] != "[REDACTED]" || e["authorization"] != "[REDACTED]" {
		t.Errorf("sensitive fields leaked: %v", e)
	}
	if e["path"] != "user.login" {
		t.Errorf("path = %v, want user.login", e["path"])
	}
}

func TestLogger_ReservedKeysWin(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriter("info", &buf).Info(context.Background(), "real", Field{Key: "msg", Value: "fake"})

	if e := decodeLines(t, &buf)[0]; e["msg"] != "real" {
		t.Errorf("msg = %v, want real", e["msg"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
		"bogus": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
