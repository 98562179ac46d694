package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSONLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentBot, Output: &buf})
	l.Info("hello", FieldLedgerID, "L1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry[FieldComponent] != ComponentBot || entry[FieldLedgerID] != "L1" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Output: &buf})
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug logged at info level: %s", buf.String())
	}
}

func TestContextRoundTrip(t *testing.T) {
	l := New(Config{Output: &bytes.Buffer{}}).WithComponent(ComponentHTTP)
	ctx := WithContext(context.Background(), l)
	if got := FromContext(ctx); got.Component() != ComponentHTTP {
		t.Fatalf("component = %q", got.Component())
	}
	if got := FromContext(context.Background()); got.Component() != "unknown" {
		t.Fatalf("fallback component = %q", got.Component())
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Output: &buf})

	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("request id missing: %s", buf.String())
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf}))

	sl.LogMessageHandled(context.Background(), "62811", "chat", 3, 2, 1, 0)
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "added=2") {
		t.Fatalf("unexpected output %s", out)
	}

	buf.Reset()
	sl.LogError(context.Background(), "boom", errors.New("bad"), ErrorTypeBackend, OpAppend, nil)
	if !strings.Contains(buf.String(), "error=bad") || !strings.Contains(buf.String(), "error_type=backend_error") {
		t.Fatalf("unexpected output %s", buf.String())
	}
}
