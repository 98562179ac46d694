package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "moneybot/internal/log"

	"github.com/google/uuid"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelInfo, Format: "json", Component: applog.ComponentHTTP, Output: &buf})

	var seen string
	m := NewMiddleware(func(*http.Request) string { return "198.51.100.1" })
	h := applog.Middleware(logger)(m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r)
		w.WriteHeader(http.StatusAccepted)
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("request id %q is not a uuid", seen)
	}
	if rr.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("response header = %q, want %q", rr.Header().Get(HeaderRequestID), seen)
	}
	out := buf.String()
	for _, want := range []string{`"request_id":"` + seen + `"`, `"status_code":202`, `"client_ip":"198.51.100.1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %s: %s", want, out)
		}
	}
	if m.TotalRequests() != 1 {
		t.Errorf("total = %d", m.TotalRequests())
	}
}

func TestMiddlewareKeepsIncomingID(t *testing.T) {
	m := NewMiddleware(nil)
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { seen = RequestID(r) }))

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.Header.Set(HeaderRequestID, "gw-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "gw-123" {
		t.Fatalf("request id = %q", seen)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", 100))
	h.ServeHTTP(httptest.NewRecorder(), req)
	if len(seen) != 36 {
		t.Fatalf("oversized id should be replaced, got %q", seen)
	}
}
