package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	applog "habitual/internal/log"
)

func newTestLogger() (*applog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return applog.New(applog.Config{Level: slog.LevelDebug, Component: applog.ComponentHTTP, Output: &buf}), &buf
}

func TestMiddleware_AssignsRequestID(t *testing.T) {
	logger, buf := newTestLogger()

	var seen string
	var observedStatus int
	m := NewMiddleware(logger, func(*http.Request) string { return "10.0.0.1" },
		func(r *http.Request, status int, elapsed time.Duration) { observedStatus = status })

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		applog.FromContext(r.Context()).InfoContext(r.Context(), "inside handler")
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/journal/", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("RequestID() = %q, want req_ prefix", seen)
	}
	if got := rr.Header().Get(HeaderRequestID); got != seen {
		t.Errorf("response header = %q, want %q", got, seen)
	}
	if observedStatus != http.StatusTeapot {
		t.Errorf("observed status = %d, want first written status", observedStatus)
	}
	out := buf.String()
	if !strings.Contains(out, "inside handler") || !strings.Contains(out, "request_id="+seen) {
		t.Errorf("handler log lacks request id:\n%s", out)
	}
	if !strings.Contains(out, "status_code=418") || !strings.Contains(out, "client_ip=10.0.0.1") {
		t.Errorf("completion log missing fields:\n%s", out)
	}
}

func TestMiddleware_HonoursIncomingRequestID(t *testing.T) {
	logger, _ := newTestLogger()
	m := NewMiddleware(logger, nil)

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"valid id is kept", "abc-123_x", true},
		{"id with spaces is replaced", "bad id", false},
		{"overlong id is replaced", strings.Repeat("a", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(HeaderRequestID, tt.incoming)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if (seen == tt.incoming) != tt.keep {
				t.Errorf("RequestID() = %q, incoming %q, keep %v", seen, tt.incoming, tt.keep)
			}
		})
	}
}

func TestGenerateRequestID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
