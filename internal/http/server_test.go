package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"habitual/internal/auth"
	"habitual/internal/services"
	"habitual/internal/storage/memory"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	srv      *Server
	store    *memory.Store
	accounts *services.AccountService
	sessions *auth.Sessions
}

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	t.Helper()
	store := memory.New()
	f := &fixture{
		store:    store,
		accounts: services.NewAccountService(store, bcrypt.MinCost),
		sessions: auth.NewSessions(100, time.Hour, false),
	}
	deps := Deps{
		Habits:             services.NewHabitService(store, services.WithClock(func() time.Time { return fixedNow })),
		Accounts:           f.accounts,
		Sessions:           f.sessions,
		Store:              store,
		RateLimitPerMinute: 1000,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.srv = NewServer(":0", deps)
	t.Cleanup(func() { _ = f.srv.Shutdown(context.Background()) })
	return f
}

// login creates a user and returns a valid session cookie.
func (f *fixture) login(t *testing.T, email string) (*http.Cookie, int64) {
	t.Helper()
	user, err := f.accounts.Signup(context.Background(), email, "password123")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	rr := httptest.NewRecorder()
	f.sessions.Create(rr, user.ID)
	return rr.Result().Cookies()[0], user.ID
}

func (f *fixture) do(t *testing.T, method, target string, body io.Reader, cookie *http.Cookie, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = "192.0.2.10:4321"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) get(t *testing.T, target string, cookie *http.Cookie) *httptest.ResponseRecorder {
	return f.do(t, http.MethodGet, target, nil, cookie, nil)
}

func (f *fixture) postForm(t *testing.T, target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	return f.do(t, http.MethodPost, target, strings.NewReader(form.Encode()), cookie,
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
}

func (f *fixture) postJSON(t *testing.T, target, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	return f.do(t, http.MethodPost, target, strings.NewReader(body), cookie,
		map[string]string{"Content-Type": "application/json"})
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t)

	rr := f.get(t, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rr.Code)
	}
	if body := decode[map[string]any](t, rr); body["status"] != "ok" {
		t.Errorf("healthz body = %v", body)
	}

	rr = f.get(t, "/readyz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, body %s", rr.Code, rr.Body.String())
	}
	if body := decode[map[string]any](t, rr); body["status"] != "ready" {
		t.Errorf("readyz body = %v", body)
	}
}

func TestReadyReportsStoreFailure(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Store = failingPinger{} })

	rr := f.get(t, "/readyz", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "database is locked") {
		t.Errorf("readyz body = %s", rr.Body.String())
	}
}

type fakeBroker bool

func (b fakeBroker) Healthy() bool { return bool(b) }

func TestReadyReportsBrokerWithoutFailing(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Broker = fakeBroker(false) })

	rr := f.get(t, "/readyz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, want 200", rr.Code)
	}
	body := decode[map[string]any](t, rr)
	checks, _ := body["checks"].(map[string]any)
	if checks["events"] != "degraded" {
		t.Errorf("events check = %v", checks["events"])
	}
}

func TestTrustedProxyForwardedFor(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.RateLimitPerMinute = 1
		d.TrustedProxies = []string{"198.51.100.0/24"}
	})
	cookie, _ := f.login(t, "proxy@example.com")

	post := func(forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/journal/", strings.NewReader(`{"text":"x"}`))
		req.RemoteAddr = "198.51.100.7:1234"
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", forwardedFor)
		req.AddCookie(cookie)
		rr := httptest.NewRecorder()
		f.srv.Handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := post("203.0.113.1"); code != http.StatusOK {
		t.Fatalf("first client = %d", code)
	}
	if code := post("203.0.113.2"); code != http.StatusOK {
		t.Errorf("second client behind the proxy = %d, want its own budget", code)
	}
	if code := post("203.0.113.1"); code != http.StatusTooManyRequests {
		t.Errorf("first client again = %d, want 429", code)
	}
}

func TestAnonymousAccess(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/", "/add/"} {
		rr := f.get(t, path, nil)
		if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login/" {
			t.Errorf("GET %s = %d %q, want redirect to /login/", path, rr.Code, rr.Header().Get("Location"))
		}
	}

	for _, path := range []string{"/api/monthly-progress/", "/api/yearly-progress/", "/api/habits-for-month/", "/api/journal/"} {
		rr := f.get(t, path, nil)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("GET %s = %d, want 401", path, rr.Code)
			continue
		}
		if body := decode[ErrorBody](t, rr); body.Error != "authentication required" {
			t.Errorf("GET %s body = %+v", path, body)
		}
	}

	forged := &http.Cookie{Name: auth.CookieName, Value: "not-a-token"}
	if rr := f.get(t, "/api/journal/", forged); rr.Code != http.StatusUnauthorized {
		t.Errorf("forged cookie status = %d, want 401", rr.Code)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	f := newFixture(t)

	rr := f.get(t, "/login/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login page status = %d", rr.Code)
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing security headers")
	}
	if !strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("X-Request-ID = %q", rr.Header().Get("X-Request-ID"))
	}
}

func TestStaticAssets(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/static/app.js", "/static/style.css"} {
		rr := f.get(t, path, nil)
		if rr.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rr.Code)
		}
		if rr.Header().Get("Cache-Control") == "" {
			t.Errorf("GET %s missing Cache-Control", path)
		}
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.RateLimitPerMinute = 2 })
	cookie, _ := f.login(t, "limit@example.com")

	for i := 0; i < 2; i++ {
		if rr := f.postJSON(t, "/api/journal/", `{"text":"x"}`, cookie); rr.Code != http.StatusOK {
			t.Fatalf("POST %d status = %d", i+1, rr.Code)
		}
	}
	rr := f.postJSON(t, "/api/journal/", `{"text":"x"}`, cookie)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third POST status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if rr := f.get(t, "/api/journal/", cookie); rr.Code != http.StatusOK {
		t.Errorf("GET after limit = %d, want 200", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	cookie, userID := f.login(t, "metrics@example.com")
	habit, _ := f.store.CreateHabit(context.Background(), userID, "Read")

	f.postJSON(t, "/api/toggle-entry/", `{"habit_id":`+itoa(habit.ID)+`,"completed":true}`, cookie)
	f.postJSON(t, "/api/toggle-entry/", `{"habit_id":`+itoa(habit.ID)+`,"completed":true,"date":"2024-01-01"}`, cookie)

	rr := f.get(t, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`habitual_habits_toggles_total{outcome="ok"} 1`,
		`habitual_habits_toggles_total{outcome="forbidden"} 1`,
		`route="/api/toggle-entry/"`,
		`habitual_auth_active_sessions 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
