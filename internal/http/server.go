package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"habitual/internal/auth"
	"habitual/internal/cache"
	applog "habitual/internal/log"
	"habitual/internal/metrics"
	"habitual/internal/middleware/ratelimit"
	"habitual/internal/middleware/security"
	"habitual/internal/middleware/trace"
	"habitual/internal/services"
	appweb "habitual/web"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker is implemented by the optional event broker client.
type HealthChecker interface {
	Healthy() bool
}

// Deps are the collaborators of the server.
type Deps struct {
	Habits             *services.HabitService
	Accounts           *services.AccountService
	Sessions           *auth.Sessions
	Store              Pinger
	Broker             HealthChecker
	Metrics            *metrics.Metrics
	Logger             *applog.Logger
	RateLimitPerMinute int
	TrustedProxies     []string
}

type Server struct {
	http.Server
	templates *template.Template
	habits    *services.HabitService
	accounts  *services.AccountService
	sessions  *auth.Sessions
	store     Pinger
	broker    HealthChecker
	metrics   *metrics.Metrics
	logger    *applog.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	cacheManager     *cache.Manager
	started          time.Time
	shutdownOnce     sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		habits:           deps.Habits,
		accounts:         deps.Accounts,
		sessions:         deps.Sessions,
		store:            deps.Store,
		broker:           deps.Broker,
		metrics:          deps.Metrics,
		logger:           deps.Logger.WithComponent(applog.ComponentHTTP),
		securityDetector: security.NewDetector(),
		cacheManager:     cache.NewManager(),
		started:          time.Now(),
	}

	for _, cidr := range deps.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, applog.FieldError, err)
		}
	}

	rlConfig := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = deps.RateLimitPerMinute
	}
	s.rateLimiter = ratelimit.NewLimiter(rlConfig)

	s.cacheManager.Register(s.sessions.Cache())
	s.cacheManager.StartCleanup(10 * time.Minute)
	s.metrics.GaugeFunc("auth", "active_sessions", "Sessions currently held in memory.", func() float64 {
		return float64(s.sessions.Active())
	})
	s.securityDetector.OnSuspicious(func(r *http.Request) {
		s.metrics.Suspicious()
		s.logger.WithComponent(applog.ComponentSecurity).WarnContext(r.Context(), "Suspicious request detected",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			applog.FieldUserAgent, r.UserAgent())
	})

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Accounts
	mux.HandleFunc("/login/", s.handleLogin)
	mux.HandleFunc("/signup/", s.handleSignup)
	mux.HandleFunc("/logout/", s.handleLogout)

	// Pages
	mux.HandleFunc("GET /{$}", s.requirePage(s.handleHome))
	mux.HandleFunc("/add/", s.requirePage(s.handleAddHabit))
	mux.HandleFunc("POST /toggle/{id}/", s.requirePage(s.handleToggleToday))

	// JSON API; handlers check the method themselves so 405 is JSON
	mux.HandleFunc("/api/monthly-progress/", s.requireAPI(s.handleMonthlyProgress))
	mux.HandleFunc("/api/yearly-progress/", s.requireAPI(s.handleYearlyProgress))
	mux.HandleFunc("/api/habits-for-month/", s.requireAPI(s.handleHabitsForMonth))
	mux.HandleFunc("/api/toggle-entry/", s.requireAPI(s.handleToggleEntry))
	mux.HandleFunc("/api/journal/", s.requireAPI(s.handleJournal))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.logger, s.securityDetector.ExtractClientIP, s.metrics.ObserveRequest)
	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimited)

	var handler http.Handler = mux
	handler = limit(handler)
	handler = s.detectSuspicious(handler)
	handler = tracer.Middleware(handler)
	handler = headers.Middleware(handler)
	return handler
}

func (s *Server) detectSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.securityDetector.DetectSuspiciousRequest(r)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	s.logger.WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

// Shutdown gracefully shuts down the server and its background routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the store and the templates
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.store == nil {
		checks["store"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if err := s.store.Ping(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	// The broker is optional; an outage degrades events but not readiness.
	if s.broker != nil {
		if s.broker.Healthy() {
			checks["events"] = "ok"
		} else {
			checks["events"] = "degraded"
		}
	}

	checks["sessions"] = map[string]any{"active": s.sessions.Active()}
	checks["security"] = map[string]any{"suspicious_requests": s.securityDetector.SuspiciousRequests()}
	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients()}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}
