package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"habitual/internal/auth"
	"habitual/internal/backend"
	"habitual/internal/cli"
	"habitual/internal/config"
	apphttp "habitual/internal/http"
	applog "habitual/internal/log"
	"habitual/internal/metrics"
	"habitual/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadConfig((*config.Config).Validate)
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(applog.ComponentApp)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	opts := []services.Option{services.WithBackfillToday(cfg.BackfillToday)}
	if result.Publisher != nil {
		opts = append(opts, services.WithPublisher(result.Publisher))
	}

	deps := apphttp.Deps{
		Habits:             services.NewHabitService(result.Store, opts...),
		Accounts:           services.NewAccountService(result.Store, bcrypt.DefaultCost),
		Sessions:           auth.NewSessions(cfg.MaxSessions, cfg.SessionTTL, cfg.SecureCookies),
		Store:              result.Store,
		Metrics:            metrics.New(),
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	}
	if broker, ok := result.Publisher.(apphttp.HealthChecker); ok {
		deps.Broker = broker
	}
	srv := apphttp.NewServer(":"+cfg.Port, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting habitual server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", result.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
