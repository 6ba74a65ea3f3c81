package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sujalbistaa/payboard/internal/auth"
	"github.com/sujalbistaa/payboard/internal/config"
	"github.com/sujalbistaa/payboard/internal/db"
	routes "github.com/sujalbistaa/payboard/internal/http"
	"github.com/sujalbistaa/payboard/internal/metrics"
	"github.com/sujalbistaa/payboard/internal/reports"
	"github.com/sujalbistaa/payboard/internal/salaries"
	"github.com/sujalbistaa/payboard/internal/tracing"
	"github.com/sujalbistaa/payboard/internal/version"
	"github.com/sujalbistaa/payboard/internal/voting"
	"github.com/sujalbistaa/payboard/internal/ws"
)

const (
	limiterSweepInterval = 10 * time.Minute
	limiterIdleTTL       = 30 * time.Minute
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Run: func(cmd *cobra.Command, args []string) {
			serveRun(cmd, args, configFromCommand(cmd))
		},
	}
}

func serveRun(cmd *cobra.Command, _ []string, cfg *config.Config) {
	logger := commonRun()
	if err := serve(cmd.Context(), cfg, logger); err != nil {
		logger.Error(err.Error(), "component", programName)
		os.Exit(1)
	}
}

func serve(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		Enabled: cfg.Tracing,
		Stdout:  cfg.TracingStdout,
		Version: version.Version,
	})
	if err != nil {
		return err
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		return fmt.Errorf("failed to configure token verification: %w", err)
	}

	database, err := db.Open(db.Config{
		URL:          cfg.DatabaseURL,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close(database)

	logger.Info("running database migrations", "component", "db")
	if err := db.Migrate(ctx, database); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	hub := ws.NewHub(logger, cfg.CORSOrigins...)
	go hub.Run(ctx)

	env := &routes.Env{
		DB:       database,
		Hub:      hub,
		Salaries: salaries.NewStore(database, m),
		Ledger: voting.NewLedger(database, cfg,
			voting.WithMetrics(m),
			voting.WithPublisher(hub),
			voting.WithLogger(logger),
		),
		Reports: reports.NewService(database, cfg,
			reports.WithMetrics(m),
			reports.WithPublisher(hub),
			reports.WithLogger(logger),
		),
		Logger: logger,
	}

	limiter := routes.NewIPRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	go limiter.Cleanup(ctx, limiterSweepInterval, limiterIdleTTL)

	if !globalFlags.debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewRouter(env, routes.Options{
		Verifier:    verifier,
		CORSOrigins: cfg.CORSOrigins,
		Limiter:     limiter,
		Metrics:     m,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	servers := []*http.Server{srv}
	errCh := make(chan error, 2)

	go func() {
		logger.Info("server listening", "component", "http", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	if cfg.MetricsPort > 0 {
		metricsSrv := &http.Server{
			Addr:              cfg.MetricsAddr(),
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		servers = append(servers, metricsSrv)
		go func() {
			logger.Info("metrics listening", "component", "metrics", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics listen: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down server", "component", programName)
	case runErr = <-errCh:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDuration())
	defer cancel()
	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", "component", programName, "addr", s.Addr, "error", err)
		}
	}
	select {
	case <-hub.Done():
	case <-shutdownCtx.Done():
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("failed to flush traces", "component", "tracing", "error", err)
	}
	logger.Info("server exiting", "component", programName)
	return runErr
}
