package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tutoria/dashboard/pkg/apiclient"
	"github.com/tutoria/dashboard/pkg/config"
	"github.com/tutoria/dashboard/pkg/dashboard"
	"github.com/tutoria/dashboard/pkg/middleware"
	"github.com/tutoria/dashboard/pkg/observability"
	"github.com/tutoria/dashboard/pkg/pages"
	"github.com/tutoria/dashboard/pkg/session"
)

func main() {
	configPath := flag.String("config", os.Getenv("TUTORIA_CONFIG"), "Path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).WithField("service", "tutoria-dashboard")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("dashboard stopped")
		os.Exit(1)
	}
}

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Endpoint:       cfg.Observability.TracingEndpoint,
		Insecure:       cfg.Observability.TracingInsecure,
		ServiceName:    "tutoria-dashboard",
		ServiceVersion: version,
		SampleRatio:    cfg.Observability.TracingSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.WithError(err).Warn("failed to flush traces")
		}
	}()

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	storage, err := session.OpenStorage(ctx, session.StorageConfig{
		Driver:      cfg.Session.Storage,
		Path:        cfg.Session.Path,
		RedisURL:    cfg.Session.RedisURL,
		RedisPrefix: cfg.Session.RedisPrefix,
	})
	if err != nil {
		return fmt.Errorf("failed to open session storage: %w", err)
	}
	defer storage.Close()
	logger.WithField("driver", cfg.Session.Storage).Info("session storage opened")

	client := apiclient.New(apiclient.Config{
		ManagementURL:      cfg.API.ManagementURL,
		AuthURL:            cfg.API.AuthURL,
		AIURL:              cfg.API.AIURL,
		Timeout:            cfg.API.Timeout,
		MaxRefreshFailures: cfg.API.MaxRefreshFailures,
		Logger:             logger,
		Metrics:            metrics,
	})
	store := session.New(session.Options{
		Client:  client,
		Storage: storage,
		Logger:  logger,
		Metrics: metrics,
	})

	health := observability.NewHealthChecker()
	health.Register("session", func(context.Context) error {
		if store.Loading() {
			return errors.New("session is still loading")
		}
		return nil
	})
	if pinger, ok := storage.(interface{ Ping(context.Context) error }); ok {
		health.Register("session_storage", pinger.Ping)
	}

	var ruleOpts []pages.Option
	if cfg.Authz.PageDefaultDeny {
		ruleOpts = append(ruleOpts, pages.WithDefaultDeny())
	}

	srv := dashboard.NewServer(dashboard.Options{
		Client:       client,
		Sessions:     store,
		Rules:        pages.NewRules(ruleOpts...),
		LoginLimiter: loginLimiter(ctx, cfg, storage),
		Logger:       logger,
		Metrics:      metrics,
		Health:       health,
	})

	return srv.Run(ctx, dashboard.HTTPConfig{
		Addr:            cfg.Server.Addr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Startup: func(ctx context.Context) error {
			return startSession(ctx, cfg, store, logger)
		},
	})
}

// startSession restores the persisted session while the server already
// answers with the loading state, then keeps it alive until ctx is done
func startSession(ctx context.Context, cfg *config.Config, store *session.Store, logger *observability.Logger) error {
	restoreCtx, cancel := context.WithTimeout(ctx, cfg.API.Timeout)
	err := store.Restore(restoreCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	logger.WithField("state", store.State().String()).Info("session restored")

	if err := store.WatchStorage(ctx); err != nil {
		logger.WithError(err).Warn("not following session storage changes")
	}

	if cfg.Session.RefreshEnabled {
		refresher := session.NewRefresher(store, cfg.Session.RefreshSchedule)
		if err := refresher.Start(); err != nil {
			return err
		}
		defer func() {
			<-refresher.Stop().Done()
		}()
	}

	<-ctx.Done()
	return nil
}

// loginLimiter shares login throttling through Redis when sessions live
// there, so every dashboard in front of the same store counts together
func loginLimiter(ctx context.Context, cfg *config.Config, storage session.Storage) middleware.Limiter {
	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Session.LoginRateLimit,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.Session.LoginBurst,
	}

	if rs, ok := storage.(*session.RedisStorage); ok {
		return middleware.NewDistributedRateLimiter(rs.Client(), limits, cfg.Session.RedisPrefix+":ratelimit")
	}

	limiter := middleware.NewRateLimiter(limits)
	limiter.StartCleanup(ctx)
	return limiter
}
