package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/tutoria/dashboard/pkg/apiclient"
	"github.com/tutoria/dashboard/pkg/guard"
	"github.com/tutoria/dashboard/pkg/httputil"
	"github.com/tutoria/dashboard/pkg/middleware"
	"github.com/tutoria/dashboard/pkg/observability"
	"github.com/tutoria/dashboard/pkg/pages"
	"github.com/tutoria/dashboard/pkg/rbac"
	"github.com/tutoria/dashboard/pkg/session"
)

// maxBodyBytes bounds request bodies; the largest are prompt rewrites
const maxBodyBytes = 1 << 20

// Options wires a Server
type Options struct {
	Client   *apiclient.Client
	Sessions *session.Store

	// Rules and Checker default to the built-in tables
	Rules   *pages.Rules
	Checker *rbac.Checker

	// LoginLimiter throttles POST /login; nil disables throttling
	LoginLimiter middleware.Limiter

	Logger  *observability.Logger
	Metrics *observability.Metrics
	Health  *observability.HealthChecker
}

// Server serves the dashboard page views and session endpoints for the
// signed-in operator
type Server struct {
	client      *apiclient.Client
	sessions    *session.Store
	rules       *pages.Rules
	checker     *rbac.Checker
	guards      *guard.Evaluator
	permissions *rbac.PermissionMiddleware
	limiter     middleware.Limiter
	logger      *observability.Logger
	metrics     *observability.Metrics
	health      *observability.HealthChecker
	router      *mux.Router
	handler     http.Handler
}

// NewServer creates a Server with its routes
func NewServer(opts Options) *Server {
	if opts.Rules == nil {
		opts.Rules = pages.DefaultRules()
	}
	if opts.Checker == nil {
		opts.Checker = rbac.DefaultChecker()
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	if opts.Health == nil {
		opts.Health = observability.NewHealthChecker()
	}

	s := &Server{
		client:      opts.Client,
		sessions:    opts.Sessions,
		rules:       opts.Rules,
		checker:     opts.Checker,
		guards:      guard.NewEvaluator(opts.Checker, opts.Metrics),
		permissions: rbac.NewPermissionMiddleware(opts.Checker, opts.Metrics),
		limiter:     opts.LoginLimiter,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		health:      opts.Health,
		router:      mux.NewRouter(),
	}
	s.setupRoutes()
	s.handler = s.buildHandler()
	return s
}

// Handler returns the router wrapped in the request middleware chain and
// tracing
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) buildHandler() http.Handler {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(maxBodyBytes),
	)
	return otelhttp.NewHandler(chain(s.router), "tutoria-dashboard")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// HTTPConfig holds the listener settings used by Run
type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Startup runs alongside the server once the listener accepts
	// connections, typically restoring the session. Requests made before it
	// finishes see the loading state. A non-nil error stops the server.
	Startup func(ctx context.Context) error
}

// Run listens on cfg.Addr and serves until ctx is done
func (s *Server) Run(ctx context.Context, cfg HTTPConfig) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}
	return s.Serve(ctx, ln, cfg)
}

// Serve serves on ln until ctx is done or Startup fails, then shuts down
// gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener, cfg HTTPConfig) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.WithField("addr", ln.Addr().String()).Info("dashboard listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dashboard server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down dashboard")
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Startup != nil {
		g.Go(func() error {
			return cfg.Startup(ctx)
		})
	}
	return g.Wait()
}

// routeLabel keeps metric labels bounded by using the route template
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
