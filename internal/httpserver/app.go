package httpserver

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/janitord/janitor/internal/api"
	"github.com/janitord/janitor/pkg/health"
)

// Default server timeouts (hardcoded, opinionated).
const (
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20 // 1MB
	defaultShutdownTimeout   = 30 * time.Second
)

// App orchestrates the control plane's HTTP process lifecycle: a chi router,
// global middleware, registered handlers, health endpoints, and graceful
// shutdown. App is immutable after New() returns — all configuration happens
// through Option values.
type App struct {
	baseCtx context.Context
	logger  *slog.Logger

	server   *http.Server
	router   chi.Router
	listener net.Listener

	middlewares []api.Middleware
	handlers    []api.Handler

	errorHandler            func(api.Context, error)
	notFoundHandler         api.HandlerFunc
	methodNotAllowedHandler api.HandlerFunc

	healthConfig *healthConfig

	startupHooks  []func(context.Context) error
	shutdownHooks []func(context.Context) error

	shutdownTimeout time.Duration
	done            chan struct{}
}

// healthConfig holds health check endpoint configuration.
type healthConfig struct {
	livenessPath  string
	readinessPath string
	checks        health.Checks
}

// Default health check paths.
const (
	defaultLivenessPath  = "/health/live"
	defaultReadinessPath = "/health/ready"
)

// New creates a new App with the given options. The App is immutable after
// construction; call Run to start serving.
func New(opts ...Option) *App {
	router := chi.NewRouter()

	a := &App{
		router:          router,
		shutdownTimeout: defaultShutdownTimeout,
		done:            make(chan struct{}),
		server: &http.Server{
			Addr:              ":8080",
			Handler:           router,
			ReadTimeout:       defaultReadTimeout,
			WriteTimeout:      defaultWriteTimeout,
			IdleTimeout:       defaultIdleTimeout,
			ReadHeaderTimeout: defaultReadHeaderTimeout,
			MaxHeaderBytes:    defaultMaxHeaderBytes,
		},
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Addr returns the server's listening address. Returns "" before Run starts
// listening.
func (a *App) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}
