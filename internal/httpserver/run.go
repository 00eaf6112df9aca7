package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/janitord/janitor/internal/api"
	"github.com/janitord/janitor/pkg/health"
)

// Run starts the HTTP server and blocks until a shutdown signal (SIGINT,
// SIGTERM) arrives or Stop is called programmatically.
//
// Returns nil on clean shutdown, or an error if the server fails to start,
// a startup hook fails, or shutdown hooks report errors.
func (a *App) Run() error {
	logger := a.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	a.setupRoutes()

	baseCtx := a.baseCtx
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(baseCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return err
	}
	a.listener = ln

	for _, hook := range a.startupHooks {
		if err := hook(ctx); err != nil {
			ln.Close()
			return fmt.Errorf("startup hook failed: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	case <-a.done:
	}

	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer shutdownCancel()

	var errs []error

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	for _, hook := range a.shutdownHooks {
		if err := hook(shutdownCtx); err != nil {
			errs = append(errs, err)
			logger.Error("shutdown hook failed", slog.Any("error", err))
		}
	}

	if len(errs) > 0 {
		logger.Error("shutdown completed with errors")
		return errors.Join(errs...)
	}

	logger.Info("shutdown completed")
	return nil
}

// Stop triggers graceful shutdown programmatically. Safe to call more than
// once.
func (a *App) Stop() error {
	select {
	case <-a.done:
	default:
		close(a.done)
	}
	return nil
}

func (a *App) setupRoutes() {
	deps := api.Deps{
		Logger:  a.logger,
		OnError: a.handleError,
	}
	r := &api.RouterAdapter{Chi: a.router, Deps: deps}

	if a.notFoundHandler != nil {
		a.router.NotFound(r2httpHandler(r, a.notFoundHandler, deps))
	}
	if a.methodNotAllowedHandler != nil {
		a.router.MethodNotAllowed(r2httpHandler(r, a.methodNotAllowedHandler, deps))
	}

	r.Use(a.middlewares...)

	if a.healthConfig != nil {
		a.router.Get(a.healthConfig.livenessPath, health.LivenessHandler())
		a.router.Get(a.healthConfig.readinessPath, health.ReadinessHandler(a.healthConfig.checks))
	}

	for _, h := range a.handlers {
		h.Routes(r)
	}
}

// r2httpHandler adapts a bare HandlerFunc (used for NotFound/MethodNotAllowed,
// which chi wires directly rather than through Router) into an http.HandlerFunc.
func r2httpHandler(r *api.RouterAdapter, h api.HandlerFunc, deps api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		c := api.NewContext(w, req, deps.Logger)
		if err := h(c); err != nil {
			deps.OnError(c, err)
		}
	}
}

// handleError runs the configured error handler, or falls back to a plain
// 500 if none is set or the response was already written.
func (a *App) handleError(c api.Context, err error) {
	if c.Written() {
		return
	}
	if a.errorHandler != nil {
		a.errorHandler(c, err)
		return
	}
	http.Error(c.Response(), "Internal Server Error", http.StatusInternalServerError)
}
