// Package logging wires the Janitor control plane's domain identifiers
// (run ID, codebase name) into pkg/logger's context-extractor mechanism,
// the same way middlewares.RequestIDExtractor wires the HTTP request ID.
package logging

import (
	"context"
	"log/slog"

	"github.com/janitord/janitor/pkg/logger"
)

type runIDKey struct{}
type codebaseKey struct{}

// WithRunID returns a context carrying runID for log extraction. Handlers
// and background tasks that operate on a specific run (heartbeat, finish,
// kill, reaper sweep) should derive their context with this before logging.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// WithCodebase returns a context carrying codebase name for log extraction.
// The scheduler's per-codebase recompute and the publisher's per-proposal
// work both tag their context this way.
func WithCodebase(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, codebaseKey{}, name)
}

// RunIDExtractor adds "run_id" to every log entry made with a context
// produced by WithRunID.
func RunIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v, ok := ctx.Value(runIDKey{}).(string); ok && v != "" {
			return slog.String("run_id", v), true
		}
		return slog.Attr{}, false
	}
}

// CodebaseExtractor adds "codebase" to every log entry made with a context
// produced by WithCodebase.
func CodebaseExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v, ok := ctx.Value(codebaseKey{}).(string); ok && v != "" {
			return slog.String("codebase", v), true
		}
		return slog.Attr{}, false
	}
}

// New builds janitord's process-wide logger: JSON to stdout, optionally
// fanned out to Sentry when cfg.DSN is set, always decorated with the
// run/codebase extractors plus any extra ones (such as
// middlewares.RequestIDExtractor) so every log line carries whatever
// identifiers its context has accumulated.
func New(sentryCfg logger.SentryConfig, extra ...logger.ContextExtractor) *slog.Logger {
	extractors := append([]logger.ContextExtractor{RunIDExtractor(), CodebaseExtractor()}, extra...)
	if sentryCfg.DSN == "" {
		return logger.New(extractors...)
	}
	return logger.NewWithSentry(sentryCfg, extractors...)
}
