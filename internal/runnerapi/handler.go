// Package runnerapi wires the Queue Manager, Active-Run Registry, Result
// Ingestor, Scheduler, and Publisher behind the HTTP surface spec.md §6
// describes workers and operator tooling talking to. It sits above those
// packages rather than inside any one of them because the finish path
// alone spans three: the Active-Run Registry's state machine, the Result
// Ingestor's transactional persistence, and the Publisher's reaction to a
// freshly-ingested run.
package runnerapi

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/janitord/janitor/internal/activerun"
	"github.com/janitord/janitor/internal/api"
	"github.com/janitord/janitor/internal/artifact"
	"github.com/janitord/janitor/internal/ingest"
	"github.com/janitord/janitor/internal/publish"
	"github.com/janitord/janitor/internal/queue"
	"github.com/janitord/janitor/internal/scheduler"
	"github.com/janitord/janitor/pkg/jwt"
)

// Handler implements api.Handler for every route in the Runner HTTP API
// table (spec.md §6): worker-facing assignment/heartbeat/finish and the
// administrative kill and queue/schedule/run introspection paths.
type Handler struct {
	Queue        queue.Manager
	Registry     activerun.Registry
	Ingestor     *ingest.Ingestor
	Scheduler    *scheduler.Scheduler
	Publisher    *publish.Publisher
	Artifacts    *artifact.Store
	UploadTokens *jwt.Service
	RunTokenTTL  time.Duration
	Logger       *slog.Logger

	// Pool backs the ad hoc read/mutation queries getRun and mutateRun
	// issue directly — the run/publish join they expose doesn't belong to
	// any single component's own query surface.
	Pool *pgxpool.Pool

	// AdminAuth gates the operator-facing routes (queue/schedule/run
	// introspection) with the administrative bearer-token scheme
	// (middlewares.JWT). Worker routes never carry it — they authenticate
	// via the per-run upload token minted at assignment time, checked
	// inline against the path's run id.
	AdminAuth api.Middleware
}

// Routes registers every endpoint in the Runner HTTP API table.
func (h *Handler) Routes(r api.Router) {
	r.POST("/active-runs", h.requestAssignment)
	r.GET("/active-runs", h.listActiveRuns, h.adminAuth())
	r.GET("/active-runs/{id}", h.getActiveRun, h.adminAuth())
	r.POST("/active-runs/{id}/log/{name}", h.appendLog)
	r.POST("/active-runs/{id}/finish", h.finish)
	r.POST("/active-runs/{id}/kill", h.kill, h.adminAuth())

	r.GET("/queue", h.listQueue, h.adminAuth())
	r.GET("/queue/position", h.queuePosition, h.adminAuth())

	r.POST("/schedule", h.schedule, h.adminAuth())
	r.POST("/schedule-control", h.scheduleControl, h.adminAuth())

	r.GET("/runs/{id}", h.getRun, h.adminAuth())
	r.POST("/runs/{id}", h.mutateRun, h.adminAuth())
}

// adminAuth returns AdminAuth, or a no-op passthrough if unset (e.g. in
// tests that construct a Handler directly without the full JWT service).
func (h *Handler) adminAuth() api.Middleware {
	if h.AdminAuth != nil {
		return h.AdminAuth
	}
	return func(next api.HandlerFunc) api.HandlerFunc { return next }
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}
