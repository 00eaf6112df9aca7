// Package store opens the Postgres connection pool that backs every
// domain repository (queue, active-run, scheduler, ingest, publish) and
// carries the embedded schema migrations applied on startup.
package store

import (
	"context"
	"embed"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/janitord/janitor/pkg/db"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open connects to Postgres and applies pending migrations.
func Open(ctx context.Context, dsn string, logger *slog.Logger, opts ...db.Option) (*pgxpool.Pool, error) {
	opts = append([]db.Option{
		db.WithMigrations(migrations),
		db.WithLogger(logger),
	}, opts...)
	return db.Open(ctx, dsn, opts...)
}

// Healthcheck returns a health.CheckFunc that pings the pool, suitable for
// httpserver.WithReadinessCheck.
func Healthcheck(pool *pgxpool.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}
