package activerun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/janitord/janitor/pkg/db"
)

// PostgresRegistry is the Postgres-backed Registry implementation.
type PostgresRegistry struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresRegistry builds a Registry backed by pool.
func NewPostgresRegistry(pool *pgxpool.Pool, logger *slog.Logger) *PostgresRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRegistry{pool: pool, logger: logger}
}

func (r *PostgresRegistry) Get(ctx context.Context, runID string) (*Run, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, codebase_id, campaign_id, COALESCE(queue_id, 0), worker_id, worker_capabilities,
		       COALESCE(jenkins_link, ''), state, assigned_at, started_at, last_heartbeat_at,
		       finished_at, cancel_requested
		FROM run WHERE id = $1
	`, runID)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("activerun: get %s: %w", runID, err)
	}
	return run, nil
}

func (r *PostgresRegistry) List(ctx context.Context, activeOnly bool) ([]Run, error) {
	query := `
		SELECT id, codebase_id, campaign_id, COALESCE(queue_id, 0), worker_id, worker_capabilities,
		       COALESCE(jenkins_link, ''), state, assigned_at, started_at, last_heartbeat_at,
		       finished_at, cancel_requested
		FROM run
	`
	if activeOnly {
		query += ` WHERE state IN ('assigning', 'running', 'finishing')`
	}
	query += ` ORDER BY assigned_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("activerun: list: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("activerun: scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	if err := row.Scan(&run.ID, &run.CodebaseID, &run.CampaignID, &run.QueueID, &run.WorkerID,
		&run.WorkerCapabilities, &run.JenkinsLink, &run.State, &run.AssignedAt, &run.StartedAt,
		&run.LastHeartbeatAt, &run.FinishedAt, &run.CancelRequested); err != nil {
		return nil, err
	}
	return &run, nil
}

// Heartbeat advances an Assigning run to Running on first contact and
// stamps last_heartbeat_at unconditionally, guarded by a state check so a
// heartbeat arriving after the run has already reached a terminal state
// is rejected rather than silently resurrecting it.
func (r *PostgresRegistry) Heartbeat(ctx context.Context, runID string) (bool, error) {
	var cancelRequested bool
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var state State
		if err := tx.QueryRow(ctx, `SELECT state, cancel_requested FROM run WHERE id = $1 FOR UPDATE`, runID).
			Scan(&state, &cancelRequested); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		switch state {
		case StateAssigning:
			if _, err := tx.Exec(ctx, `
				UPDATE run SET state = $2, started_at = now(), last_heartbeat_at = now() WHERE id = $1
			`, runID, StateRunning); err != nil {
				return err
			}
		case StateRunning:
			if _, err := tx.Exec(ctx, `UPDATE run SET last_heartbeat_at = now() WHERE id = $1`, runID); err != nil {
				return err
			}
		default:
			return ErrConflict
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return cancelRequested, nil
}

func (r *PostgresRegistry) BeginFinishing(ctx context.Context, runID string) error {
	return r.transition(ctx, runID, StateFinishing, StateAssigning, StateRunning)
}

func (r *PostgresRegistry) Finish(ctx context.Context, runID string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE run SET state = $2, finished_at = now(),
			       duration = now() - assigned_at
			WHERE id = $1 AND state = $3
		`, runID, StateFinished, StateFinishing)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		_, err = tx.Exec(ctx, `DELETE FROM queue WHERE active_run_id = $1`, runID)
		return err
	})
}

func (r *PostgresRegistry) Kill(ctx context.Context, runID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE run SET cancel_requested = TRUE WHERE id = $1 AND state IN ('assigning', 'running', 'finishing')
	`, runID)
	if err != nil {
		return fmt.Errorf("activerun: kill %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// transition moves runID to `to` iff its current state is one of `from`,
// using a single conditional UPDATE so the check-then-set is atomic
// without a separate row lock.
func (r *PostgresRegistry) transition(ctx context.Context, runID string, to State, from ...State) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE run SET state = $2 WHERE id = $1 AND state = ANY($3)
	`, runID, to, stateStrings(from))
	if err != nil {
		return fmt.Errorf("activerun: transition %s to %s: %w", runID, to, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func stateStrings(states []State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

// ReapTimedOut moves any assigning or running run whose last_heartbeat_at
// (or, lacking one, its assigned_at) is older than timeout to TimedOut,
// and re-queues its queue entry with an incremented requeue count. When
// that count would reach maxAttempts the entry is deleted instead, so an
// entry is re-queued at most maxAttempts-1 times.
func (r *PostgresRegistry) ReapTimedOut(ctx context.Context, timeout time.Duration, maxAttempts int) (int, error) {
	var reaped int
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, queue_id FROM run
			WHERE state IN ('assigning', 'running')
			  AND COALESCE(last_heartbeat_at, assigned_at) < now() - $1::interval
			FOR UPDATE SKIP LOCKED
		`, timeout)
		if err != nil {
			return fmt.Errorf("select stale runs: %w", err)
		}

		type stale struct {
			runID   string
			queueID int64
		}
		var candidates []stale
		for rows.Next() {
			var s stale
			if err := rows.Scan(&s.runID, &s.queueID); err != nil {
				rows.Close()
				return fmt.Errorf("scan stale run: %w", err)
			}
			candidates = append(candidates, s)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, c := range candidates {
			if _, err := tx.Exec(ctx, `
				UPDATE run SET state = $2, finished_at = now() WHERE id = $1
			`, c.runID, StateTimedOut); err != nil {
				return fmt.Errorf("mark %s timed out: %w", c.runID, err)
			}

			var requeueCount int
			err := tx.QueryRow(ctx, `
				SELECT requeue_count FROM queue WHERE id = $1
			`, c.queueID).Scan(&requeueCount)
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("read requeue count for queue %d: %w", c.queueID, err)
			}

			if requeueCount+1 >= maxAttempts {
				if _, err := tx.Exec(ctx, `DELETE FROM queue WHERE id = $1`, c.queueID); err != nil {
					return fmt.Errorf("drop exhausted queue entry %d: %w", c.queueID, err)
				}
			} else {
				if _, err := tx.Exec(ctx, `
					UPDATE queue SET active_run_id = NULL, requeue_count = requeue_count + 1 WHERE id = $1
				`, c.queueID); err != nil {
					return fmt.Errorf("requeue %d: %w", c.queueID, err)
				}
			}
			reaped++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("activerun: reap timed out runs: %w", err)
	}
	return reaped, nil
}

var _ Registry = (*PostgresRegistry)(nil)
