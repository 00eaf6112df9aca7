// Package ingest implements the Result Ingestor: validates a worker's
// FinishReport, persists the run/branch/artifact state transactionally,
// and notifies the Publisher on commit.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/janitord/janitor/internal/artifact"
	coordredis "github.com/janitord/janitor/internal/coord/redis"
	"github.com/janitord/janitor/internal/metrics"
	"github.com/janitord/janitor/pkg/db"
)

// Result summarises what Finish persisted, returned to the HTTP handler for
// the response body.
type Result struct {
	RunID         string
	Code          ResultCode
	BranchesAdded int
	Artifacts     []artifact.Reference
}

// Ingestor is the Result Ingestor. It owns the transactional boundary that
// spec.md requires: run row, branch results, and queue-entry deletion all
// commit together, with the run-finished notification published only after
// that commit succeeds.
type Ingestor struct {
	pool      *pgxpool.Pool
	artifacts *artifact.Store
	redis     goredis.UniversalClient
	validate  *validator.Validate
	logger    *slog.Logger
}

// New builds an Ingestor.
func New(pool *pgxpool.Pool, artifacts *artifact.Store, redis goredis.UniversalClient, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		pool:      pool,
		artifacts: artifacts,
		redis:     redis,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

// Finish validates report, stores the accompanying artifact blobs, and
// persists everything in a single transaction before publishing a
// run-finished event. artifacts maps a logical artifact name to its
// content; callers read multipart parts into these before calling Finish.
func (in *Ingestor) Finish(ctx context.Context, runID, workerID string, report FinishReport, artifacts map[string]io.Reader) (*Result, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.IngestDuration)

	if err := in.validate.Struct(report); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if !KnownResultCodes[report.Code] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResultCode, report.Code)
	}

	refs := make([]artifact.Reference, 0, len(artifacts))
	for name, r := range artifacts {
		ref, err := in.artifacts.PutArtifact(ctx, runID, name, r)
		if err != nil {
			return nil, fmt.Errorf("ingest: store artifact %s: %w", name, err)
		}
		refs = append(refs, *ref)
	}

	logLocation, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("ingest: marshal artifact refs: %w", err)
	}

	var branchesAdded int
	err = db.WithTx(ctx, in.pool, func(tx pgx.Tx) error {
		var currentWorker, state string
		if err := tx.QueryRow(ctx, `
			SELECT worker_id, state FROM run WHERE id = $1 FOR UPDATE
		`, runID).Scan(&currentWorker, &state); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrRunNotClaimable
			}
			return err
		}
		if currentWorker != workerID || (state != "assigning" && state != "running" && state != "finishing") {
			return ErrRunNotClaimable
		}

		failureDetails, err := json.Marshal(report.FailureDetails)
		if err != nil {
			return fmt.Errorf("marshal failure details: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE run SET
				state = 'finished',
				result_code = $2,
				value_delta = $3,
				failure_details = $4,
				log_location = $5,
				finished_at = now(),
				duration = $6
			WHERE id = $1
		`, runID, string(report.Code), report.Value, nullJSON(failureDetails), string(logLocation), report.Duration()); err != nil {
			return fmt.Errorf("update run: %w", err)
		}

		// Open Question decision: success-unchanged runs never produce
		// publishable branches, so no new_result_branch row is created for
		// them even though the run itself is recorded as a success.
		if report.Code == ResultSuccess {
			for _, b := range report.Branches {
				if _, err := tx.Exec(ctx, `
					INSERT INTO new_result_branch (run_id, role, base_revision, proposed_revision, remote_branch)
					VALUES ($1, $2, $3, $4, $5)
					ON CONFLICT (run_id, role) DO UPDATE SET
						base_revision = EXCLUDED.base_revision,
						proposed_revision = EXCLUDED.proposed_revision,
						remote_branch = EXCLUDED.remote_branch
				`, runID, b.Role, b.BaseRevision, nullString(b.Revision), b.Name); err != nil {
					return fmt.Errorf("insert branch result %s: %w", b.Role, err)
				}
				branchesAdded++

				if b.Revision != "" {
					if _, err := tx.Exec(ctx, `
						INSERT INTO unpublished_branch (run_id, role)
						VALUES ($1, $2)
						ON CONFLICT (run_id, role) DO NOTHING
					`, runID, b.Role); err != nil {
						return fmt.Errorf("mark unpublished branch %s: %w", b.Role, err)
					}
				}
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM queue WHERE active_run_id = $1`, runID); err != nil {
			return fmt.Errorf("delete queue entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if in.redis != nil {
		if pubErr := coordredis.PublishRunFinished(ctx, in.redis, runID); pubErr != nil {
			in.logger.Warn("ingest: publish run-finished failed", "run_id", runID, "error", pubErr)
		}
	}

	metrics.IngestResultsTotal.WithLabelValues(string(report.Code)).Inc()
	return &Result{RunID: runID, Code: report.Code, BranchesAdded: branchesAdded, Artifacts: refs}, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
