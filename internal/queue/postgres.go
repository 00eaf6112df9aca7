package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"text/template"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/janitord/janitor/internal/metrics"
	"github.com/janitord/janitor/pkg/db"
	"github.com/janitord/janitor/pkg/id"
)

// PostgresManager is the Postgres-backed Manager implementation. Assignment
// is made race-free across replicas with SELECT ... FOR UPDATE SKIP LOCKED,
// following the claim-and-insert shape used by comparable schedulers: begin
// a transaction, lock the winning rows, write the derived state, commit.
type PostgresManager struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresManager builds a Manager backed by pool.
func NewPostgresManager(pool *pgxpool.Pool, logger *slog.Logger) *PostgresManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresManager{pool: pool, logger: logger}
}

func (m *PostgresManager) Enqueue(ctx context.Context, candidateID int64, bucket string, priority float64, estimatedDuration time.Duration, entryCtx map[string]any) (int64, error) {
	ctxJSON, err := json.Marshal(entryCtx)
	if err != nil {
		return 0, fmt.Errorf("queue: marshal context: %w", err)
	}

	var queueID int64
	err = db.WithTx(ctx, m.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO queue (candidate_id, bucket, priority, estimated_duration, context)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (candidate_id) DO UPDATE SET
				priority = GREATEST(queue.priority, EXCLUDED.priority),
				bucket = EXCLUDED.bucket,
				estimated_duration = EXCLUDED.estimated_duration,
				context = EXCLUDED.context
			RETURNING id
		`, candidateID, bucket, priority, estimatedDuration, ctxJSON)
		return row.Scan(&queueID)
	})
	if err != nil {
		return 0, fmt.Errorf("queue: enqueue candidate %d: %w", candidateID, err)
	}
	metrics.QueueEnqueuedTotal.WithLabelValues(bucket).Inc()
	return queueID, nil
}

func (m *PostgresManager) Peek(ctx context.Context, n int) ([]Entry, error) {
	rows, err := m.pool.Query(ctx, `
		SELECT q.id, c.codebase_id, c.campaign_id, q.candidate_id, q.bucket, q.priority,
		       COALESCE(q.estimated_duration, '0'), q.requeue_count, q.context, q.enqueued_at,
		       COALESCE(q.active_run_id, '')
		FROM queue q
		JOIN candidate c ON c.id = q.candidate_id
		WHERE q.active_run_id IS NULL
		ORDER BY q.bucket, q.priority DESC, q.enqueued_at ASC
		LIMIT $1
	`, n)
	if err != nil {
		return nil, fmt.Errorf("queue: peek: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var rawCtx []byte
		if err := rows.Scan(&e.ID, &e.CodebaseID, &e.CampaignID, &e.CandidateID, &e.Bucket,
			&e.Priority, &e.EstimatedDuration, &e.RequeueCount, &rawCtx, &e.EnqueuedAt, &e.ActiveRunID); err != nil {
			return nil, fmt.Errorf("queue: scan entry: %w", err)
		}
		if len(rawCtx) > 0 {
			if err := json.Unmarshal(rawCtx, &e.Context); err != nil {
				return nil, fmt.Errorf("queue: unmarshal entry context: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// candidateRow is the set of columns needed to build an AssignmentBundle
// for a claimed queue entry.
type candidateRow struct {
	queueID          int64
	codebaseID       int64
	codebaseName     string
	vcsURL           string
	branch           string
	subpath          string
	campaignID       int64
	campaignName     string
	commandTemplate  string
	workerCapsNeeded []string
	candidateCtx     map[string]any
	bucket           string
	priority         float64
	enqueuedAt       time.Time
}

// Assign claims the highest-priority entry whose codebase has no run in
// flight and whose campaign's capability requirements the worker satisfies.
// The claim, the active-run guard, and the run row insert happen inside one
// transaction so two workers racing on assign never win the same entry.
func (m *PostgresManager) Assign(ctx context.Context, workerID string, capabilities WorkerCapabilities, jenkinsLink string) (*AssignmentBundle, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.QueueAssignDuration)

	var bundle *AssignmentBundle

	err := db.WithTx(ctx, m.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT q.id, c.codebase_id, cb.name, cb.vcs_url, cb.default_branch, cb.subpath,
			       c.campaign_id, cm.name, cm.command_template, cm.worker_capabilities, c.context,
			       q.bucket, q.priority, q.enqueued_at
			FROM queue q
			JOIN candidate c ON c.id = q.candidate_id
			JOIN codebase cb ON cb.id = c.codebase_id
			JOIN campaign cm ON cm.id = c.campaign_id
			WHERE q.active_run_id IS NULL
			  AND cb.inactive = FALSE
			  AND NOT EXISTS (
			      SELECT 1 FROM run r
			      WHERE r.codebase_id = cb.id AND r.state IN ('assigning', 'running', 'finishing')
			  )
			ORDER BY q.bucket, q.priority DESC, q.enqueued_at ASC
			FOR UPDATE OF q SKIP LOCKED
		`)
		if err != nil {
			return fmt.Errorf("claim candidates: %w", err)
		}

		var candidates []candidateRow
		for rows.Next() {
			var row candidateRow
			var rawCtx []byte
			if err := rows.Scan(&row.queueID, &row.codebaseID, &row.codebaseName, &row.vcsURL,
				&row.branch, &row.subpath, &row.campaignID, &row.campaignName, &row.commandTemplate,
				&row.workerCapsNeeded, &rawCtx, &row.bucket, &row.priority, &row.enqueuedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scan candidate: %w", err)
			}
			if len(rawCtx) > 0 {
				if err := json.Unmarshal(rawCtx, &row.candidateCtx); err != nil {
					rows.Close()
					return fmt.Errorf("unmarshal candidate context: %w", err)
				}
			}
			candidates = append(candidates, row)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate candidates: %w", err)
		}

		picked := pickEligible(candidates, capabilities)
		if picked == nil {
			return ErrNoWork
		}

		runID := id.NewULID()
		command, err := expandCommand(picked.commandTemplate, picked.candidateCtx)
		if err != nil {
			return fmt.Errorf("expand command template: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO run (id, codebase_id, campaign_id, queue_id, worker_id, worker_capabilities, jenkins_link, state, assigned_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 'assigning', now())
		`, runID, picked.codebaseID, picked.campaignID, picked.queueID, workerID, []string(capabilities), nullableString(jenkinsLink)); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE queue SET active_run_id = $1 WHERE id = $2`, runID, picked.queueID); err != nil {
			return fmt.Errorf("mark queue entry assigned: %w", err)
		}

		bundle = &AssignmentBundle{
			RunID:            runID,
			CodebaseID:       picked.codebaseID,
			CodebaseName:     picked.codebaseName,
			VCSURL:           picked.vcsURL,
			Branch:           picked.branch,
			Command:          command,
			CandidateContext: picked.candidateCtx,
			UploadToken:      runID,
			QueueID:          picked.queueID,
			CampaignID:       picked.campaignID,
			CampaignName:     picked.campaignName,
		}
		return nil
	})
	if errors.Is(err, ErrNoWork) {
		return nil, ErrNoWork
	}
	if err != nil {
		return nil, fmt.Errorf("queue: assign worker %s: %w", workerID, err)
	}
	return bundle, nil
}

// pickEligible orders candidates by (bucket, -priority, enqueue-time),
// breaking exact ties with a stable hash of the codebase name so repeated
// assignment passes converge on the same winner instead of depending on
// Postgres' unspecified row order for ties, then returns the first entry
// whose capability requirements the worker satisfies.
func pickEligible(candidates []candidateRow, capabilities WorkerCapabilities) *candidateRow {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.bucket != b.bucket {
			return a.bucket < b.bucket
		}
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		if !a.enqueuedAt.Equal(b.enqueuedAt) {
			return a.enqueuedAt.Before(b.enqueuedAt)
		}
		return stableHash(a.codebaseName) < stableHash(b.codebaseName)
	})

	for i := range candidates {
		if capabilities.Satisfies(candidates[i].workerCapsNeeded) {
			return &candidates[i]
		}
	}
	return nil
}

// stableHash is used to break exact (bucket, priority, enqueued_at) ties
// deterministically across scheduling passes.
func stableHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func expandCommand(tmpl string, candidateCtx map[string]any) (string, error) {
	t, err := template.New("command").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, candidateCtx); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (m *PostgresManager) Drop(ctx context.Context, queueID int64) error {
	tag, err := m.pool.Exec(ctx, `DELETE FROM queue WHERE id = $1 AND active_run_id IS NULL`, queueID)
	if err != nil {
		return fmt.Errorf("queue: drop %d: %w", queueID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Manager = (*PostgresManager)(nil)
