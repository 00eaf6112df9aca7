// Package scheduler implements the Scheduler: the periodic recompute of
// candidate priorities into queue entries, and the administrative
// POST /schedule(-control) paths that feed the same pipeline on demand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/janitord/janitor/internal/ingest"
	"github.com/janitord/janitor/internal/metrics"
	"github.com/janitord/janitor/pkg/db"
)

// ErrUnknownPair is returned when Schedule is asked to recompute a
// (codebase, campaign) pair that has no candidate row.
var ErrUnknownPair = errors.New("scheduler: no candidate for codebase/campaign pair")

// Scheduler recomputes queue entries from candidates, campaign policy, and
// each pair's most recent run.
type Scheduler struct {
	pool     *pgxpool.Pool
	redis    goredis.UniversalClient
	cooldown time.Duration
	logger   *slog.Logger
}

// New builds a Scheduler. cooldown is the minimum time between two
// recomputes of the same (codebase, campaign) pair absent a
// POST /schedule-control bypass.
func New(pool *pgxpool.Pool, redis goredis.UniversalClient, cooldown time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{pool: pool, redis: redis, cooldown: cooldown, logger: logger}
}

type candidateRow struct {
	id                 int64
	codebaseID         int64
	campaignID         int64
	codebaseName       string
	campaignName       string
	value              float64
	bucket             string
	lastResultCode     *ingest.ResultCode
	lastAssignedAt     *time.Time
	rateLimitOpenCount int
}

// Recompute runs a full recompute pass across every candidate, upserting a
// queue entry for each pair whose cooldown has elapsed. It is registered as
// a periodic task via RecomputeTask.
func (s *Scheduler) Recompute(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulerRecomputeDuration)

	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.codebase_id, c.campaign_id, cb.name, cm.name, c.value,
		       COALESCE(NULLIF(cb.rate_limit_bucket, ''), cm.rate_limit_bucket, ''),
		       lr.result_code, lr.assigned_at,
		       COALESCE(rlb.open_count, 0)
		FROM candidate c
		JOIN codebase cb ON cb.id = c.codebase_id
		JOIN campaign cm ON cm.id = c.campaign_id
		LEFT JOIN LATERAL (
			SELECT result_code, assigned_at FROM run
			WHERE codebase_id = c.codebase_id AND campaign_id = c.campaign_id
			ORDER BY assigned_at DESC LIMIT 1
		) lr ON TRUE
		LEFT JOIN rate_limit_bucket rlb ON rlb.name = COALESCE(NULLIF(cb.rate_limit_bucket, ''), cm.rate_limit_bucket)
		WHERE cb.inactive = FALSE
	`)
	if err != nil {
		return fmt.Errorf("scheduler: query candidates: %w", err)
	}
	defer rows.Close()

	var pairs []candidateRow
	for rows.Next() {
		var row candidateRow
		var code *string
		if err := rows.Scan(&row.id, &row.codebaseID, &row.campaignID, &row.codebaseName,
			&row.campaignName, &row.value, &row.bucket, &code, &row.lastAssignedAt,
			&row.rateLimitOpenCount); err != nil {
			return fmt.Errorf("scheduler: scan candidate: %w", err)
		}
		if code != nil {
			rc := ingest.ResultCode(*code)
			row.lastResultCode = &rc
		}
		pairs = append(pairs, row)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, row := range pairs {
		metrics.SchedulerCandidatesTotal.WithLabelValues(row.codebaseName).Inc()
		if err := s.recomputeOne(ctx, row, false); err != nil {
			s.logger.Error("scheduler: recompute candidate failed",
				"codebase", row.codebaseName, "campaign", row.campaignName, "error", err)
		}
	}
	return nil
}

// Schedule is the administrative path behind POST /schedule and
// POST /schedule-control: recompute a single (codebase, campaign) pair.
// bypassCooldown, set by the -control variant, additionally clears the
// Redis cooldown key so the pair is eligible immediately.
func (s *Scheduler) Schedule(ctx context.Context, codebaseName, campaignName string, bypassCooldown bool) error {
	var row candidateRow
	var code *string
	err := s.pool.QueryRow(ctx, `
		SELECT c.id, c.codebase_id, c.campaign_id, cb.name, cm.name, c.value,
		       COALESCE(NULLIF(cb.rate_limit_bucket, ''), cm.rate_limit_bucket, ''),
		       lr.result_code, lr.assigned_at,
		       COALESCE(rlb.open_count, 0)
		FROM candidate c
		JOIN codebase cb ON cb.id = c.codebase_id
		JOIN campaign cm ON cm.id = c.campaign_id
		LEFT JOIN LATERAL (
			SELECT result_code, assigned_at FROM run
			WHERE codebase_id = c.codebase_id AND campaign_id = c.campaign_id
			ORDER BY assigned_at DESC LIMIT 1
		) lr ON TRUE
		LEFT JOIN rate_limit_bucket rlb ON rlb.name = COALESCE(NULLIF(cb.rate_limit_bucket, ''), cm.rate_limit_bucket)
		WHERE cb.name = $1 AND cm.name = $2
	`, codebaseName, campaignName).Scan(&row.id, &row.codebaseID, &row.campaignID, &row.codebaseName,
		&row.campaignName, &row.value, &row.bucket, &code, &row.lastAssignedAt, &row.rateLimitOpenCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUnknownPair
	}
	if err != nil {
		return fmt.Errorf("scheduler: lookup %s/%s: %w", codebaseName, campaignName, err)
	}
	if code != nil {
		rc := ingest.ResultCode(*code)
		row.lastResultCode = &rc
	}

	if bypassCooldown && s.redis != nil {
		if err := s.redis.Del(ctx, cooldownKey(codebaseName, campaignName)).Err(); err != nil {
			return fmt.Errorf("scheduler: clear cooldown: %w", err)
		}
	}

	return s.recomputeOne(ctx, row, bypassCooldown)
}

func (s *Scheduler) recomputeOne(ctx context.Context, row candidateRow, bypassCooldown bool) error {
	if !bypassCooldown && s.cooldownActive(ctx, row.codebaseName, row.campaignName) {
		return nil
	}

	policy := defaultPolicy
	if row.lastResultCode != nil {
		policy = classify(*row.lastResultCode)
	}

	priority := row.value + policy.BucketShift - float64(row.rateLimitOpenCount)
	delay := policy.RequeueDelay
	if row.lastAssignedAt != nil && delay > 0 {
		readyAt := row.lastAssignedAt.Add(delay)
		if time.Now().Before(readyAt) {
			return nil
		}
	}

	var queueID int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO queue (candidate_id, bucket, priority, context)
			VALUES ($1, $2, $3, '{}'::jsonb)
			ON CONFLICT (candidate_id) DO UPDATE SET
				priority = GREATEST(queue.priority, EXCLUDED.priority)
			RETURNING id
		`, row.id, row.bucket, priority).Scan(&queueID)
	})
	if err != nil {
		return fmt.Errorf("scheduler: upsert queue entry for candidate %d: %w", row.id, err)
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, cooldownKey(row.codebaseName, row.campaignName), time.Now().UTC().Format(time.RFC3339), s.cooldown).Err(); err != nil {
			s.logger.Warn("scheduler: set cooldown key failed", "error", err)
		}
	}
	return nil
}

func (s *Scheduler) cooldownActive(ctx context.Context, codebase, campaign string) bool {
	if s.redis == nil || s.cooldown <= 0 {
		return false
	}
	_, err := s.redis.Get(ctx, cooldownKey(codebase, campaign)).Result()
	return err == nil
}

func cooldownKey(codebase, campaign string) string {
	return fmt.Sprintf("janitor:schedule-cooldown:%s:%s", codebase, campaign)
}
