// Package publish implements the Publisher: the per-(run, role) decision
// machine that turns an unpublished branch into a push, a merge proposal,
// or a deliberate no-op, and the background loop that keeps open proposals'
// forge-side status in sync.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/janitord/janitor/internal/coord/lock"
	"github.com/janitord/janitor/internal/forgeclient"
	"github.com/janitord/janitor/internal/metrics"
	"github.com/janitord/janitor/internal/vcsclient"
	"github.com/janitord/janitor/pkg/db"
)

// Mode is the publish mode a branch resolves to (spec.md §4.5).
type Mode string

const (
	ModePush        Mode = "push"
	ModePropose     Mode = "propose"
	ModeAttemptPush Mode = "attempt-push"
	ModePushDerived Mode = "push-derived"
	ModeBuildOnly   Mode = "build-only"
	ModeSkip        Mode = "skip"
)

// Outcome classifies what ProcessBranch did with one unpublished branch.
type Outcome string

const (
	OutcomePublished   Outcome = "published"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeCooldown    Outcome = "cooldown"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeBuildOnly   Outcome = "build_only"
)

// ErrRateLimited is returned when the branch's rate-limit bucket is at
// capacity; the caller should leave the unpublished_branch row intact for
// a later retry.
var ErrRateLimited = errors.New("publish: rate limit bucket exhausted")

// ErrCooldown is returned when the target branch was published to within
// its min_publish_interval.
var ErrCooldown = errors.New("publish: target branch in cooldown")

// unpublishedBranch is one row joining unpublished_branch with the
// new_result_branch it describes.
type unpublishedBranch struct {
	RunID            string
	Role             string
	CodebaseID       int64
	CampaignID       int64
	CodebaseName     string
	CampaignName     string
	VCSURL           string
	DefaultBranch    string
	BaseRevision     string
	ProposedRevision string
	RemoteBranch     string
	Bucket           string
	BranchScheme     string
	DefaultMode      Mode
	TitleTemplate    string
	BodyTemplate     string
}

// Publisher drives publish decisions for unpublished branches and
// maintains previously-opened merge proposals.
type Publisher struct {
	pool     *pgxpool.Pool
	redis    goredis.UniversalClient
	forge    forgeclient.Forge
	vcs      vcsclient.VCS
	lockTTL  time.Duration
	rescan   time.Duration
	template *ProposalTemplate
	logger   *slog.Logger

	backoffMu sync.Mutex
	backoff   map[string]backoffState
}

// New builds a Publisher. forge/vcs may be nil, in which case only
// build-only/skip branches can be processed — any push or propose
// attempt fails fast with forgeclient.ErrForgeUnsupported-shaped errors.
func New(pool *pgxpool.Pool, redis goredis.UniversalClient, forge forgeclient.Forge, vcs vcsclient.VCS, lockTTL, rescanInterval time.Duration, tmpl *ProposalTemplate, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		pool:     pool,
		redis:    redis,
		forge:    forge,
		vcs:      vcs,
		lockTTL:  lockTTL,
		rescan:   rescanInterval,
		template: tmpl,
		logger:   logger,
		backoff:  make(map[string]backoffState),
	}
}

// ProcessRun looks up every unpublished branch recorded against runID and
// attempts to publish each one.
func (p *Publisher) ProcessRun(ctx context.Context, runID string) error {
	branches, err := p.loadUnpublishedBranches(ctx, runID)
	if err != nil {
		return fmt.Errorf("publish: load unpublished branches for %s: %w", runID, err)
	}
	var firstErr error
	for _, b := range branches {
		if err := p.processBranch(ctx, b); err != nil {
			p.logger.Warn("publish branch failed",
				"run_id", b.RunID, "role", b.Role, "codebase", b.CodebaseName, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (p *Publisher) loadUnpublishedBranches(ctx context.Context, runID string) ([]unpublishedBranch, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT ub.run_id, ub.role,
		       cb.id, cm.id, cb.name, cm.name, cb.vcs_url, cb.default_branch,
		       nrb.base_revision, COALESCE(nrb.proposed_revision, ''), nrb.remote_branch,
		       COALESCE(NULLIF(cb.rate_limit_bucket, ''), cm.rate_limit_bucket, ''),
		       cm.branch_name_scheme, cm.default_publish_mode,
		       cm.proposal_title_template, cm.proposal_body_template
		FROM unpublished_branch ub
		JOIN new_result_branch nrb ON nrb.run_id = ub.run_id AND nrb.role = ub.role
		JOIN run r ON r.id = ub.run_id
		JOIN codebase cb ON cb.id = r.codebase_id
		JOIN campaign cm ON cm.id = r.campaign_id
		WHERE ub.run_id = $1
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []unpublishedBranch
	for rows.Next() {
		var b unpublishedBranch
		var defaultMode string
		if err := rows.Scan(&b.RunID, &b.Role, &b.CodebaseID, &b.CampaignID, &b.CodebaseName, &b.CampaignName,
			&b.VCSURL, &b.DefaultBranch, &b.BaseRevision, &b.ProposedRevision, &b.RemoteBranch,
			&b.Bucket, &b.BranchScheme, &defaultMode, &b.TitleTemplate, &b.BodyTemplate); err != nil {
			return nil, err
		}
		b.DefaultMode = Mode(defaultMode)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *Publisher) processBranch(ctx context.Context, b unpublishedBranch) error {
	mode, err := p.resolveMode(ctx, b)
	if err != nil {
		return fmt.Errorf("resolve publish mode: %w", err)
	}

	if mode == ModeSkip {
		metrics.PublishDecisionsTotal.WithLabelValues(string(mode), string(OutcomeSkipped)).Inc()
		return p.clearUnpublished(ctx, b, OutcomeSkipped)
	}
	if mode == ModeBuildOnly {
		metrics.PublishDecisionsTotal.WithLabelValues(string(mode), string(OutcomeBuildOnly)).Inc()
		return p.clearUnpublished(ctx, b, OutcomeBuildOnly)
	}

	lockKey := fmt.Sprintf("janitor:publish:%s:%s", b.forgeHost(), b.Bucket)
	held, err := lock.Acquire(ctx, p.redis, lockKey, p.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			metrics.PublishRateLimitedTotal.WithLabelValues(b.Bucket).Inc()
			return fmt.Errorf("%w: publish lock busy for bucket %s", ErrRateLimited, b.Bucket)
		}
		return fmt.Errorf("acquire publish lock: %w", err)
	}
	defer held.Release(ctx)

	if err := db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		return p.checkRateLimitAndCooldown(ctx, tx, b)
	}); err != nil {
		if errors.Is(err, ErrRateLimited) {
			metrics.PublishRateLimitedTotal.WithLabelValues(b.Bucket).Inc()
		} else {
			metrics.PublishDecisionsTotal.WithLabelValues(string(mode), string(OutcomeCooldown)).Inc()
		}
		return err
	}

	url, revision, err := p.publish(ctx, mode, b)
	if err != nil {
		return err
	}

	if err := p.recordPublish(ctx, b, mode, url, revision); err != nil {
		return err
	}
	metrics.PublishDecisionsTotal.WithLabelValues(string(mode), string(OutcomePublished)).Inc()
	return nil
}

func (b unpublishedBranch) forgeHost() string {
	return "github.com"
}

func (p *Publisher) checkRateLimitAndCooldown(ctx context.Context, tx pgx.Tx, b unpublishedBranch) error {
	if b.Bucket != "" {
		var openCount, openLimit int
		err := tx.QueryRow(ctx, `SELECT open_count, open_limit FROM rate_limit_bucket WHERE name = $1 FOR UPDATE`, b.Bucket).
			Scan(&openCount, &openLimit)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if err == nil && openLimit > 0 && openCount >= openLimit {
			return fmt.Errorf("%w: bucket %s at %d/%d", ErrRateLimited, b.Bucket, openCount, openLimit)
		}
	}

	var lastPublished time.Time
	var interval time.Duration
	err := tx.QueryRow(ctx, `
		SELECT p.published_at, COALESCE(pol.min_publish_interval, interval '0')
		FROM publish p
		JOIN campaign cm ON cm.id = $2
		LEFT JOIN policy pol ON pol.campaign_id = cm.id
		WHERE p.run_id IN (SELECT id FROM run WHERE codebase_id = $1) AND p.role = $3
		ORDER BY p.published_at DESC
		LIMIT 1
	`, b.CodebaseID, b.CampaignID, b.Role).Scan(&lastPublished, &interval)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	if interval == 0 {
		interval = time.Hour
	}
	if time.Since(lastPublished) < interval {
		return fmt.Errorf("%w: last publish %s ago, interval %s", ErrCooldown, time.Since(lastPublished), interval)
	}
	return nil
}

func (p *Publisher) clearUnpublished(ctx context.Context, b unpublishedBranch, outcome Outcome) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM unpublished_branch WHERE run_id = $1 AND role = $2`, b.RunID, b.Role)
	if err != nil {
		return fmt.Errorf("clear unpublished branch (%s): %w", outcome, err)
	}
	return nil
}

func (p *Publisher) recordPublish(ctx context.Context, b unpublishedBranch, mode Mode, resultURL, revision string) error {
	return db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		var proposalID *int64
		if resultURL != "" && (mode == ModePropose || mode == ModeAttemptPush) {
			// The bucket row must exist before merge_proposal references it by
			// name, so it is upserted first: this also guarantees the very
			// first proposal into a bucket has a row to reference.
			if b.Bucket != "" {
				if _, err := tx.Exec(ctx, `
					INSERT INTO rate_limit_bucket (name, open_count, open_limit)
					VALUES ($1, 1, 0)
					ON CONFLICT (name) DO UPDATE SET open_count = rate_limit_bucket.open_count + 1, updated_at = now()
				`, b.Bucket); err != nil {
					return fmt.Errorf("increment rate limit bucket: %w", err)
				}
			}

			var id int64
			err := tx.QueryRow(ctx, `
				INSERT INTO merge_proposal (url, codebase_id, rate_limit_bucket, target_branch_url, revision)
				VALUES ($1, $2, NULLIF($3, ''), $4, $5)
				ON CONFLICT (url) DO UPDATE SET revision = EXCLUDED.revision, last_scanned_at = now()
				RETURNING id
			`, resultURL, b.CodebaseID, b.Bucket, b.VCSURL, revision).Scan(&id)
			if err != nil {
				return fmt.Errorf("upsert merge proposal: %w", err)
			}
			proposalID = &id
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO publish (run_id, role, mode, result_url, revision, merge_proposal_id)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
			ON CONFLICT (run_id, role) DO NOTHING
		`, b.RunID, b.Role, string(mode), resultURL, revision, proposalID); err != nil {
			return fmt.Errorf("insert publish row: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM unpublished_branch WHERE run_id = $1 AND role = $2`, b.RunID, b.Role); err != nil {
			return fmt.Errorf("clear unpublished branch: %w", err)
		}
		return nil
	})
}
