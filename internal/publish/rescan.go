package publish

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/janitord/janitor/internal/forgeclient"
	"github.com/janitord/janitor/pkg/db"
)

// backoffState tracks a rate-limit bucket's exponential backoff after
// repeated forge-level rate-limiting (spec.md §4.5's proposal maintenance
// loop: "on repeated forge-level rate-limiting, back off exponentially
// with jitter per bucket").
type backoffState struct {
	until  time.Time
	streak int
}

const (
	backoffBase = 30 * time.Second
	backoffCap  = 30 * time.Minute
)

// proposalRow is one open merge proposal candidate for rescanning.
type proposalRow struct {
	id         int64
	url        string
	bucket     string
	codebaseID int64
	campaignID int64
}

// Rescan enumerates open proposals whose last_scanned_at has gone stale
// and queries their forge for current status, updating each proposal's
// status and detecting the need for a post-merge or post-rebase
// follow-up run. Registered as a periodic task via RescanTask.
func (p *Publisher) Rescan(ctx context.Context) error {
	if p.forge == nil {
		return nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT mp.id, mp.url, COALESCE(mp.rate_limit_bucket, ''), mp.codebase_id,
		       COALESCE((SELECT pub.run_id FROM publish pub
		                 JOIN run r ON r.id = pub.run_id
		                 WHERE pub.merge_proposal_id = mp.id
		                 ORDER BY pub.published_at DESC LIMIT 1), '') AS last_run_id
		FROM merge_proposal mp
		WHERE mp.status = 'open'
		  AND mp.last_scanned_at < now() - $1::interval
		ORDER BY mp.last_scanned_at ASC
	`, p.rescan)
	if err != nil {
		return fmt.Errorf("publish: rescan query: %w", err)
	}

	var candidates []proposalRow
	for rows.Next() {
		var row proposalRow
		var lastRunID string
		if err := rows.Scan(&row.id, &row.url, &row.bucket, &row.codebaseID, &lastRunID); err != nil {
			rows.Close()
			return fmt.Errorf("publish: rescan scan: %w", err)
		}
		candidates = append(candidates, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, row := range candidates {
		if err := p.rescanOne(ctx, row); err != nil {
			p.logger.Warn("publish: rescan proposal failed", "url", row.url, "error", err)
		}
	}
	return nil
}

func (p *Publisher) rescanOne(ctx context.Context, row proposalRow) error {
	if row.bucket != "" && p.bucketBackingOff(row.bucket) {
		return nil
	}

	proposal, err := p.forge.ProposalStatus(ctx, row.url)
	if err != nil {
		if errors.Is(err, forgeclient.ErrProposalNotFound) {
			return p.markAbandoned(ctx, row)
		}
		p.recordTransientFailure(row.bucket)
		return fmt.Errorf("query forge status for %s: %w", row.url, err)
	}
	p.clearBackoff(row.bucket)

	switch proposal.Status {
	case forgeclient.ProposalMerged:
		return p.markTerminal(ctx, row, forgeclient.ProposalMerged, true)
	case forgeclient.ProposalClosed:
		return p.markTerminal(ctx, row, forgeclient.ProposalClosed, false)
	case forgeclient.ProposalNeedsRebase:
		return p.markNeedsRebase(ctx, row)
	default:
		_, err := p.pool.Exec(ctx, `UPDATE merge_proposal SET last_scanned_at = now() WHERE id = $1`, row.id)
		return err
	}
}

// markAbandoned records a PermanentBackendError per spec.md §7: the forge
// authoritatively reports the proposal gone, so it is never retried.
func (p *Publisher) markAbandoned(ctx context.Context, row proposalRow) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE merge_proposal SET status = 'abandoned', last_scanned_at = now() WHERE id = $1
	`, row.id)
	return err
}

func (p *Publisher) markNeedsRebase(ctx context.Context, row proposalRow) error {
	return db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE merge_proposal SET status = 'needs_rebase', last_scanned_at = now() WHERE id = $1
		`, row.id); err != nil {
			return err
		}
		return p.scheduleRefresh(ctx, tx, row.codebaseID)
	})
}

// markTerminal closes out a merged or closed proposal, decrementing its
// rate-limit bucket's open count and, for a merge, scheduling the
// campaign's post-merge follow-up candidate (scenario 5).
func (p *Publisher) markTerminal(ctx context.Context, row proposalRow, status forgeclient.ProposalStatus, scheduleFollowUp bool) error {
	return db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE merge_proposal SET status = $2, last_scanned_at = now() WHERE id = $1
		`, row.id, string(status)); err != nil {
			return err
		}
		if row.bucket != "" {
			if _, err := tx.Exec(ctx, `
				UPDATE rate_limit_bucket SET open_count = GREATEST(open_count - 1, 0), updated_at = now()
				WHERE name = $1
			`, row.bucket); err != nil {
				return err
			}
		}
		if scheduleFollowUp {
			return p.scheduleRefresh(ctx, tx, row.codebaseID)
		}
		return nil
	})
}

// scheduleRefresh bumps every candidate for codebaseID back into the
// queue so the scheduler's next recompute pass reconsiders it promptly,
// rather than waiting for the ordinary cooldown — spec.md §4.5's "schedule
// a refresh run for the codebase" and scenario 5's post-merge follow-up.
func (p *Publisher) scheduleRefresh(ctx context.Context, tx pgx.Tx, codebaseID int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO queue (candidate_id, bucket, priority, context)
		SELECT c.id, COALESCE(NULLIF(cb.rate_limit_bucket, ''), cm.rate_limit_bucket, ''), c.value, '{}'::jsonb
		FROM candidate c
		JOIN codebase cb ON cb.id = c.codebase_id
		JOIN campaign cm ON cm.id = c.campaign_id
		WHERE c.codebase_id = $1
		ON CONFLICT (candidate_id) DO UPDATE SET
			priority = GREATEST(queue.priority, EXCLUDED.priority)
	`, codebaseID)
	return err
}

func (p *Publisher) bucketBackingOff(bucket string) bool {
	p.backoffMu.Lock()
	defer p.backoffMu.Unlock()
	st, ok := p.backoff[bucket]
	return ok && time.Now().Before(st.until)
}

func (p *Publisher) recordTransientFailure(bucket string) {
	if bucket == "" {
		return
	}
	p.backoffMu.Lock()
	defer p.backoffMu.Unlock()
	st := p.backoff[bucket]
	st.streak++
	delay := min(backoffBase*time.Duration(1<<min(st.streak, 10)), backoffCap)
	jitter := time.Duration(rand.Int63n(int64(delay) / 4))
	st.until = time.Now().Add(delay + jitter)
	p.backoff[bucket] = st
}

func (p *Publisher) clearBackoff(bucket string) {
	if bucket == "" {
		return
	}
	p.backoffMu.Lock()
	defer p.backoffMu.Unlock()
	delete(p.backoff, bucket)
}
