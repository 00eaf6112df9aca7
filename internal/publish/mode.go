package publish

import "context"

// policyOverride is one candidate row from the policy table considered by
// resolveMode, scored by how specific it is to the branch being published.
type policyOverride struct {
	codebaseID *int64
	role       *string
	mode       Mode
}

// specificity scores an override so the most specific match wins:
// a per-codebase, per-role row outranks a per-role row, which
// outranks a per-codebase row, which outranks a bare campaign-wide row.
// This mirrors spec.md §4.5 step 1's overlay order (campaign default →
// codebase override → per-role override): per-role is applied last and
// so takes precedence over a bare codebase override.
func (o policyOverride) specificity() int {
	score := 0
	if o.role != nil {
		score += 2
	}
	if o.codebaseID != nil {
		score += 1
	}
	return score
}

// resolveMode implements spec.md §4.5 step 1 and the Open Question
// decision recorded in DESIGN.md: codebase-level overrides win over the
// campaign default, and a per-role override (applied on top of either)
// wins over both.
func (p *Publisher) resolveMode(ctx context.Context, b unpublishedBranch) (Mode, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT codebase_id, role, publish_mode
		FROM policy
		WHERE campaign_id = $1
		  AND (codebase_id IS NULL OR codebase_id = $2)
		  AND (role IS NULL OR role = $3)
		  AND publish_mode IS NOT NULL
	`, b.CampaignID, b.CodebaseID, b.Role)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var best *policyOverride
	for rows.Next() {
		var o policyOverride
		var mode string
		if err := rows.Scan(&o.codebaseID, &o.role, &mode); err != nil {
			return "", err
		}
		o.mode = Mode(mode)
		if best == nil || o.specificity() > best.specificity() {
			best = &o
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	if best != nil {
		return best.mode, nil
	}
	return b.DefaultMode, nil
}
