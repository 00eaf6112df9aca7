package runnerapi

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/janitord/janitor/internal/api"
	"github.com/janitord/janitor/internal/scheduler"
)

type publishedBranchDTO struct {
	Role      string `json:"role"`
	Mode      string `json:"mode"`
	ResultURL string `json:"result_url,omitempty"`
	Revision  string `json:"revision"`
}

type runDetailDTO struct {
	ID          string               `json:"id"`
	Codebase    string               `json:"codebase"`
	Campaign    string               `json:"campaign"`
	State       string               `json:"state"`
	ResultCode  string               `json:"result_code,omitempty"`
	Description string               `json:"description,omitempty"`
	AssignedAt  string               `json:"assigned_at"`
	FinishedAt  string               `json:"finished_at,omitempty"`
	Published   []publishedBranchDTO `json:"published,omitempty"`
}

// getRun implements GET /runs/{id}: a full historical view of a run,
// joining its codebase/campaign names and any branches it published —
// unlike GET /active-runs/{id}, this also serves runs long past
// finished.
func (h *Handler) getRun(c api.Context) error {
	id := c.Param("id")

	var dto runDetailDTO
	var resultCode, description, finishedAt *string
	err := h.Pool.QueryRow(c.Context(), `
		SELECT r.id, cb.name, cm.name, r.state, r.result_code,
		       COALESCE(r.failure_details->>'description', ''),
		       r.assigned_at::text, r.finished_at::text
		FROM run r
		JOIN codebase cb ON cb.id = r.codebase_id
		JOIN campaign cm ON cm.id = r.campaign_id
		WHERE r.id = $1
	`, id).Scan(&dto.ID, &dto.Codebase, &dto.Campaign, &dto.State, &resultCode, &description, &dto.AssignedAt, &finishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return api.ErrNotFound("run not found")
	}
	if err != nil {
		return api.ErrInternal("get run failed", api.WithError(err))
	}
	if resultCode != nil {
		dto.ResultCode = *resultCode
	}
	if description != nil {
		dto.Description = *description
	}
	if finishedAt != nil {
		dto.FinishedAt = *finishedAt
	}

	rows, err := h.Pool.Query(c.Context(), `
		SELECT role, mode, COALESCE(result_url, ''), revision FROM publish WHERE run_id = $1 ORDER BY published_at ASC
	`, id)
	if err != nil {
		return api.ErrInternal("list published branches failed", api.WithError(err))
	}
	defer rows.Close()
	for rows.Next() {
		var p publishedBranchDTO
		if err := rows.Scan(&p.Role, &p.Mode, &p.ResultURL, &p.Revision); err != nil {
			return api.ErrInternal("scan published branch failed", api.WithError(err))
		}
		dto.Published = append(dto.Published, p)
	}
	if err := rows.Err(); err != nil {
		return api.ErrInternal("list published branches failed", api.WithError(err))
	}

	return c.JSON(200, dto)
}

type mutateRunRequest struct {
	Action string `json:"action"`
}

// mutateRun implements POST /runs/{id}: administrative follow-up actions
// on a finished run. The only action currently supported is "requeue",
// which schedules an immediate refresh of the run's (codebase, campaign)
// pair through Scheduler.Schedule, bypassing cooldown.
func (h *Handler) mutateRun(c api.Context) error {
	id := c.Param("id")
	var req mutateRunRequest
	if err := c.Bind(&req); err != nil {
		return api.ErrBadRequest("malformed run mutation request", api.WithError(err))
	}
	if req.Action != "requeue" {
		return api.ErrBadRequest("unsupported action: " + req.Action)
	}

	var codebase, campaign string
	err := h.Pool.QueryRow(c.Context(), `
		SELECT cb.name, cm.name FROM run r
		JOIN codebase cb ON cb.id = r.codebase_id
		JOIN campaign cm ON cm.id = r.campaign_id
		WHERE r.id = $1
	`, id).Scan(&codebase, &campaign)
	if errors.Is(err, pgx.ErrNoRows) {
		return api.ErrNotFound("run not found")
	}
	if err != nil {
		return api.ErrInternal("look up run failed", api.WithError(err))
	}

	if err := h.Scheduler.Schedule(c.Context(), codebase, campaign, true); err != nil {
		if errors.Is(err, scheduler.ErrUnknownPair) {
			return api.ErrNotFound("no candidate for that run's codebase/campaign pair")
		}
		return api.ErrInternal("requeue failed", api.WithError(err))
	}
	return c.NoContent(202)
}
