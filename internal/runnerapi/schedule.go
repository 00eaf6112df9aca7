package runnerapi

import (
	"errors"

	"github.com/janitord/janitor/internal/api"
	"github.com/janitord/janitor/internal/scheduler"
)

type scheduleRequest struct {
	Codebase string `json:"codebase"`
	Campaign string `json:"campaign"`
}

// schedule implements POST /schedule: recompute a single (codebase,
// campaign) pair, honoring its normal cooldown.
func (h *Handler) schedule(c api.Context) error {
	return h.runSchedule(c, false)
}

// scheduleControl implements POST /schedule-control: the operator
// override that bypasses cooldown, used to force an immediate recompute.
func (h *Handler) scheduleControl(c api.Context) error {
	return h.runSchedule(c, true)
}

func (h *Handler) runSchedule(c api.Context, bypassCooldown bool) error {
	var req scheduleRequest
	if err := c.Bind(&req); err != nil {
		return api.ErrBadRequest("malformed schedule request", api.WithError(err))
	}
	if req.Codebase == "" || req.Campaign == "" {
		return api.ErrBadRequest("codebase and campaign are required")
	}

	err := h.Scheduler.Schedule(c.Context(), req.Codebase, req.Campaign, bypassCooldown)
	if errors.Is(err, scheduler.ErrUnknownPair) {
		return api.ErrNotFound("no candidate for that codebase/campaign pair")
	}
	if err != nil {
		return api.ErrInternal("schedule failed", api.WithError(err))
	}
	return c.NoContent(202)
}
