package runnerapi

import (
	"github.com/janitord/janitor/internal/api"
)

type queueEntryDTO struct {
	ID           int64          `json:"id"`
	CodebaseID   int64          `json:"codebase_id"`
	CampaignID   int64          `json:"campaign_id"`
	Bucket       string         `json:"bucket"`
	Priority     float64        `json:"priority"`
	RequeueCount int            `json:"requeue_count"`
	Context      map[string]any `json:"context,omitempty"`
	ActiveRunID  string         `json:"active_run_id,omitempty"`
}

// listQueue implements GET /queue: the top ?limit= (default 50) waiting
// entries in assignment order, for operator introspection.
func (h *Handler) listQueue(c api.Context) error {
	limit := api.QueryDefault[int](c, "limit", 50)
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	entries, err := h.Queue.Peek(c.Context(), limit)
	if err != nil {
		return api.ErrInternal("peek queue failed", api.WithError(err))
	}
	dtos := make([]queueEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = queueEntryDTO{
			ID:           e.ID,
			CodebaseID:   e.CodebaseID,
			CampaignID:   e.CampaignID,
			Bucket:       e.Bucket,
			Priority:     e.Priority,
			RequeueCount: e.RequeueCount,
			Context:      e.Context,
			ActiveRunID:  e.ActiveRunID,
		}
	}
	return c.JSON(200, dtos)
}

// queuePosition implements GET /queue/position?codebase_id=&campaign_id=:
// the waiting entry's 1-based rank in assignment order, or 404 if that
// pair has nothing waiting (already assigned, or never enqueued).
func (h *Handler) queuePosition(c api.Context) error {
	codebaseID := api.Query[int64](c, "codebase_id")
	campaignID := api.Query[int64](c, "campaign_id")
	if codebaseID == 0 || campaignID == 0 {
		return api.ErrBadRequest("codebase_id and campaign_id are required")
	}

	entries, err := h.Queue.Peek(c.Context(), 10000)
	if err != nil {
		return api.ErrInternal("peek queue failed", api.WithError(err))
	}
	for i, e := range entries {
		if e.CodebaseID == codebaseID && e.CampaignID == campaignID {
			return c.JSON(200, map[string]int{"position": i + 1})
		}
	}
	return api.ErrNotFound("no waiting queue entry for that codebase/campaign pair")
}
