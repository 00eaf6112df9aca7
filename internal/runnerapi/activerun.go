package runnerapi

import (
	"errors"
	"io"

	"github.com/janitord/janitor/internal/activerun"
	"github.com/janitord/janitor/internal/api"
	"github.com/janitord/janitor/internal/ingest"
)

// runDTO is the JSON shape of an active run returned from the
// introspection endpoints.
type runDTO struct {
	ID              string `json:"id"`
	CodebaseID      int64  `json:"codebase_id"`
	CampaignID      int64  `json:"campaign_id"`
	WorkerID        string `json:"worker_id"`
	State           string `json:"state"`
	JenkinsLink     string `json:"jenkins_link,omitempty"`
	CancelRequested bool   `json:"cancel_requested"`
}

func toRunDTO(r activerun.Run) runDTO {
	return runDTO{
		ID:              r.ID,
		CodebaseID:      r.CodebaseID,
		CampaignID:      r.CampaignID,
		WorkerID:        r.WorkerID,
		State:           string(r.State),
		JenkinsLink:     r.JenkinsLink,
		CancelRequested: r.CancelRequested,
	}
}

// listActiveRuns implements GET /active-runs. ?active=false includes
// terminal runs still tracked by the registry.
func (h *Handler) listActiveRuns(c api.Context) error {
	activeOnly := api.QueryDefault[bool](c, "active", true)
	runs, err := h.Registry.List(c.Context(), activeOnly)
	if err != nil {
		return api.ErrInternal("list active runs failed", api.WithError(err))
	}
	dtos := make([]runDTO, len(runs))
	for i, r := range runs {
		dtos[i] = toRunDTO(r)
	}
	return c.JSON(200, dtos)
}

// getActiveRun implements GET /active-runs/{id}.
func (h *Handler) getActiveRun(c api.Context) error {
	id := c.Param("id")
	run, err := h.Registry.Get(c.Context(), id)
	if errors.Is(err, activerun.ErrNotFound) {
		return api.ErrNotFound("run not found")
	}
	if err != nil {
		return api.ErrInternal("get active run failed", api.WithError(err))
	}
	return c.JSON(200, toRunDTO(*run))
}

// appendLog implements POST /active-runs/{id}/log/{name}: the worker's
// heartbeat channel, doubling as a chunked log upload. Each call both
// records liveness and appends the request body as the next chunk of the
// named log stream.
func (h *Handler) appendLog(c api.Context) error {
	id := c.Param("id")
	name := c.Param("name")
	if err := h.authenticateRun(c, id); err != nil {
		return err
	}

	cancelRequested, err := h.Registry.Heartbeat(c.Context(), id)
	if errors.Is(err, activerun.ErrNotFound) {
		return api.ErrNotFound("run not found")
	}
	if err != nil {
		return api.ErrInternal("heartbeat failed", api.WithError(err))
	}

	seq := api.QueryDefault[int](c, "seq", 0)
	body := c.Request().Body
	defer body.Close()
	if _, err := h.Artifacts.AppendLogChunk(c.Context(), id, name, seq, body); err != nil {
		return api.ErrInternal("append log chunk failed", api.WithError(err))
	}

	return c.JSON(202, map[string]bool{"cancel_requested": cancelRequested})
}

// kill implements POST /active-runs/{id}/kill: an operator request to
// cancel a run. The worker observes it on its next heartbeat.
func (h *Handler) kill(c api.Context) error {
	id := c.Param("id")
	if err := h.Registry.Kill(c.Context(), id); err != nil {
		if errors.Is(err, activerun.ErrNotFound) {
			return api.ErrNotFound("run not found")
		}
		if errors.Is(err, activerun.ErrConflict) {
			return api.ErrConflict("run is already terminal")
		}
		return api.ErrInternal("kill failed", api.WithError(err))
	}
	return c.NoContent(202)
}

// finish implements POST /active-runs/{id}/finish: the worker's terminal
// report. The multipart form carries a "result" JSON part (decoded into
// ingest.FinishReport) plus zero or more artifact file parts.
func (h *Handler) finish(c api.Context) error {
	id := c.Param("id")
	if err := h.authenticateRun(c, id); err != nil {
		return err
	}

	form, err := c.MultipartForm(32 << 20)
	if err != nil {
		return api.ErrBadRequest("malformed multipart form", api.WithError(err))
	}

	resultParts := form.Value["result"]
	if len(resultParts) == 0 {
		return api.ErrBadRequest("missing result part")
	}
	var report ingest.FinishReport
	if err := decodeJSON(resultParts[0], &report); err != nil {
		return api.ErrBadRequest("malformed result JSON", api.WithError(err))
	}

	artifacts := make(map[string]io.Reader, len(form.File))
	for fieldName, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		f, err := headers[0].Open()
		if err != nil {
			return api.ErrBadRequest("open artifact part failed", api.WithError(err))
		}
		defer f.Close()
		artifacts[fieldName] = f
	}

	if err := h.Registry.BeginFinishing(c.Context(), id); err != nil {
		if errors.Is(err, activerun.ErrConflict) {
			return api.ErrConflict("run is not in a finishable state")
		}
		if errors.Is(err, activerun.ErrNotFound) {
			return api.ErrNotFound("run not found")
		}
		return api.ErrInternal("begin finishing failed", api.WithError(err))
	}

	run, err := h.Registry.Get(c.Context(), id)
	if err != nil {
		return api.ErrInternal("load run failed", api.WithError(err))
	}

	result, err := h.Ingestor.Finish(c.Context(), id, run.WorkerID, report, artifacts)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrValidation), errors.Is(err, ingest.ErrUnknownResultCode):
			return api.ErrBadRequest("invalid finish report", api.WithError(err))
		case errors.Is(err, ingest.ErrRunNotClaimable):
			return api.ErrConflict("run not claimable by this worker")
		default:
			return api.ErrInternal("ingest finish failed", api.WithError(err))
		}
	}

	if err := h.Registry.Finish(c.Context(), id); err != nil && !errors.Is(err, activerun.ErrConflict) {
		h.logger().Warn("runnerapi: registry finish failed after ingest commit", "run_id", id, "error", err)
	}

	return c.JSON(200, map[string]any{
		"run_id":         result.RunID,
		"code":           result.Code,
		"branches_added": result.BranchesAdded,
		"artifacts":      result.Artifacts,
	})
}
