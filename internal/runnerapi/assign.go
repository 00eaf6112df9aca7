package runnerapi

import (
	"errors"
	"time"

	"github.com/janitord/janitor/internal/api"
	"github.com/janitord/janitor/internal/queue"
	"github.com/janitord/janitor/pkg/jwt"
)

// assignRequestBody is the JSON body POST /active-runs accepts: a worker's
// declared capabilities and an optional Jenkins build link surfaced in
// introspection.
type assignRequestBody struct {
	Capabilities []string `json:"capabilities"`
	JenkinsLink  string   `json:"jenkins_link"`
	WorkerID     string   `json:"worker_id"`
}

// assignmentBundleDTO mirrors spec.md §6's stable AssignmentBundle JSON
// shape.
type assignmentBundleDTO struct {
	ID       string            `json:"id"`
	Campaign string            `json:"campaign"`
	Codebase string            `json:"codebase"`
	Branch   branchDTO         `json:"branch"`
	Command  []string          `json:"command"`
	Env      map[string]string `json:"env"`
	Build    map[string]any    `json:"build"`
	Target   targetDTO         `json:"target"`
}

type branchDTO struct {
	URL          string  `json:"url"`
	DefaultEmpty bool    `json:"default-empty"`
	Subpath      *string `json:"subpath"`
	VCSType      string  `json:"vcs_type"`
}

type targetDTO struct {
	URLPrefix string `json:"url_prefix"`
	Token     string `json:"token"`
}

// requestAssignment implements POST /active-runs. It returns 201 with an
// AssignmentBundle on success, or 204 when the Queue Manager has nothing
// eligible for the caller's declared capabilities.
func (h *Handler) requestAssignment(c api.Context) error {
	var body assignRequestBody
	if err := c.Bind(&body); err != nil {
		return api.ErrBadRequest("malformed assignment request", api.WithError(err))
	}

	workerID := body.WorkerID
	if workerID == "" {
		workerID = c.Header("X-Worker-Id")
	}
	if workerID == "" {
		return api.ErrBadRequest("worker_id is required")
	}

	bundle, err := h.Queue.Assign(c.Context(), workerID, queue.WorkerCapabilities(body.Capabilities), body.JenkinsLink)
	if errors.Is(err, queue.ErrNoWork) {
		return c.NoContent(204)
	}
	if err != nil {
		return api.ErrInternal("assign failed", api.WithError(err))
	}

	token, err := h.signUploadToken(bundle.RunID)
	if err != nil {
		return api.ErrInternal("mint upload token failed", api.WithError(err))
	}

	dto := assignmentBundleDTO{
		ID:       bundle.RunID,
		Campaign: bundle.CampaignName,
		Codebase: bundle.CodebaseName,
		Branch: branchDTO{
			URL:     bundle.VCSURL,
			VCSType: "git",
		},
		Command: []string{bundle.Command},
		Env:     map[string]string{},
		Build:   map[string]any{},
		Target: targetDTO{
			URLPrefix: bundle.VCSURL,
			Token:     token,
		},
	}
	return c.JSON(201, dto)
}

// signUploadToken mints a short-lived JWT scoped to runID: the sole
// credential subsequent log/finish calls for that run must present (kill
// is an administrative route and uses the admin token instead).
func (h *Handler) signUploadToken(runID string) (string, error) {
	now := time.Now()
	ttl := h.RunTokenTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return h.UploadTokens.Generate(jwt.StandardClaims{
		Subject:   runID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	})
}

// authenticateRun extracts the bearer upload token from c, verifies it,
// and confirms its subject matches runID.
func (h *Handler) authenticateRun(c api.Context, runID string) error {
	token, ok := api.NewExtractor(api.FromBearerToken()).Extract(c)
	if !ok || token == "" {
		return api.ErrUnauthorized("missing upload token")
	}
	var claims jwt.StandardClaims
	if err := h.UploadTokens.Parse(token, &claims); err != nil {
		return api.ErrUnauthorized("invalid upload token")
	}
	if claims.Subject != runID {
		return api.ErrUnauthorized("upload token does not match run")
	}
	return nil
}
