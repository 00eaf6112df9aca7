package ingest

import "time"

// ResultCode classifies a finished run's outcome. The scheduler's
// reschedule-policy table (internal/scheduler) is keyed by this type.
type ResultCode string

const (
	ResultSuccess           ResultCode = "success"
	ResultSuccessUnchanged  ResultCode = "success-unchanged"
	ResultNothingToDo       ResultCode = "nothing-to-do"
	ResultBuildFailed       ResultCode = "build-failed"
	ResultMissingDependency ResultCode = "missing-dependency"
	ResultBranchUnavailable ResultCode = "branch-unavailable"
	ResultWorkerFailure     ResultCode = "worker-failure"
	ResultInternalError     ResultCode = "internal-error"
)

// KnownResultCodes is the closed enum FinishReport.Code must belong to.
var KnownResultCodes = map[ResultCode]bool{
	ResultSuccess:           true,
	ResultSuccessUnchanged:  true,
	ResultNothingToDo:       true,
	ResultBuildFailed:       true,
	ResultMissingDependency: true,
	ResultBranchUnavailable: true,
	ResultWorkerFailure:     true,
	ResultInternalError:     true,
}

// BranchResult is a single per-role outcome within a FinishReport.
type BranchResult struct {
	Role         string `json:"role" validate:"required"`
	Name         string `json:"name" validate:"required"`
	BaseRevision string `json:"base_revision" validate:"required"`
	Revision     string `json:"revision"`
}

// FinishReport is the JSON body a worker posts to
// POST /active-runs/{id}/finish. Struct tags drive go-playground/validator
// validation before anything is persisted.
type FinishReport struct {
	Code            ResultCode     `json:"code" validate:"required"`
	Description     string         `json:"description"`
	Value           *int           `json:"value"`
	StartTime       time.Time      `json:"start_time" validate:"required"`
	FinishTime      time.Time      `json:"finish_time" validate:"required,gtefield=StartTime"`
	TargetBranchURL string         `json:"target_branch_url"`
	Revision        string         `json:"revision"`
	Branches        []BranchResult `json:"branches" validate:"dive"`
	Tags            [][2]string    `json:"tags"`
	FailureDetails  map[string]any `json:"failure_details"`
	Transient       *bool          `json:"transient"`
}

// Duration returns the reported wall-clock duration of the run.
func (r FinishReport) Duration() time.Duration {
	return r.FinishTime.Sub(r.StartTime)
}
