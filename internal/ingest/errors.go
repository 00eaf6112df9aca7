package ingest

import "errors"

// ErrValidation wraps a go-playground/validator failure on a FinishReport;
// the caller maps it to HTTP 400.
var ErrValidation = errors.New("ingest: invalid finish report")

// ErrRunNotClaimable is returned when runID does not belong to workerID or
// is not in a state that can finish (activerun.StateAssigning/Running/
// Finishing).
var ErrRunNotClaimable = errors.New("ingest: run is not assigning, running or finishing for this worker")

// ErrUnknownResultCode is returned when FinishReport.Code is not one of the
// recognised classification values.
var ErrUnknownResultCode = errors.New("ingest: unknown result code")
