package activerun

import "errors"

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("activerun: run not found")

// ErrConflict is returned when a requested transition is not legal from
// the run's current state (spec.md's ConflictError — 409, idempotent).
var ErrConflict = errors.New("activerun: invalid state transition")
