// Package activerun implements the Active-Run Registry: the state machine
// that tracks a queue entry from assignment through heartbeats to a
// terminal outcome, and the HTTP surface workers use to report progress.
package activerun

import (
	"context"
	"time"
)

// State is a run's position in the Active-Run state machine:
//
//	Assigning → Running → (Finishing | TimedOut | Killed) → Finished
type State string

const (
	StateAssigning State = "assigning"
	StateRunning   State = "running"
	StateFinishing State = "finishing"
	StateTimedOut  State = "timed_out"
	StateKilled    State = "killed"
	StateFinished  State = "finished"
)

// validTransitions enumerates the state machine's legal edges, as reported
// by CanTransition. PostgresRegistry does not consult it; its guarded
// UPDATEs report a rejected move as ErrConflict.
var validTransitions = map[State][]State{
	StateAssigning: {StateRunning, StateTimedOut, StateKilled},
	StateRunning:   {StateFinishing, StateTimedOut, StateKilled},
	StateFinishing: {StateFinished, StateTimedOut},
	StateTimedOut:  {},
	StateKilled:    {},
	StateFinished:  {},
}

// CanTransition reports whether moving from 'from' to 'to' is a legal edge
// in the state machine.
func CanTransition(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Run is the Active-Run Registry's view of an in-flight (or just-finished)
// run. It mirrors the subset of the `run` table the registry reads and
// writes; internal/ingest and internal/publish own the columns recorded
// only at finish time.
type Run struct {
	ID                 string
	CodebaseID         int64
	CampaignID         int64
	QueueID            int64
	WorkerID           string
	WorkerCapabilities []string
	JenkinsLink        string
	State              State
	AssignedAt         time.Time
	StartedAt          *time.Time
	LastHeartbeatAt    *time.Time
	FinishedAt         *time.Time
	CancelRequested    bool
}

// Registry is the Active-Run Registry API.
type Registry interface {
	// Get returns a single run by id.
	Get(ctx context.Context, runID string) (*Run, error)

	// List returns runs, optionally filtered to only currently-active
	// states (assigning/running/finishing).
	List(ctx context.Context, activeOnly bool) ([]Run, error)

	// Heartbeat records liveness for runID, advancing it from Assigning
	// to Running on first call, and reports whether the caller should
	// abort (CancelRequested).
	Heartbeat(ctx context.Context, runID string) (cancelRequested bool, err error)

	// BeginFinishing transitions runID to Finishing ahead of result
	// persistence, rejecting the call with ErrConflict if the run is not
	// in a state that can finish.
	BeginFinishing(ctx context.Context, runID string) error

	// Finish marks runID Finished after internal/ingest has durably
	// persisted its result.
	Finish(ctx context.Context, runID string) error

	// Kill requests cancellation; the worker observes it on its next
	// Heartbeat call and is expected to abort.
	Kill(ctx context.Context, runID string) error

	// ReapTimedOut scans for runs whose heartbeat has exceeded timeout,
	// transitions them to TimedOut, and re-queues their queue entry with
	// an incremented attempt counter. Returns the number reaped.
	ReapTimedOut(ctx context.Context, timeout time.Duration, maxAttempts int) (int, error)
}
