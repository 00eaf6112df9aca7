// Package queue implements the Queue Manager: a Postgres-backed priority
// queue keyed by (bucket, -priority, enqueue-time), with atomic assignment
// to workers via FOR UPDATE SKIP LOCKED.
package queue

import (
	"context"
	"time"
)

// Entry is a scheduled instance of a candidate waiting for a worker.
type Entry struct {
	ID                int64
	CodebaseID        int64
	CampaignID        int64
	CandidateID       int64
	Bucket            string
	Priority          float64
	EstimatedDuration time.Duration
	RequeueCount      int
	Context           map[string]any
	EnqueuedAt        time.Time
	ActiveRunID       string
}

// Candidate describes the (codebase, campaign) pair an entry is scheduled
// from, resolved at enqueue time so assign doesn't need an extra join.
type Candidate struct {
	ID         int64
	CodebaseID int64
	CampaignID int64
	Value      float64
	Context    map[string]any
}

// WorkerCapabilities is the set of capability strings a worker declares at
// assign time (e.g. "git", "bzr", "docker"). A campaign's requirements must
// be a subset for the worker to be eligible.
type WorkerCapabilities []string

// Satisfies reports whether w declares every capability in required.
func (w WorkerCapabilities) Satisfies(required []string) bool {
	have := make(map[string]struct{}, len(w))
	for _, c := range w {
		have[c] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

// AssignmentBundle is everything a worker needs to start a run, returned by
// Assign.
type AssignmentBundle struct {
	RunID            string
	CodebaseID       int64
	CodebaseName     string
	VCSURL           string
	Branch           string
	Command          string
	CandidateContext map[string]any
	UploadToken      string
	QueueID          int64
	CampaignID       int64
	CampaignName     string
}

// Manager is the Queue Manager API described in the component design:
// enqueue, peek, assign, drop.
type Manager interface {
	// Enqueue upserts a queue entry for candidateID. If an active entry
	// already exists for the same (codebase, campaign), its priority is
	// raised to max(old, new) — never lowered.
	Enqueue(ctx context.Context, candidateID int64, bucket string, priority float64, estimatedDuration time.Duration, entryCtx map[string]any) (int64, error)

	// Peek returns up to n waiting entries in assignment order, without
	// removing them.
	Peek(ctx context.Context, n int) ([]Entry, error)

	// Assign atomically claims the highest-priority eligible entry for
	// workerID and moves it to Active-Run state. Returns (nil, ErrNoWork)
	// when nothing is eligible.
	Assign(ctx context.Context, workerID string, capabilities WorkerCapabilities, jenkinsLink string) (*AssignmentBundle, error)

	// Drop removes a waiting queue entry (administrative cancel).
	Drop(ctx context.Context, queueID int64) error
}
