package queue

import "errors"

// ErrNoWork is returned by Assign when no eligible queue entry exists for
// the requesting worker.
var ErrNoWork = errors.New("queue: no eligible work")

// ErrNotFound is returned by Drop when the queue entry does not exist.
var ErrNotFound = errors.New("queue: entry not found")

// ErrActiveRunExists names the condition of a codebase that already has a
// run in flight. Assign does not return it: its query skips such entries,
// and the caller sees ErrNoWork when nothing else is eligible.
var ErrActiveRunExists = errors.New("queue: codebase has an active run")
