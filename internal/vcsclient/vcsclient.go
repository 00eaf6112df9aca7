// Package vcsclient is the worker-facing capability interface onto a
// version-control system: cloning a codebase, checking out a revision,
// and pushing a result branch. It mirrors forgeclient's shape — one
// closed interface, a small set of constructors selected at config load.
package vcsclient

import (
	"context"
	"errors"
)

// ErrVCSUnsupported is returned by a VCS variant's constructor when that
// VCS has no client implementation wired in.
var ErrVCSUnsupported = errors.New("vcsclient: vcs not supported")

// ErrRevisionNotFound means the requested revision does not exist in the
// cloned repository.
var ErrRevisionNotFound = errors.New("vcsclient: revision not found")

// CloneOptions describes a codebase checkout.
type CloneOptions struct {
	URL    string
	Branch string
	Dir    string
}

// PushOptions describes pushing a local branch to a remote.
type PushOptions struct {
	Dir        string
	Branch     string
	RemoteName string
	RemoteURL  string
}

// VCS is the closed capability interface the scheduler's worker side and
// the Publisher's push-derived mode drive.
type VCS interface {
	// Name identifies the VCS kind, e.g. "git".
	Name() string

	// Clone checks out opts.URL at opts.Branch into opts.Dir.
	Clone(ctx context.Context, opts CloneOptions) error

	// HeadRevision returns the current HEAD revision of the repository at
	// dir.
	HeadRevision(ctx context.Context, dir string) (string, error)

	// Push pushes the local branch to the named remote, creating it there
	// if needed.
	Push(ctx context.Context, opts PushOptions) error
}
