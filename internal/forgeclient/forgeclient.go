// Package forgeclient is the Publisher's capability interface onto a
// code-hosting service ("forge"): opening and scanning merge proposals.
// It mirrors the teacher's pkg/oauth.Provider shape — one interface, a
// small closed set of constructors, no runtime plugin discovery.
package forgeclient

import (
	"context"
	"errors"
	"time"
)

// ErrForgeUnsupported is returned by a forge variant's constructor when
// that forge has no client implementation wired in.
var ErrForgeUnsupported = errors.New("forgeclient: forge not supported")

// ErrProposalNotFound is a PermanentBackendError: the forge reports the
// proposal URL no longer resolves to anything.
var ErrProposalNotFound = errors.New("forgeclient: proposal not found")

// ProposalStatus is the forge-side lifecycle state of a merge proposal,
// mirrored onto the local merge_proposal row.
type ProposalStatus string

const (
	ProposalOpen        ProposalStatus = "open"
	ProposalMerged      ProposalStatus = "merged"
	ProposalClosed      ProposalStatus = "closed"
	ProposalNeedsRebase ProposalStatus = "needs_rebase"
)

// ProposalRequest describes a merge proposal to open or update.
type ProposalRequest struct {
	Owner        string
	Repo         string
	SourceBranch string
	TargetBranch string
	Title        string
	Body         string
}

// Proposal is a forge-side merge/pull request.
type Proposal struct {
	URL      string
	Status   ProposalStatus
	Revision string
}

// PushRequest describes a fast-forward or derived-branch push.
type PushRequest struct {
	Owner  string
	Repo   string
	Branch string
}

// Forge is the closed capability interface the Publisher drives. Each
// variant is selected once at config load (internal/config's GitHubToken
// etc.) — there is no runtime discovery of new forge kinds.
type Forge interface {
	// Name identifies the forge kind, e.g. "github".
	Name() string

	// EnsureProposal opens req's proposal if none exists yet for its
	// (owner, repo, source branch), or updates the existing one's body.
	EnsureProposal(ctx context.Context, req ProposalRequest) (*Proposal, error)

	// ProposalStatus queries the current status of an existing proposal by
	// its canonical URL.
	ProposalStatus(ctx context.Context, url string) (*Proposal, error)

	// Push fast-forwards targetBranch to the given revision, or creates it
	// if it doesn't exist (push-derived). Returns ErrPermissionDenied if
	// the credential can't write to the branch.
	Push(ctx context.Context, req PushRequest, revision string) error
}

// ErrPermissionDenied signals a push the configured credential cannot
// perform; the Publisher's attempt-push mode falls back to propose on it.
var ErrPermissionDenied = errors.New("forgeclient: push permission denied")

// CallTimeout bounds a single forge API call (spec.md §5).
const CallTimeout = 60 * time.Second
