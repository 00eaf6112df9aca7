package forgeclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v32/github"
	"golang.org/x/oauth2"
)

// githubForge wraps google/go-github authenticated with a static token
// source. golang.org/x/oauth2 is the teacher's own OAuth dependency,
// repurposed here from a user-login flow into a forge API credential.
type githubForge struct {
	client *github.Client
}

// NewGitHub builds a Forge backed by the GitHub REST API, authenticated
// with a personal access token (internal/config's GitHubToken).
func NewGitHub(ctx context.Context, token string) (Forge, error) {
	if token == "" {
		return nil, fmt.Errorf("forgeclient: github: %w", ErrPermissionDenied)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = CallTimeout
	return &githubForge{client: github.NewClient(httpClient)}, nil
}

func (g *githubForge) Name() string { return "github" }

func (g *githubForge) EnsureProposal(ctx context.Context, req ProposalRequest) (*Proposal, error) {
	existing, _, err := g.client.PullRequests.List(ctx, req.Owner, req.Repo, &github.PullRequestListOptions{
		Head:  req.Owner + ":" + req.SourceBranch,
		Base:  req.TargetBranch,
		State: "open",
	})
	if err != nil {
		return nil, classifyGitHubErr(err)
	}
	if len(existing) > 0 {
		pr := existing[0]
		if _, _, err := g.client.PullRequests.Edit(ctx, req.Owner, req.Repo, pr.GetNumber(), &github.PullRequest{
			Body: &req.Body,
		}); err != nil {
			return nil, classifyGitHubErr(err)
		}
		return toProposal(pr), nil
	}

	pr, _, err := g.client.PullRequests.Create(ctx, req.Owner, req.Repo, &github.NewPullRequest{
		Title: &req.Title,
		Head:  &req.SourceBranch,
		Base:  &req.TargetBranch,
		Body:  &req.Body,
	})
	if err != nil {
		return nil, classifyGitHubErr(err)
	}
	return toProposal(pr), nil
}

func (g *githubForge) ProposalStatus(ctx context.Context, url string) (*Proposal, error) {
	owner, repo, number, err := parsePullURL(url)
	if err != nil {
		return nil, err
	}
	pr, _, err := g.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, classifyGitHubErr(err)
	}
	return toProposal(pr), nil
}

func (g *githubForge) Push(ctx context.Context, req PushRequest, revision string) error {
	ref := "refs/heads/" + req.Branch
	_, _, err := g.client.Git.UpdateRef(ctx, req.Owner, req.Repo, &github.Reference{
		Ref:    &ref,
		Object: &github.GitObject{SHA: &revision},
	}, false)
	var missing *github.ErrorResponse
	if errors.As(err, &missing) && missing.Response != nil && missing.Response.StatusCode == http.StatusUnprocessableEntity {
		// The branch does not exist yet (push-derived): create it.
		_, _, err = g.client.Git.CreateRef(ctx, req.Owner, req.Repo, &github.Reference{
			Ref:    &ref,
			Object: &github.GitObject{SHA: &revision},
		})
	}
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusForbidden {
			return ErrPermissionDenied
		}
		return classifyGitHubErr(err)
	}
	return nil
}

// toProposal maps a go-github PullRequest onto the forge-agnostic Proposal
// shape. A still-open PR whose MergeableState has gone "dirty" (GitHub's
// signal that the base branch has moved past what the PR was opened
// against) is surfaced as ProposalNeedsRebase rather than ProposalOpen, so
// the rescan loop can schedule a refresh without a second API round trip.
func toProposal(pr *github.PullRequest) *Proposal {
	status := ProposalOpen
	switch {
	case pr.GetMerged():
		status = ProposalMerged
	case pr.GetState() == "closed":
		status = ProposalClosed
	case pr.GetMergeableState() == "dirty":
		status = ProposalNeedsRebase
	}
	return &Proposal{
		URL:      pr.GetHTMLURL(),
		Status:   status,
		Revision: pr.GetHead().GetSHA(),
	}
}

func classifyGitHubErr(err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
		return ErrProposalNotFound
	}
	return err
}

// parsePullURL extracts owner/repo/number from a GitHub PR HTML URL, e.g.
// "https://github.com/owner/repo/pull/42".
func parsePullURL(url string) (owner, repo string, number int, err error) {
	parts := strings.Split(strings.TrimPrefix(url, "https://github.com/"), "/")
	if len(parts) != 4 || parts[2] != "pull" {
		return "", "", 0, fmt.Errorf("forgeclient: malformed pull request url %q", url)
	}
	var n int
	if _, scanErr := fmt.Sscanf(parts[3], "%d", &n); scanErr != nil {
		return "", "", 0, fmt.Errorf("forgeclient: malformed pull request number in %q: %w", url, scanErr)
	}
	return parts[0], parts[1], n, nil
}
