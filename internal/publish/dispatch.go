package publish

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/janitord/janitor/internal/forgeclient"
	"github.com/janitord/janitor/internal/scheduler"
)

// publish carries out mode against b, returning the forge-visible URL (a
// PR URL when a proposal is opened: propose, or attempt-push falling back
// after a permission error; "" when a push succeeds) and the revision that
// ended up published.
func (p *Publisher) publish(ctx context.Context, mode Mode, b unpublishedBranch) (string, string, error) {
	switch mode {
	case ModePush:
		return p.doPush(ctx, b, b.DefaultBranch)
	case ModePushDerived:
		derived := scheduler.ExpandBranchName(b.BranchScheme, b.CampaignName, b.CodebaseName)
		return p.doPush(ctx, b, derived)
	case ModePropose:
		return p.doPropose(ctx, b)
	case ModeAttemptPush:
		resultURL, revision, err := p.doPush(ctx, b, b.DefaultBranch)
		if errors.Is(err, forgeclient.ErrPermissionDenied) {
			return p.doPropose(ctx, b)
		}
		return resultURL, revision, err
	default:
		return "", "", fmt.Errorf("publish: unsupported mode %q", mode)
	}
}

func (p *Publisher) doPush(ctx context.Context, b unpublishedBranch, targetBranch string) (string, string, error) {
	if p.forge == nil {
		return "", "", fmt.Errorf("publish: %w: no forge configured for codebase %s", forgeclient.ErrForgeUnsupported, b.CodebaseName)
	}
	owner, repo, err := ownerRepo(b.VCSURL)
	if err != nil {
		return "", "", err
	}
	if err := p.forge.Push(ctx, forgeclient.PushRequest{
		Owner:  owner,
		Repo:   repo,
		Branch: targetBranch,
	}, b.ProposedRevision); err != nil {
		return "", "", fmt.Errorf("push %s/%s to %s: %w", owner, repo, targetBranch, err)
	}
	return "", b.ProposedRevision, nil
}

func (p *Publisher) doPropose(ctx context.Context, b unpublishedBranch) (string, string, error) {
	if p.forge == nil {
		return "", "", fmt.Errorf("publish: %w: no forge configured for codebase %s", forgeclient.ErrForgeUnsupported, b.CodebaseName)
	}
	owner, repo, err := ownerRepo(b.VCSURL)
	if err != nil {
		return "", "", err
	}

	title, body, err := p.template.Render(b.TitleTemplate, b.BodyTemplate, ProposalTemplateData{
		CodebaseName: b.CodebaseName,
		CampaignName: b.CampaignName,
		RunID:        b.RunID,
	})
	if err != nil {
		return "", "", err
	}

	proposal, err := p.forge.EnsureProposal(ctx, forgeclient.ProposalRequest{
		Owner:        owner,
		Repo:         repo,
		SourceBranch: b.RemoteBranch,
		TargetBranch: b.DefaultBranch,
		Title:        title,
		Body:         body,
	})
	if err != nil {
		return "", "", fmt.Errorf("open proposal for %s/%s: %w", owner, repo, err)
	}
	return proposal.URL, b.ProposedRevision, nil
}

// ownerRepo extracts an "owner/repo" pair from a forge VCS URL, handling
// both HTTPS ("https://github.com/owner/repo(.git)") and SSH
// ("git@github.com:owner/repo(.git)") forms.
func ownerRepo(vcsURL string) (owner, repo string, err error) {
	trimmed := strings.TrimSuffix(vcsURL, ".git")

	if u, parseErr := url.Parse(trimmed); parseErr == nil && u.Host != "" {
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) >= 2 {
			return parts[len(parts)-2], parts[len(parts)-1], nil
		}
	}

	if idx := strings.Index(trimmed, ":"); idx >= 0 && strings.Contains(trimmed[:idx], "@") {
		parts := strings.Split(trimmed[idx+1:], "/")
		if len(parts) >= 2 {
			return parts[len(parts)-2], parts[len(parts)-1], nil
		}
	}

	return "", "", fmt.Errorf("publish: cannot parse owner/repo from %q", vcsURL)
}
