package vcsclient

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
)

// gitVCS implements VCS over go-git, grounded on the teacher pack's
// codepr-narwhal runner, which clones candidate repositories with
// git.PlainClone before handing them to a worker.
type gitVCS struct{}

// NewGit builds a VCS backed by go-git.
func NewGit() VCS {
	return gitVCS{}
}

func (gitVCS) Name() string { return "git" }

func (gitVCS) Clone(ctx context.Context, opts CloneOptions) error {
	cloneOpts := &git.CloneOptions{
		URL: opts.URL,
	}
	if opts.Branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(opts.Branch)
		cloneOpts.SingleBranch = true
	}
	if _, err := git.PlainCloneContext(ctx, opts.Dir, false, cloneOpts); err != nil {
		return fmt.Errorf("vcsclient: git: clone %s: %w", opts.URL, err)
	}
	return nil
}

func (gitVCS) HeadRevision(ctx context.Context, dir string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("vcsclient: git: open %s: %w", dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("vcsclient: git: head of %s: %w", dir, err)
	}
	return head.Hash().String(), nil
}

func (gitVCS) Push(ctx context.Context, opts PushOptions) error {
	repo, err := git.PlainOpen(opts.Dir)
	if err != nil {
		return fmt.Errorf("vcsclient: git: open %s: %w", opts.Dir, err)
	}

	remoteName := opts.RemoteName
	if remoteName == "" {
		remoteName = "publish"
	}

	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: remoteName,
		URLs: []string{opts.RemoteURL},
	})
	if err != nil && err != git.ErrRemoteExists {
		return fmt.Errorf("vcsclient: git: configure remote %s: %w", remoteName, err)
	}

	refSpec := config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", opts.Branch, opts.Branch))
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []config.RefSpec{refSpec},
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("vcsclient: git: push %s to %s: %w", opts.Branch, opts.RemoteURL, err)
	}
	return nil
}
