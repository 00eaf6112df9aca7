package vcsclient

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// gitInitAndCommit creates a non-bare git repository at dir with a single
// file and commit, using go-git directly so the test suite has no
// dependency on a git binary being present on PATH.
func gitInitAndCommit(dir string) error {
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("hello\n"), 0o644); err != nil {
		return err
	}
	if _, err := wt.Add("README"); err != nil {
		return err
	}
	_, err = wt.Commit("initial commit", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "janitor-test",
			Email: "janitor-test@example.com",
			When:  time.Unix(0, 0),
		},
	})
	return err
}
