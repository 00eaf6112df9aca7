package forgeclient

import "fmt"

// NewGitLab is a placeholder constructor. GitLab support has no client
// wired in; wire github.com/xanzy/go-gitlab here if a campaign ever
// targets a GitLab-hosted codebase.
func NewGitLab() (Forge, error) {
	return nil, fmt.Errorf("forgeclient: gitlab: %w", ErrForgeUnsupported)
}

// NewLaunchpad is a placeholder constructor. Launchpad has no published
// Go client in the example pack.
func NewLaunchpad() (Forge, error) {
	return nil, fmt.Errorf("forgeclient: launchpad: %w", ErrForgeUnsupported)
}
