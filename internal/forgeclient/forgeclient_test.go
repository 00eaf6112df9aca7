package forgeclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGitHubRejectsEmptyToken(t *testing.T) {
	_, err := NewGitHub(context.Background(), "")
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestNewGitHubBuildsClient(t *testing.T) {
	f, err := NewGitHub(context.Background(), "ghp_faketoken")
	require.NoError(t, err)
	assert.Equal(t, "github", f.Name())
}

func TestUnsupportedForges(t *testing.T) {
	_, err := NewGitLab()
	assert.ErrorIs(t, err, ErrForgeUnsupported)

	_, err = NewLaunchpad()
	assert.ErrorIs(t, err, ErrForgeUnsupported)
}

func TestParsePullURL(t *testing.T) {
	owner, repo, number, err := parsePullURL("https://github.com/janitord/janitor/pull/42")
	require.NoError(t, err)
	assert.Equal(t, "janitord", owner)
	assert.Equal(t, "janitor", repo)
	assert.Equal(t, 42, number)

	_, _, _, err = parsePullURL("https://github.com/janitord/janitor/issues/42")
	assert.Error(t, err)
}
