package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandCommand(t *testing.T) {
	cmd, err := expandCommand("lintian-brush --fixers={{.fixers}}", map[string]any{"fixers": "cme"})
	require.NoError(t, err)
	assert.Equal(t, "lintian-brush --fixers=cme", cmd)
}

func TestExpandCommandMissingField(t *testing.T) {
	// text/template renders <no value> for a missing map key rather than
	// erroring; callers that need stricter validation do it before storing
	// the command_template on the campaign.
	cmd, err := expandCommand("run {{.missing}}", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "run <no value>", cmd)
}

func TestPickEligibleOrdersByBucketPriorityThenTime(t *testing.T) {
	now := time.Now()
	candidates := []candidateRow{
		{codebaseName: "b", bucket: "default", priority: 1, enqueuedAt: now},
		{codebaseName: "a", bucket: "default", priority: 2, enqueuedAt: now},
		{codebaseName: "c", bucket: "default", priority: 2, enqueuedAt: now.Add(-time.Minute)},
	}

	picked := pickEligible(candidates, WorkerCapabilities{})
	require.NotNil(t, picked)
	assert.Equal(t, "c", picked.codebaseName, "earlier enqueue time at equal priority wins")
}

func TestPickEligibleSkipsIneligibleCandidates(t *testing.T) {
	candidates := []candidateRow{
		{codebaseName: "needs-bzr", bucket: "default", priority: 5, workerCapsNeeded: []string{"bzr"}},
		{codebaseName: "needs-git", bucket: "default", priority: 1, workerCapsNeeded: []string{"git"}},
	}

	picked := pickEligible(candidates, WorkerCapabilities{"git"})
	require.NotNil(t, picked)
	assert.Equal(t, "needs-git", picked.codebaseName)
}

func TestPickEligibleNoneMatch(t *testing.T) {
	candidates := []candidateRow{
		{codebaseName: "needs-bzr", bucket: "default", workerCapsNeeded: []string{"bzr"}},
	}
	assert.Nil(t, pickEligible(candidates, WorkerCapabilities{"git"}))
}

func TestPickEligibleTieBreaksDeterministically(t *testing.T) {
	now := time.Now()
	candidates := []candidateRow{
		{codebaseName: "zzz", bucket: "default", priority: 1, enqueuedAt: now},
		{codebaseName: "aaa", bucket: "default", priority: 1, enqueuedAt: now},
	}
	first := pickEligible(append([]candidateRow{}, candidates...), WorkerCapabilities{})
	second := pickEligible(append([]candidateRow{}, candidates...), WorkerCapabilities{})
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.codebaseName, second.codebaseName, "tie-break must be stable across repeated passes")
}

func TestNullableString(t *testing.T) {
	assert.Nil(t, nullableString(""))
	assert.Equal(t, "x", nullableString("x"))
}
