package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/janitord/janitor/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_CONN_URL", "postgres://localhost/janitor")
	t.Setenv("JANITOR_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JANITOR_ARTIFACT_BUCKET", "janitor-artifacts")
	t.Setenv("JANITOR_ARTIFACT_ACCESS_KEY", "ak")
	t.Setenv("JANITOR_ARTIFACT_SECRET_KEY", "sk")
	t.Setenv("JANITOR_ADMIN_TOKEN_SECRET", "a-secret-key-that-is-long-enough-ok")
	t.Setenv("JANITOR_RUNNER_TOKEN_SECRET", "another-secret-key-long-enough-too")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, "us-east-1", cfg.Artifact.Region)
	require.Equal(t, 5, cfg.MaxRequeueAttempts)
}

func TestLoadMissingRequiredFails(t *testing.T) {
	t.Setenv("DATABASE_CONN_URL", "")
	_, err := config.Load()
	require.Error(t, err)
}

func TestArtifactConfigToStorageConfig(t *testing.T) {
	a := config.ArtifactConfig{
		Bucket:    "b",
		AccessKey: "ak",
		SecretKey: "sk",
		Region:    "eu-west-1",
	}
	sc := a.ToStorageConfig()
	require.Equal(t, "b", sc.Bucket)
	require.Equal(t, "eu-west-1", sc.Region)
}
