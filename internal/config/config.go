// Package config loads the Janitor control plane's runtime configuration
// from the environment. Fields and nesting mirror the struct-tag convention
// used throughout the module (pkg/db.Config, pkg/logger.SentryConfig): every
// leaf is a primitive or time.Duration tagged with env/envDefault, and
// Load delegates the actual parsing to github.com/caarlos0/env/v11 so
// nested structs are populated in one pass.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/janitord/janitor/pkg/db"
	"github.com/janitord/janitor/pkg/logger"
	"github.com/janitord/janitor/pkg/storage"
)

// ArtifactConfig holds the env-sourced fields needed to build a
// storage.Config for the artifact store. storage.Config itself carries no
// env tags (the teacher constructs it by hand from already-loaded
// settings), so this struct is the env-tagged staging area; ToStorageConfig
// converts it.
type ArtifactConfig struct {
	Bucket    string `env:"JANITOR_ARTIFACT_BUCKET,required"`
	AccessKey string `env:"JANITOR_ARTIFACT_ACCESS_KEY,required"`
	SecretKey string `env:"JANITOR_ARTIFACT_SECRET_KEY,required"`
	Endpoint  string `env:"JANITOR_ARTIFACT_ENDPOINT"`
	Region    string `env:"JANITOR_ARTIFACT_REGION" envDefault:"us-east-1"`
	PathStyle bool   `env:"JANITOR_ARTIFACT_PATH_STYLE" envDefault:"false"`
}

// Config is the complete set of environment-derived settings janitord needs
// to start: storage backends, the administrative API's signing secret, and
// the timing knobs that govern the queue/registry/scheduler/publisher state
// machines.
type Config struct {
	// HTTPAddr is the address the Runner/admin HTTP API listens on.
	HTTPAddr string `env:"JANITOR_HTTP_ADDR" envDefault:":8080"`

	Database db.Config
	Sentry   logger.SentryConfig

	// RedisURL is the ephemeral coordination store (run-finished pub/sub,
	// scheduler cooldown keys, distributed locks). Unlike Postgres it holds no data that
	// must survive a restart, so it is a single URL rather than a nested
	// pool config.
	RedisURL string `env:"JANITOR_REDIS_URL,required"`

	Artifact ArtifactConfig

	// AdminTokenSecret signs and verifies the bearer tokens accepted by the
	// administrative API (pkg/jwt.Service). It must be at least 32 bytes;
	// pkg/jwt.NewFromString enforces that at startup.
	AdminTokenSecret string `env:"JANITOR_ADMIN_TOKEN_SECRET,required"`

	// RunnerUploadTokenSecret signs the short-lived per-run upload tokens
	// handed to workers at assignment time, kept separate from the admin
	// secret so rotating one never invalidates the other.
	RunnerUploadTokenSecret string `env:"JANITOR_RUNNER_TOKEN_SECRET,required"`

	// GitHubToken authenticates internal/forgeclient's GitHub backend.
	// Optional: a codebase with no configured forge host simply can't
	// publish, it can still be queued/run/ingested.
	GitHubToken string `env:"JANITOR_GITHUB_TOKEN"`

	// SSHAuthSock records SSH_AUTH_SOCK from the environment. It is not
	// passed to internal/vcsclient: vcsclient.NewGit takes no settings.
	SSHAuthSock string `env:"SSH_AUTH_SOCK"`

	// HeartbeatInterval is the worker heartbeat period. No component of
	// janitord reads it: the reaper scans every ReaperInterval, judges
	// liveness by HeartbeatTimeout, and no Redis heartbeat entry is written.
	HeartbeatInterval time.Duration `env:"JANITOR_HEARTBEAT_INTERVAL" envDefault:"30s"`

	// HeartbeatTimeout is how long a run may go without a heartbeat before
	// the reaper considers it TimedOut.
	HeartbeatTimeout time.Duration `env:"JANITOR_HEARTBEAT_TIMEOUT" envDefault:"5m"`

	// ReaperInterval is the reaper's poll period for stale Running/Assigning
	// rows.
	ReaperInterval time.Duration `env:"JANITOR_REAPER_INTERVAL" envDefault:"1m"`

	// AssignHandshakeTimeout is loaded but not read by the reaper: a run
	// still in Assigning is timed out by HeartbeatTimeout, counted from its
	// assignment time.
	AssignHandshakeTimeout time.Duration `env:"JANITOR_ASSIGN_HANDSHAKE_TIMEOUT" envDefault:"60s"`

	// RunWallClockDefault is the lifetime of the per-run upload token minted
	// at assignment; once it expires, requests presenting that token are
	// rejected. The reaper does not time runs out on it, and no per-codebase
	// or per-campaign override is read.
	RunWallClockDefault time.Duration `env:"JANITOR_RUN_WALL_CLOCK_DEFAULT" envDefault:"2h"`

	// MaxRequeueAttempts is the reaper's ceiling for a timed-out run's queue
	// entry: the entry is re-queued at most MaxRequeueAttempts-1 times, and
	// the next timeout drops it.
	MaxRequeueAttempts int `env:"JANITOR_MAX_REQUEUE_ATTEMPTS" envDefault:"5"`

	// SchedulerInterval is the recompute period for the candidate-to-queue
	// periodic task.
	SchedulerInterval time.Duration `env:"JANITOR_SCHEDULER_INTERVAL" envDefault:"5m"`

	// SchedulerCooldown is the minimum time between two recomputes of the
	// same codebase, absent a control-triggered bypass.
	SchedulerCooldown time.Duration `env:"JANITOR_SCHEDULER_COOLDOWN" envDefault:"10m"`

	// RescanInterval is the publisher's poll period for open merge
	// proposals whose last_scanned_at has gone stale.
	RescanInterval time.Duration `env:"JANITOR_RESCAN_INTERVAL" envDefault:"15m"`

	// RescanStaleAfter is how old a proposal's last_scanned_at must be
	// before the rescan loop re-queries its forge.
	RescanStaleAfter time.Duration `env:"JANITOR_RESCAN_STALE_AFTER" envDefault:"1h"`

	// ForgeCallTimeout is loaded but not passed to internal/forgeclient,
	// which bounds each GitHub API call by its own fixed CallTimeout.
	ForgeCallTimeout time.Duration `env:"JANITOR_FORGE_CALL_TIMEOUT" envDefault:"1m"`

	// PublishLockTTL bounds how long internal/coord/lock holds the
	// (forge-host, bucket) publish lock before it is considered abandoned.
	PublishLockTTL time.Duration `env:"JANITOR_PUBLISH_LOCK_TTL" envDefault:"2m"`

	// WorkerPoolSize is loaded but not read: artifact hashing and proposal
	// body sanitization run on the goroutine that needs them, with no shared
	// bounded pool.
	WorkerPoolSize int `env:"JANITOR_WORKER_POOL_SIZE" envDefault:"4"`
}

// ToStorageConfig builds the storage.Config the artifact store expects.
// storage.New fills in DefaultACL/MaxDownloadSize itself.
func (a ArtifactConfig) ToStorageConfig() storage.Config {
	return storage.Config{
		Bucket:    a.Bucket,
		AccessKey: a.AccessKey,
		SecretKey: a.SecretKey,
		Endpoint:  a.Endpoint,
		Region:    a.Region,
		PathStyle: a.PathStyle,
	}
}

// Load reads Config from the process environment, applying envDefault
// values for anything unset. A required field left empty is reported as an
// error rather than silently zero-valued.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return &cfg, nil
}
