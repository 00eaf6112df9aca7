// Command janitord runs the Janitor control plane: the Queue Manager,
// Active-Run Registry, Scheduler, Result Ingestor, and Publisher, behind
// the Runner HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	goredis "github.com/redis/go-redis/v9"

	"github.com/janitord/janitor/internal/activerun"
	"github.com/janitord/janitor/internal/api"
	"github.com/janitord/janitor/internal/artifact"
	"github.com/janitord/janitor/internal/config"
	coordredis "github.com/janitord/janitor/internal/coord/redis"
	"github.com/janitord/janitor/internal/forgeclient"
	"github.com/janitord/janitor/internal/httpserver"
	"github.com/janitord/janitor/internal/ingest"
	"github.com/janitord/janitor/internal/logging"
	"github.com/janitord/janitor/internal/metrics"
	"github.com/janitord/janitor/internal/publish"
	"github.com/janitord/janitor/internal/queue"
	"github.com/janitord/janitor/internal/runnerapi"
	"github.com/janitord/janitor/internal/scheduler"
	"github.com/janitord/janitor/internal/store"
	"github.com/janitord/janitor/internal/vcsclient"
	"github.com/janitord/janitor/middlewares"
	"github.com/janitord/janitor/pkg/db"
	"github.com/janitord/janitor/pkg/job"
	"github.com/janitord/janitor/pkg/jwt"
	pkgredis "github.com/janitord/janitor/pkg/redis"
	"github.com/janitord/janitor/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("janitord: fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(cfg.Sentry)

	ctx := context.Background()

	pool, err := store.Open(ctx, cfg.Database.ConnectionString, log,
		db.WithMaxConns(cfg.Database.MaxOpenConns),
		db.WithMinConns(cfg.Database.MinConns),
		db.WithHealthCheckPeriod(cfg.Database.HealthCheckPeriod),
		db.WithMaxConnIdleTime(cfg.Database.MaxConnIdleTime),
		db.WithMaxConnLifetime(cfg.Database.MaxConnLifetime),
		db.WithRetry(cfg.Database.RetryAttempts, cfg.Database.RetryInterval),
	)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()

	redisClient, err := pkgredis.Open(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("open redis: %w", err)
	}
	defer redisClient.Close()

	backend, err := storage.New(cfg.Artifact.ToStorageConfig())
	if err != nil {
		return fmt.Errorf("open artifact storage: %w", err)
	}
	artifacts := artifact.New(backend)

	adminTokens, err := jwt.NewFromString(cfg.AdminTokenSecret)
	if err != nil {
		return fmt.Errorf("init admin token service: %w", err)
	}
	uploadTokens, err := jwt.NewFromString(cfg.RunnerUploadTokenSecret)
	if err != nil {
		return fmt.Errorf("init upload token service: %w", err)
	}

	var forge forgeclient.Forge
	if cfg.GitHubToken != "" {
		forge, err = forgeclient.NewGitHub(ctx, cfg.GitHubToken)
		if err != nil {
			return fmt.Errorf("init github forge client: %w", err)
		}
	}
	vcs := vcsclient.NewGit()

	registry := activerun.NewPostgresRegistry(pool, log)
	queueManager := queue.NewPostgresManager(pool, log)
	ingestor := ingest.New(pool, artifacts, redisClient, log)
	sched := scheduler.New(pool, redisClient, cfg.SchedulerCooldown, log)
	publisher := publish.New(pool, redisClient, forge, vcs, cfg.PublishLockTTL, cfg.RescanStaleAfter,
		publish.NewProposalTemplate(), log)
	reaper := activerun.NewReaper(registry, cfg.ReaperInterval, cfg.HeartbeatTimeout, cfg.MaxRequeueAttempts, log)

	jobManager, err := job.NewManager(pool,
		job.WithLogger(log),
		job.WithScheduledTask(scheduler.NewRecomputeTask(sched, cfg.SchedulerInterval)),
		job.WithScheduledTask(publish.NewRescanTask(publisher, cfg.RescanInterval)),
	)
	if err != nil {
		return fmt.Errorf("init job manager: %w", err)
	}

	runTask := publish.NewRunTask(publisher)
	runFinishedSub := coordredis.SubscribeRunFinished(ctx, redisClient)
	runFinishedDone := make(chan struct{})
	go consumeRunFinished(ctx, runFinishedSub, runTask, log, runFinishedDone)

	handler := &runnerapi.Handler{
		Queue:        queueManager,
		Registry:     registry,
		Ingestor:     ingestor,
		Scheduler:    sched,
		Publisher:    publisher,
		Artifacts:    artifacts,
		UploadTokens: uploadTokens,
		RunTokenTTL:  cfg.RunWallClockDefault,
		Logger:       log,
		Pool:         pool,
		AdminAuth:    middlewares.JWT[jwt.StandardClaims](adminTokens),
	}

	app := httpserver.New(
		httpserver.WithAddress(cfg.HTTPAddr),
		httpserver.WithLogger(log),
		httpserver.WithHandlers(handler, metrics.RouteHandler{}),
		httpserver.WithErrorHandler(func(c api.Context, err error) {
			if httpErr := api.AsHTTPError(err); httpErr != nil {
				if httpErr.RetryAfter > 0 {
					c.SetHeader("Retry-After", fmt.Sprint(httpErr.RetryAfter))
				}
				_ = c.JSON(httpErr.Code, map[string]string{"error": httpErr.Message})
				return
			}
			log.Error("janitord: handler error", "error", err)
			_ = c.JSON(500, map[string]string{"error": "internal error"})
		}),
		httpserver.WithHealthChecks(
			httpserver.WithReadinessCheck("postgres", func(ctx context.Context) error {
				return pool.Ping(ctx)
			}),
			httpserver.WithReadinessCheck("redis", func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}),
		),
		httpserver.WithStartupHook(func(ctx context.Context) error {
			go reaper.Run(ctx)
			return jobManager.Start(ctx)
		}),
		httpserver.WithShutdownHook(func(ctx context.Context) error {
			close(runFinishedDone)
			return jobManager.Stop(ctx)
		}),
	)

	return app.Run()
}

// consumeRunFinished drains the run-finished pub/sub channel and hands
// each notified run id to the Publisher. It runs for the life of the
// process; done is closed during shutdown to stop the loop.
func consumeRunFinished(ctx context.Context, sub *goredis.PubSub, task *publish.RunTask, log *slog.Logger, done <-chan struct{}) {
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := task.Handle(ctx, msg.Payload); err != nil {
				log.Warn("janitord: process run-finished notification failed",
					"run_id", msg.Payload, "error", err)
			}
		}
	}
}

var _ api.Handler = (*runnerapi.Handler)(nil)
