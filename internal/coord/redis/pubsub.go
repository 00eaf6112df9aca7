// Package redis adds the Janitor-specific coordination primitives on top of
// the connection pooling, retry, and health-check machinery in pkg/redis:
// run-finished pub/sub notification and a per-run heartbeat TTL cache.
// The Active-Run Registry's reaper does not read that cache; it detects
// stalled workers from last_heartbeat_at in Postgres.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RunFinishedChannel is the pub/sub channel the Result Ingestor publishes
// to on commit and the Publisher subscribes to so it can react to a
// freshly-ingested run without waiting for its own poll interval.
const RunFinishedChannel = "janitor:run-finished"

// PublishRunFinished notifies subscribers that runID has been ingested.
// Delivery is best-effort. The Publisher's periodic rescan covers open
// merge proposals only, so a run whose notification is dropped is not
// published by it.
func PublishRunFinished(ctx context.Context, client goredis.UniversalClient, runID string) error {
	if err := client.Publish(ctx, RunFinishedChannel, runID).Err(); err != nil {
		return fmt.Errorf("coord/redis: publish run-finished %s: %w", runID, err)
	}
	return nil
}

// SubscribeRunFinished returns a PubSub subscribed to RunFinishedChannel.
// Callers must Close() it when done.
func SubscribeRunFinished(ctx context.Context, client goredis.UniversalClient) *goredis.PubSub {
	return client.Subscribe(ctx, RunFinishedChannel)
}

func heartbeatKey(runID string) string {
	return "janitor:heartbeat:" + runID
}

// RecordHeartbeat refreshes the TTL cache entry for runID, which expires
// after timeout unless refreshed again. The Runner API's heartbeat handler
// does not call it, and the reaper does not consult the cache.
func RecordHeartbeat(ctx context.Context, client goredis.UniversalClient, runID string, timeout time.Duration) error {
	if err := client.Set(ctx, heartbeatKey(runID), time.Now().UTC().Format(time.RFC3339Nano), timeout).Err(); err != nil {
		return fmt.Errorf("coord/redis: record heartbeat for %s: %w", runID, err)
	}
	return nil
}

// HeartbeatAlive reports whether runID still has a live heartbeat cache
// entry. A cache miss does not necessarily mean the run has timed out —
// Redis is treated as an ephemeral accelerator, never the source of
// truth — so callers should confirm against Postgres before transitioning
// a run to TimedOut.
func HeartbeatAlive(ctx context.Context, client goredis.UniversalClient, runID string) (bool, error) {
	_, err := client.Get(ctx, heartbeatKey(runID)).Result()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("coord/redis: check heartbeat for %s: %w", runID, err)
	}
	return true, nil
}

// ClearHeartbeat removes the cache entry once a run reaches a terminal
// state so a stale TTL entry never outlives the run it tracked.
func ClearHeartbeat(ctx context.Context, client goredis.UniversalClient, runID string) error {
	if err := client.Del(ctx, heartbeatKey(runID)).Err(); err != nil {
		return fmt.Errorf("coord/redis: clear heartbeat for %s: %w", runID, err)
	}
	return nil
}
