//go:build integration

package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	coordredis "github.com/janitord/janitor/internal/coord/redis"
	janitorredis "github.com/janitord/janitor/pkg/redis"
)

// Integration test configuration. Start the test infrastructure with:
// docker-compose up -d
func testRedisURL() string {
	if url := os.Getenv("JANITOR_TEST_REDIS_URL"); url != "" {
		return url
	}
	return "redis://localhost:6379/1"
}

func TestPublishAndSubscribeRunFinished(t *testing.T) {
	ctx := context.Background()
	client, err := janitorredis.Open(ctx, testRedisURL())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sub := coordredis.SubscribeRunFinished(ctx, client)
	t.Cleanup(func() { _ = sub.Close() })

	_, err = sub.Receive(ctx)
	require.NoError(t, err)
	msgCh := sub.Channel()

	require.NoError(t, coordredis.PublishRunFinished(ctx, client, "01J000RUNID"))

	select {
	case msg := <-msgCh:
		require.Equal(t, "01J000RUNID", msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run-finished notification")
	}
}

func TestHeartbeatLifecycle(t *testing.T) {
	ctx := context.Background()
	client, err := janitorredis.Open(ctx, testRedisURL())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	runID := "01J000HEARTBEAT"
	require.NoError(t, coordredis.ClearHeartbeat(ctx, client, runID))

	alive, err := coordredis.HeartbeatAlive(ctx, client, runID)
	require.NoError(t, err)
	require.False(t, alive)

	require.NoError(t, coordredis.RecordHeartbeat(ctx, client, runID, 200*time.Millisecond))
	alive, err = coordredis.HeartbeatAlive(ctx, client, runID)
	require.NoError(t, err)
	require.True(t, alive)

	time.Sleep(300 * time.Millisecond)
	alive, err = coordredis.HeartbeatAlive(ctx, client, runID)
	require.NoError(t, err)
	require.False(t, alive, "heartbeat entry should have expired via TTL")
}
