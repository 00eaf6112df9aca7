//go:build integration

package lock_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/janitord/janitor/internal/coord/lock"
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

func TestAcquireExclusive(t *testing.T) {
	ctx := context.Background()
	client, err := janitorredis.Open(ctx, testRedisURL())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	key := "test:publisher:github.com:default"
	_ = client.Del(ctx, key)

	first, err := lock.Acquire(ctx, client, key, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Release(ctx) })

	_, err = lock.Acquire(ctx, client, key, 5*time.Second)
	require.ErrorIs(t, err, lock.ErrNotAcquired)

	require.NoError(t, first.Release(ctx))

	second, err := lock.Acquire(ctx, client, key, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestReleaseIsIdempotentAndTokenScoped(t *testing.T) {
	ctx := context.Background()
	client, err := janitorredis.Open(ctx, testRedisURL())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	key := "test:publisher:gitlab.com:default"
	_ = client.Del(ctx, key)

	l, err := lock.Acquire(ctx, client, key, 1*time.Second)
	require.NoError(t, err)

	require.NoError(t, l.Release(ctx))
	require.NoError(t, l.Release(ctx), "second release must not error")

	// someone else takes the now-free key
	other, err := lock.Acquire(ctx, client, key, 5*time.Second)
	require.NoError(t, err)
	defer func() { _ = other.Release(ctx) }()

	// the original lock's token no longer matches; releasing it again must
	// not evict the new holder
	require.NoError(t, l.Release(ctx))
	alive, err := client.Get(ctx, key).Result()
	require.NoError(t, err)
	require.NotEmpty(t, alive)
}
