// Package lock provides a single-instance distributed lock over Redis,
// used by the Publisher to serialize publish actions per (forge-host,
// bucket) so two Active Runs finishing concurrently never race to propose
// against the same codebase.
//
// This is intentionally the minimal-safe subset of Redlock — SET NX PX to
// acquire, a Lua compare-and-delete to release — rather than the
// multi-instance quorum algorithm; a single Redis instance backed by the
// control plane's own pkg/redis connection is the deployment target, not a
// distributed Redis cluster each node could independently fail against.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned by Acquire when the lock is already held.
var ErrNotAcquired = errors.New("lock: not acquired")

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Lock is a held distributed lock. Release is idempotent and safe to call
// more than once (e.g. from both a defer and an explicit early-release).
type Lock struct {
	client redis.UniversalClient
	key    string
	token  string
}

// Acquire attempts to take the lock identified by key, held for at most
// ttl. Callers should keep ttl comfortably longer than the critical
// section it guards — the Publisher's per-(host,bucket) publish attempt —
// since an expired lock can be re-acquired by someone else mid-operation.
func Acquire(ctx context.Context, client redis.UniversalClient, key string, ttl time.Duration) (*Lock, error) {
	token, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("lock: generate token: %w", err)
	}

	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return &Lock{client: client, key: key, token: token}, nil
}

// Release drops the lock if and only if it is still held by this Lock's
// token, so a lock this holder lost to TTL expiry (and someone else
// re-acquired) is never accidentally released out from under its new
// owner.
func (l *Lock) Release(ctx context.Context) error {
	if err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("lock: release %s: %w", l.key, err)
	}
	return nil
}

func randomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
