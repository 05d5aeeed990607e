// Package lock provides cross-process mutual exclusion for scan
// invocations. Overlapping scheduler fires must not double-run a cycle, so
// an invocation blocks, polling, until it owns the lock or times out.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockTimeout is returned when the lock could not be acquired within the
// timeout. It is distinguishable so the scheduler can alert on starvation.
var ErrLockTimeout = errors.New("scan lock timeout")

const pollInterval = time.Second

// releaseScript deletes the key only when it still holds our token, so an
// expired-and-reacquired lock is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a single named lock backed by SET NX PX. The TTL bounds how
// long a crashed holder can starve other invocations.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// New creates a lock on the given key.
func New(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{client: client, key: key, ttl: ttl}
}

// Acquire blocks, polling, until the lock is held or the timeout elapses.
// On success it returns a release function that must be called on every exit
// path; releasing is safe even after the TTL already expired the key.
func (l *RedisLock) Acquire(ctx context.Context, timeout time.Duration) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(timeout)

	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", l.key, err)
		}

		if ok {
			return func() { l.release(token) }, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// release runs with its own context so the lock is freed even when the
// invocation's context is already cancelled.
func (l *RedisLock) release(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
}
