// Package lock provides Redis-backed distributed mutexes used to
// serialize sync runs per mailbox.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ingest_server/pkg/apperr"
)

const (
	defaultTTL        = 2 * time.Minute
	defaultRetryDelay = 100 * time.Millisecond

	// Release only deletes the key when it still holds our token,
	// so an expired lock taken over by another worker is left alone.
	releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`
)

// RedisLocker acquires per-key mutexes via SET NX with TTL.
type RedisLocker struct {
	client     *redis.Client
	ttl        time.Duration
	retryDelay time.Duration
}

// NewRedisLocker creates a locker with the given lock TTL.
// A non-positive ttl falls back to the default of 2 minutes.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{
		client:     client,
		ttl:        ttl,
		retryDelay: defaultRetryDelay,
	}
}

// Acquire blocks until the lock for key is held or ctx expires.
// The returned func releases the lock and is safe to call once.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	lockKey := "lock:" + key

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, apperr.DatabaseError("acquire lock", err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				l.client.Eval(releaseCtx, releaseScript, []string{lockKey}, token)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, apperr.Timeout("acquire lock: " + key)
		case <-time.After(l.retryDelay):
		}
	}
}
