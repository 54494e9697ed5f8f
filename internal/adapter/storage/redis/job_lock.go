package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the lease TTL only while it still holds our token.
var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// JobLock implements ports.JobLock as a Redis lease (SET NX PX).
type JobLock struct {
	client *goredis.Client
	prefix string
}

// NewJobLock creates a new Redis-backed job lock.
func NewJobLock(client *goredis.Client) *JobLock {
	return &JobLock{
		client: client,
		prefix: "wallet:lock:",
	}
}

// Acquire takes the lease for name if nobody holds it.
func (l *JobLock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+name, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis lock acquire %q: %w", name, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Extend pushes the lease expiry out to ttl from now if token still owns it.
func (l *JobLock) Extend(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, l.client, []string{l.prefix + name}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis lock extend %q: %w", name, err)
	}
	return n == 1, nil
}

// Release drops the lease if token still owns it. A lease that expired
// and was taken by another holder is left alone.
func (l *JobLock) Release(ctx context.Context, name, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + name}, token).Err(); err != nil {
		return fmt.Errorf("redis lock release %q: %w", name, err)
	}
	return nil
}
