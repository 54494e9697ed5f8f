package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"glotrade-wallet/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyCache implements ports.IdempotencyCache. It only shortcuts the
// ledger lookup; the ledger's unique key index stays authoritative.
type IdempotencyCache struct {
	client *goredis.Client
	prefix string
}

// NewIdempotencyCache creates a new Redis-backed receipt cache.
func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: "wallet:idem:",
	}
}

// Get returns the cached receipt for key, or nil, nil on a miss.
func (c *IdempotencyCache) Get(ctx context.Context, key string) (*domain.MovementReceipt, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis idempotency get: %w", err)
	}

	var receipt domain.MovementReceipt
	if err := json.Unmarshal(val, &receipt); err != nil {
		return nil, fmt.Errorf("decode cached receipt %q: %w", key, err)
	}
	return &receipt, nil
}

// Set caches a receipt for ttl.
func (c *IdempotencyCache) Set(ctx context.Context, key string, receipt domain.MovementReceipt, ttl time.Duration) error {
	val, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}
