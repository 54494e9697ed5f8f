package ports

//go:generate mockgen -destination=mocks/infrastructure.go -package=mocks glotrade-wallet/internal/core/ports IdempotencyCache,JobLock,PaymentVerifier

import (
	"context"
	"time"

	"glotrade-wallet/internal/core/domain"
)

// IdempotencyCache is the fast path in front of the ledger's key index.
type IdempotencyCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, key string) (*domain.MovementReceipt, error)
	Set(ctx context.Context, key string, receipt domain.MovementReceipt, ttl time.Duration) error
}

// JobLock is a lease shared by all service instances.
type JobLock interface {
	// Acquire returns a token and true when the lease was taken.
	Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	// Extend resets the lease to ttl and reports false once token no longer
	// owns it.
	Extend(ctx context.Context, name string, token string, ttl time.Duration) (bool, error)
	// Release drops the lease only if token still owns it.
	Release(ctx context.Context, name string, token string) error
}

// PaymentVerifier confirms a payment reference with its provider.
type PaymentVerifier interface {
	// Name is the provider identifier used in requests and webhooks.
	Name() string
	// Verify returns domain.ErrTopUpNotFound for unknown references.
	Verify(ctx context.Context, reference string) (*domain.VerifiedPayment, error)
}
