package ports

//go:generate mockgen -destination=mocks/repositories.go -package=mocks glotrade-wallet/internal/core/ports WalletRepository,LedgerRepository,FreezeRepository,RewardStateRepository,LedgerStore

import (
	"context"
	"time"

	"glotrade-wallet/internal/core/domain"

	"github.com/google/uuid"
)

// WalletRepository reads wallet projections. Writes go through LedgerStore.
type WalletRepository interface {
	// GetOrCreate returns the wallet for key, creating an empty one if absent.
	GetOrCreate(ctx context.Context, key domain.WalletKey) (*domain.WalletAccount, error)
	// GetByKey returns nil, nil when the wallet does not exist.
	GetByKey(ctx context.Context, key domain.WalletKey) (*domain.WalletAccount, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WalletAccount, error)
	// Archive soft-archives the wallet. It returns false if no wallet exists.
	Archive(ctx context.Context, key domain.WalletKey, at time.Time) (bool, error)
}

// LedgerListParams filters a wallet's entry history.
type LedgerListParams struct {
	WalletID uuid.UUID
	Category *domain.Category
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// LedgerRepository reads the append-only entry log.
type LedgerRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	// GetByIdempotencyKey returns nil, nil when no entry carries key.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error)
	List(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
	Totals(ctx context.Context, walletID uuid.UUID) (*domain.LedgerTotals, error)
}

// FreezeRepository reads freeze records.
type FreezeRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.FreezeRecord, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.FreezeRecord, error)
	SumActive(ctx context.Context, walletID uuid.UUID) (int64, error)
}

// RewardStateRepository persists the reward schedule of enrolled accounts.
type RewardStateRepository interface {
	// Enroll registers key for rewards; enrolling twice is a no-op.
	Enroll(ctx context.Context, key domain.WalletKey, at time.Time) error
	Get(ctx context.Context, key domain.WalletKey) (*domain.RewardState, error)
	ListEnrolled(ctx context.Context) ([]domain.RewardState, error)
	Save(ctx context.Context, state *domain.RewardState) error
}

// LedgerStore applies a LedgerCommit atomically: either the wallet update,
// every entry and the freeze changes all persist, or none do.
//
// Commit returns domain.ErrVersionConflict when the wallet moved past
// ExpectedVersion, domain.ErrDuplicateIdempotencyKey when an entry's key is
// taken, domain.ErrFreezeAlreadyReleased when a release lost a race and
// wraps domain.ErrTransientStorage for retryable backend failures.
type LedgerStore interface {
	Commit(ctx context.Context, commit *domain.LedgerCommit) error
}
