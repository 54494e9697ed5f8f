package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"glotrade-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, owner_id, currency, available, frozen, credit_limit, credit_used,
	version, archived_at, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// GetOrCreate inserts an empty wallet unless one already exists for key,
// then reads the stored row. Concurrent callers converge on the same row.
func (r *WalletRepo) GetOrCreate(ctx context.Context, key domain.WalletKey) (*domain.WalletAccount, error) {
	w := domain.NewWalletAccount(key, time.Now().UTC())
	insert := `INSERT INTO wallets (id, owner_id, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (owner_id, currency) DO NOTHING`

	if _, err := r.pool.Exec(ctx, insert, w.ID, w.OwnerID, w.Currency, w.CreatedAt); err != nil {
		return nil, classify(fmt.Errorf("insert wallet: %w", err))
	}

	stored, err := r.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("wallet %s vanished after insert", key)
	}
	return stored, nil
}

// GetByKey fetches a wallet by owner and currency.
func (r *WalletRepo) GetByKey(ctx context.Context, key domain.WalletKey) (*domain.WalletAccount, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1 AND currency = $2`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, key.OwnerID, key.Currency))
	if err != nil {
		return nil, classify(fmt.Errorf("get wallet by key: %w", err))
	}
	return w, nil
}

// GetByID fetches a wallet by its UUID.
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WalletAccount, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify(fmt.Errorf("get wallet by id: %w", err))
	}
	return w, nil
}

// Archive stamps archived_at once. The version bump makes any commit
// planned against the live wallet fail its compare-and-swap.
func (r *WalletRepo) Archive(ctx context.Context, key domain.WalletKey, at time.Time) (bool, error) {
	query := `UPDATE wallets
		SET version = CASE WHEN archived_at IS NULL THEN version + 1 ELSE version END,
			updated_at = CASE WHEN archived_at IS NULL THEN $3 ELSE updated_at END,
			archived_at = COALESCE(archived_at, $3)
		WHERE owner_id = $1 AND currency = $2`

	tag, err := r.pool.Exec(ctx, query, key.OwnerID, key.Currency, at)
	if err != nil {
		return false, classify(fmt.Errorf("archive wallet: %w", err))
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateVersioned writes the wallet balances if the stored version still
// equals expected. It MUST be called within a transaction.
func (r *WalletRepo) UpdateVersioned(ctx context.Context, tx pgx.Tx, w *domain.WalletAccount, expected int64) error {
	query := `UPDATE wallets
		SET available = $1, frozen = $2, credit_limit = $3, credit_used = $4, version = $5, updated_at = $6
		WHERE id = $7 AND version = $8`

	tag, err := tx.Exec(ctx, query,
		w.Available, w.Frozen, w.CreditLimit, w.CreditUsed, w.Version, w.UpdatedAt,
		w.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.WalletAccount, error) {
	w := &domain.WalletAccount{}
	err := row.Scan(
		&w.ID, &w.OwnerID, &w.Currency, &w.Available, &w.Frozen,
		&w.CreditLimit, &w.CreditUsed, &w.Version, &w.ArchivedAt,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}
