package postgres

import (
	"context"
	"errors"
	"fmt"

	"glotrade-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const freezeColumns = `id, wallet_id, amount, reason, placed_by_kind, placed_by_id, placed_at,
	released_at, released_by_kind, released_by_id, replaces_id`

// FreezeRepo implements ports.FreezeRepository.
type FreezeRepo struct {
	pool Pool
}

// NewFreezeRepo creates a new FreezeRepo.
func NewFreezeRepo(pool Pool) *FreezeRepo {
	return &FreezeRepo{pool: pool}
}

// Insert records a new active freeze within a database transaction.
func (r *FreezeRepo) Insert(ctx context.Context, tx pgx.Tx, f *domain.FreezeRecord) error {
	query := `INSERT INTO wallet_freezes (id, wallet_id, amount, reason, placed_by_kind, placed_by_id, placed_at, replaces_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		f.ID, f.WalletID, f.Amount, f.Reason, f.PlacedBy.Kind, f.PlacedBy.ID, f.PlacedAt, f.ReplacesID,
	)
	if err != nil {
		return fmt.Errorf("insert freeze: %w", err)
	}
	return nil
}

// Release marks a freeze released if it is still active. It MUST be called
// within a transaction.
func (r *FreezeRepo) Release(ctx context.Context, tx pgx.Tx, rel *domain.FreezeRelease) error {
	query := `UPDATE wallet_freezes SET released_at = $1, released_by_kind = $2, released_by_id = $3
		WHERE id = $4 AND released_at IS NULL`

	tag, err := tx.Exec(ctx, query, rel.ReleasedAt, rel.ReleasedBy.Kind, rel.ReleasedBy.ID, rel.FreezeID)
	if err != nil {
		return fmt.Errorf("release freeze: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrFreezeAlreadyReleased
	}
	return nil
}

// GetByID fetches a freeze by UUID.
func (r *FreezeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.FreezeRecord, error) {
	query := `SELECT ` + freezeColumns + ` FROM wallet_freezes WHERE id = $1`

	f, err := scanFreeze(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify(fmt.Errorf("get freeze: %w", err))
	}
	return f, nil
}

// ListByWallet returns every freeze on a wallet, newest first.
func (r *FreezeRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.FreezeRecord, error) {
	query := `SELECT ` + freezeColumns + ` FROM wallet_freezes WHERE wallet_id = $1 ORDER BY placed_at DESC`

	rows, err := r.pool.Query(ctx, query, walletID)
	if err != nil {
		return nil, classify(fmt.Errorf("list freezes: %w", err))
	}
	defer rows.Close()

	freezes := []domain.FreezeRecord{}
	for rows.Next() {
		f, err := scanFreeze(rows)
		if err != nil {
			return nil, fmt.Errorf("scan freeze row: %w", err)
		}
		freezes = append(freezes, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate freeze rows: %w", err))
	}
	return freezes, nil
}

// SumActive totals the unreleased freezes on a wallet.
func (r *FreezeRepo) SumActive(ctx context.Context, walletID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0)::BIGINT FROM wallet_freezes WHERE wallet_id = $1 AND released_at IS NULL`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, walletID).Scan(&sum); err != nil {
		return 0, classify(fmt.Errorf("sum active freezes: %w", err))
	}
	return sum, nil
}

func scanFreeze(row pgx.Row) (*domain.FreezeRecord, error) {
	f := &domain.FreezeRecord{}
	var releasedKind, releasedID *string
	err := row.Scan(
		&f.ID, &f.WalletID, &f.Amount, &f.Reason, &f.PlacedBy.Kind, &f.PlacedBy.ID, &f.PlacedAt,
		&f.ReleasedAt, &releasedKind, &releasedID, &f.ReplacesID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if releasedKind != nil && releasedID != nil {
		f.ReleasedBy = &domain.Actor{Kind: domain.ActorKind(*releasedKind), ID: *releasedID}
	}
	return f, nil
}
