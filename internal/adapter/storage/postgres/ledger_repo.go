package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"glotrade-wallet/internal/core/domain"
	"glotrade-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const entryColumns = `id, wallet_id, wallet_version, position, amount, frozen_delta, credit_delta, currency,
	category, related_entity_id, idempotency_key, balance_after, actor_kind, actor_id, created_at`

// LedgerRepo implements ports.LedgerRepository. Entries are insert-only.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Insert appends one entry within a database transaction.
func (r *LedgerRepo) Insert(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.WalletID, e.WalletVersion, e.Position, e.Amount, e.FrozenDelta, e.CreditDelta, e.Currency,
		e.Category, e.RelatedEntityID, e.IdempotencyKey, e.BalanceAfter, e.Actor.Kind, e.Actor.ID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetByID fetches an entry by UUID.
func (r *LedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1`

	e, err := scanEntry(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify(fmt.Errorf("get ledger entry: %w", err))
	}
	return e, nil
}

// GetByIdempotencyKey fetches the entry that carries key.
func (r *LedgerRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE idempotency_key = $1`

	e, err := scanEntry(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		return nil, classify(fmt.Errorf("get ledger entry by idempotency key: %w", err))
	}
	return e, nil
}

// List fetches a wallet's entries in reverse commit order with filtering and
// pagination.
func (r *LedgerRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("wallet_id = $%d", argIdx))
	args = append(args, params.WalletID)
	argIdx++

	if params.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, *params.Category)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ledger_entries "+where, args...).Scan(&total); err != nil {
		return nil, 0, classify(fmt.Errorf("count ledger entries: %w", err))
	}

	page := max(params.Page, 1)
	offset := (page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM ledger_entries %s
		ORDER BY wallet_version DESC, position DESC LIMIT $%d OFFSET $%d`, entryColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, classify(fmt.Errorf("list ledger entries: %w", err))
	}
	defer rows.Close()

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ledger entry row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify(fmt.Errorf("iterate ledger entry rows: %w", err))
	}
	return entries, total, nil
}

// Totals sums a wallet's entries for reconciliation.
func (r *LedgerRepo) Totals(ctx context.Context, walletID uuid.UUID) (*domain.LedgerTotals, error) {
	query := `SELECT
		COALESCE(SUM(amount), 0)::BIGINT,
		COALESCE(SUM(frozen_delta), 0)::BIGINT,
		COALESCE(SUM(credit_delta), 0)::BIGINT,
		COUNT(*)
		FROM ledger_entries WHERE wallet_id = $1`

	t := &domain.LedgerTotals{}
	err := r.pool.QueryRow(ctx, query, walletID).Scan(&t.Amount, &t.FrozenDelta, &t.CreditDelta, &t.Entries)
	if err != nil {
		return nil, classify(fmt.Errorf("sum ledger entries: %w", err))
	}
	return t, nil
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	err := row.Scan(
		&e.ID, &e.WalletID, &e.WalletVersion, &e.Position, &e.Amount, &e.FrozenDelta, &e.CreditDelta, &e.Currency,
		&e.Category, &e.RelatedEntityID, &e.IdempotencyKey, &e.BalanceAfter, &e.Actor.Kind, &e.Actor.ID, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}
