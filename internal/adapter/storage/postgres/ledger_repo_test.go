package postgres

import (
	"context"
	"testing"
	"time"

	"glotrade-wallet/internal/core/domain"
	"glotrade-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func newTestEntry(walletID uuid.UUID) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:              uuid.New(),
		WalletID:        walletID,
		WalletVersion:   1,
		Amount:          50000,
		Currency:        domain.NGN,
		Category:        domain.CategoryTopup,
		RelatedEntityID: strPtr("paystack"),
		IdempotencyKey:  strPtr("ref-001"),
		BalanceAfter:    50000,
		Actor:           domain.SystemActor("checkout"),
		CreatedAt:       time.Now().UTC().Truncate(time.Microsecond),
	}
}

func entryColumnNames() []string {
	return []string{"id", "wallet_id", "wallet_version", "position", "amount", "frozen_delta", "credit_delta", "currency",
		"category", "related_entity_id", "idempotency_key", "balance_after", "actor_kind", "actor_id", "created_at"}
}

func entryRows(entries ...*domain.LedgerEntry) *pgxmock.Rows {
	rows := pgxmock.NewRows(entryColumnNames())
	for _, e := range entries {
		rows.AddRow(
			e.ID, e.WalletID, e.WalletVersion, e.Position, e.Amount, e.FrozenDelta, e.CreditDelta, e.Currency,
			e.Category, e.RelatedEntityID, e.IdempotencyKey, e.BalanceAfter, e.Actor.Kind, e.Actor.ID, e.CreatedAt,
		)
	}
	return rows
}

func TestLedgerRepo_Insert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.WalletID, e.WalletVersion, e.Position, e.Amount, e.FrozenDelta, e.CreditDelta, e.Currency,
			e.Category, e.RelatedEntityID, e.IdempotencyKey, e.BalanceAfter, e.Actor.Kind, e.Actor.ID, e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Insert(context.Background(), tx, e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByIdempotencyKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE idempotency_key").
		WithArgs("ref-001").
		WillReturnRows(entryRows(e))
	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE idempotency_key").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByIdempotencyKey(context.Background(), "ref-001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, domain.ActorSystem, got.Actor.Kind)
	require.NotNil(t, got.RelatedEntityID)
	assert.Equal(t, "paystack", *got.RelatedEntityID)

	missing, err := repo.GetByIdempotencyKey(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_List_WithCategoryFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	walletID := uuid.New()
	e1 := newTestEntry(walletID)
	e2 := newTestEntry(walletID)
	e2.IdempotencyKey = nil

	cat := domain.CategoryTopup
	mock.ExpectQuery("SELECT COUNT.+ FROM ledger_entries WHERE wallet_id .+ AND category").
		WithArgs(walletID, cat).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))
	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE wallet_id .+ ORDER BY wallet_version DESC, position DESC").
		WithArgs(walletID, cat, 2, 2).
		WillReturnRows(entryRows(e1, e2))

	entries, total, err := repo.List(context.Background(), ports.LedgerListParams{
		WalletID: walletID,
		Category: &cat,
		Page:     2,
		PageSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	require.Len(t, entries, 2)
	assert.Nil(t, entries[1].IdempotencyKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_List_ReturnsCommitOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	walletID := uuid.New()
	at := time.Now().UTC().Truncate(time.Microsecond)

	// A credit drawdown and its debit share one commit and one timestamp.
	drawdown := newTestEntry(walletID)
	drawdown.WalletVersion, drawdown.Position = 4, 0
	drawdown.Category, drawdown.Amount, drawdown.CreditDelta = domain.CategoryCreditDrawdown, 300, 300
	drawdown.IdempotencyKey = nil
	drawdown.CreatedAt = at
	debit := newTestEntry(walletID)
	debit.WalletVersion, debit.Position = 4, 1
	debit.Category, debit.Amount = domain.CategoryOrderPayment, -500
	debit.CreatedAt = at

	mock.ExpectQuery("SELECT COUNT.+ FROM ledger_entries WHERE wallet_id").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery(`SELECT .+ FROM ledger_entries WHERE wallet_id = \$1\s+ORDER BY wallet_version DESC, position DESC LIMIT`).
		WithArgs(walletID, 20, 0).
		WillReturnRows(entryRows(debit, drawdown))

	entries, total, err := repo.List(context.Background(), ports.LedgerListParams{WalletID: walletID, Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 2)
	assert.Equal(t, debit.ID, entries[0].ID)
	assert.Equal(t, 1, entries[0].Position)
	assert.Equal(t, drawdown.ID, entries[1].ID)
	assert.Equal(t, int64(4), entries[1].WalletVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_Totals(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	walletID := uuid.New()

	mock.ExpectQuery("FROM ledger_entries WHERE wallet_id").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"amount", "frozen_delta", "credit_delta", "count"}).
			AddRow(int64(42000), int64(2000), int64(500), int64(9)))

	totals, err := repo.Totals(context.Background(), walletID)
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerTotals{Amount: 42000, FrozenDelta: 2000, CreditDelta: 500, Entries: 9}, *totals)
	assert.NoError(t, mock.ExpectationsWereMet())
}
