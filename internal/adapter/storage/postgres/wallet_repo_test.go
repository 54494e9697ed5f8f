package postgres

import (
	"context"
	"testing"
	"time"

	"glotrade-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = domain.WalletKey{OwnerID: "user-1", Currency: domain.NGN}

func newTestWallet() *domain.WalletAccount {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.WalletAccount{
		ID:          uuid.New(),
		OwnerID:     testKey.OwnerID,
		Currency:    testKey.Currency,
		Available:   50000,
		Frozen:      1000,
		CreditLimit: 20000,
		CreditUsed:  0,
		Version:     3,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func walletColumnNames() []string {
	return []string{"id", "owner_id", "currency", "available", "frozen", "credit_limit", "credit_used",
		"version", "archived_at", "created_at", "updated_at"}
}

func walletRow(w *domain.WalletAccount) *pgxmock.Rows {
	return pgxmock.NewRows(walletColumnNames()).AddRow(
		w.ID, w.OwnerID, w.Currency, w.Available, w.Frozen, w.CreditLimit, w.CreditUsed,
		w.Version, w.ArchivedAt, w.CreatedAt, w.UpdatedAt,
	)
}

func TestWalletRepo_GetOrCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet()

	mock.ExpectExec("INSERT INTO wallets .+ ON CONFLICT").
		WithArgs(pgxmock.AnyArg(), testKey.OwnerID, testKey.Currency, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT .+ FROM wallets WHERE owner_id").
		WithArgs(testKey.OwnerID, testKey.Currency).
		WillReturnRows(walletRow(w))

	result, err := repo.GetOrCreate(context.Background(), testKey)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.Equal(t, int64(50000), result.Available)
	assert.Equal(t, int64(3), result.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByKey_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE owner_id").
		WithArgs(testKey.OwnerID, testKey.Currency).
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.GetByKey(context.Background(), testKey)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet()
	archived := w.UpdatedAt
	w.ArchivedAt = &archived

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE id").
		WithArgs(w.ID).
		WillReturnRows(walletRow(w))

	result, err := repo.GetByID(context.Background(), w.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsArchived())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Archive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE wallets SET version").
		WithArgs(testKey.OwnerID, testKey.Currency, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE wallets SET version").
		WithArgs("ghost", testKey.Currency, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.Archive(context.Background(), testKey, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Archive(context.Background(), domain.WalletKey{OwnerID: "ghost", Currency: domain.NGN}, at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_UpdateVersioned_Conflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets SET available").
		WithArgs(w.Available, w.Frozen, w.CreditLimit, w.CreditUsed, w.Version, w.UpdatedAt, w.ID, int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateVersioned(context.Background(), tx, w, 2)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
