package postgres

import (
	"context"
	"testing"
	"time"

	"glotrade-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freezeColumnNames() []string {
	return []string{"id", "wallet_id", "amount", "reason", "placed_by_kind", "placed_by_id", "placed_at",
		"released_at", "released_by_kind", "released_by_id", "replaces_id"}
}

func TestFreezeRepo_ListByWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewFreezeRepo(mock)
	walletID := uuid.New()
	placed := time.Now().UTC().Truncate(time.Microsecond)
	released := placed.Add(time.Hour)
	activeID, releasedID := uuid.New(), uuid.New()

	rows := pgxmock.NewRows(freezeColumnNames()).
		AddRow(activeID, walletID, int64(300), "remainder", domain.ActorAdmin, "admin-1", released,
			(*time.Time)(nil), (*string)(nil), (*string)(nil), &releasedID).
		AddRow(releasedID, walletID, int64(500), "dispute", domain.ActorAdmin, "admin-1", placed,
			&released, strPtr("admin"), strPtr("admin-2"), (*uuid.UUID)(nil))

	mock.ExpectQuery("SELECT .+ FROM wallet_freezes WHERE wallet_id").
		WithArgs(walletID).
		WillReturnRows(rows)

	freezes, err := repo.ListByWallet(context.Background(), walletID)
	require.NoError(t, err)
	require.Len(t, freezes, 2)

	assert.True(t, freezes[0].IsActive())
	require.NotNil(t, freezes[0].ReplacesID)
	assert.Equal(t, releasedID, *freezes[0].ReplacesID)

	assert.False(t, freezes[1].IsActive())
	require.NotNil(t, freezes[1].ReleasedBy)
	assert.Equal(t, domain.AdminActor("admin-2"), *freezes[1].ReleasedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFreezeRepo_Release_AlreadyReleased(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewFreezeRepo(mock)
	rel := &domain.FreezeRelease{FreezeID: uuid.New(), ReleasedAt: time.Now().UTC(), ReleasedBy: domain.AdminActor("admin-1")}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallet_freezes SET released_at .+ AND released_at IS NULL").
		WithArgs(rel.ReleasedAt, domain.ActorAdmin, "admin-1", rel.FreezeID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Release(context.Background(), tx, rel)
	assert.ErrorIs(t, err, domain.ErrFreezeAlreadyReleased)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFreezeRepo_SumActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewFreezeRepo(mock)
	walletID := uuid.New()

	mock.ExpectQuery("FROM wallet_freezes WHERE wallet_id .+ AND released_at IS NULL").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(800)))

	sum, err := repo.SumActive(context.Background(), walletID)
	require.NoError(t, err)
	assert.Equal(t, int64(800), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}
