package memory

import (
	"context"
	"testing"
	"time"

	"glotrade-wallet/internal/core/domain"
	"glotrade-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = domain.WalletKey{OwnerID: "user-1", Currency: domain.NGN}

func commitMove(t *testing.T, s *Store, w *domain.WalletAccount, amount int64, cat domain.Category, key string) *domain.LedgerCommit {
	t.Helper()
	c, err := w.Post([]domain.Posting{{Category: cat, Amount: amount}}, domain.EntryMeta{
		IdempotencyKey: key,
		Actor:          domain.SystemActor("test"),
	}, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, s.Commit(context.Background(), c))
	return c
}

func TestWalletRepo_GetOrCreate_IsStable(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.Wallets().GetOrCreate(ctx, testKey)
	require.NoError(t, err)
	second, err := s.Wallets().GetOrCreate(ctx, testKey)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(0), second.Version)

	missing, err := s.Wallets().GetByKey(ctx, domain.WalletKey{OwnerID: "nobody", Currency: domain.NGN})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_Commit_AppliesWalletAndEntries(t *testing.T) {
	s := New()
	ctx := context.Background()
	w, err := s.Wallets().GetOrCreate(ctx, testKey)
	require.NoError(t, err)

	c := commitMove(t, s, w, 50000, domain.CategoryTopup, "topup-1")

	stored, err := s.Wallets().GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), stored.Available)
	assert.Equal(t, int64(1), stored.Version)

	entry, err := s.Ledger().GetByIdempotencyKey(ctx, "topup-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, c.Entries[0].ID, entry.ID)
	assert.Equal(t, int64(50000), entry.BalanceAfter)
}

func TestStore_Commit_VersionConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	w, err := s.Wallets().GetOrCreate(ctx, testKey)
	require.NoError(t, err)

	stale := *w
	commitMove(t, s, w, 100, domain.CategoryTopup, "")

	c, err := stale.Post([]domain.Posting{{Category: domain.CategoryTopup, Amount: 200}}, domain.EntryMeta{Actor: domain.SystemActor("test")}, time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, s.Commit(ctx, c), domain.ErrVersionConflict)

	totals, err := s.Ledger().Totals(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), totals.Amount)
	assert.Equal(t, int64(1), totals.Entries)
}

func TestStore_Commit_DuplicateIdempotencyKeyLeavesNoTrace(t *testing.T) {
	s := New()
	ctx := context.Background()
	w, err := s.Wallets().GetOrCreate(ctx, testKey)
	require.NoError(t, err)
	commitMove(t, s, w, 100, domain.CategoryTopup, "dup")

	w, err = s.Wallets().GetByID(ctx, w.ID)
	require.NoError(t, err)
	c, err := w.Post([]domain.Posting{{Category: domain.CategoryTopup, Amount: 100}}, domain.EntryMeta{IdempotencyKey: "dup", Actor: domain.SystemActor("test")}, time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, s.Commit(ctx, c), domain.ErrDuplicateIdempotencyKey)

	after, err := s.Wallets().GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), after.Available)
	assert.Equal(t, w.Version, after.Version)
}

func TestStore_Commit_FreezeLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	w, err := s.Wallets().GetOrCreate(ctx, testKey)
	require.NoError(t, err)
	commitMove(t, s, w, 1000, domain.CategoryTopup, "")
	w, err = s.Wallets().GetByID(ctx, w.ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	admin := domain.AdminActor("admin-1")
	p, err := domain.PlanFreeze(w, 400)
	require.NoError(t, err)
	c, err := w.Post([]domain.Posting{p}, domain.EntryMeta{Actor: admin}, now)
	require.NoError(t, err)
	rec := &domain.FreezeRecord{ID: uuid.New(), WalletID: w.ID, Amount: 400, Reason: "dispute", PlacedBy: admin, PlacedAt: now}
	c.NewFreeze = rec
	require.NoError(t, s.Commit(ctx, c))

	sum, err := s.Freezes().SumActive(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), sum)

	w, err = s.Wallets().GetByID(ctx, w.ID)
	require.NoError(t, err)
	p, err = domain.PlanUnfreeze(w, 400)
	require.NoError(t, err)
	release := &domain.FreezeRelease{FreezeID: rec.ID, ReleasedAt: now, ReleasedBy: admin}
	c, err = w.Post([]domain.Posting{p}, domain.EntryMeta{Actor: admin}, now)
	require.NoError(t, err)
	c.Release = release
	require.NoError(t, s.Commit(ctx, c))

	got, err := s.Freezes().GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive())

	// A second release of the same record must fail even with a fresh version.
	w, err = s.Wallets().GetByID(ctx, w.ID)
	require.NoError(t, err)
	c, err = w.Post(nil, domain.EntryMeta{Actor: admin}, now)
	require.NoError(t, err)
	c.Release = release
	assert.ErrorIs(t, s.Commit(ctx, c), domain.ErrFreezeAlreadyReleased)

	sum, err = s.Freezes().SumActive(ctx, w.ID)
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestWalletRepo_Archive(t *testing.T) {
	s := New()
	ctx := context.Background()

	ok, err := s.Wallets().Archive(ctx, testKey, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	w, err := s.Wallets().GetOrCreate(ctx, testKey)
	require.NoError(t, err)
	ok, err = s.Wallets().Archive(ctx, testKey, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	archived, err := s.Wallets().GetByKey(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived())
	assert.Equal(t, w.Version+1, archived.Version)

	c, err := w.Post([]domain.Posting{{Category: domain.CategoryTopup, Amount: 1}}, domain.EntryMeta{Actor: domain.SystemActor("t")}, time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, s.Commit(ctx, c), domain.ErrVersionConflict)
}

func TestLedgerRepo_ListFiltersAndPages(t *testing.T) {
	s := New()
	ctx := context.Background()
	w, err := s.Wallets().GetOrCreate(ctx, testKey)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		commitMove(t, s, w, 100, domain.CategoryTopup, "")
		w, err = s.Wallets().GetByID(ctx, w.ID)
		require.NoError(t, err)
	}
	commitMove(t, s, w, -50, domain.CategoryWithdrawal, "")

	all, total, err := s.Ledger().List(ctx, ports.LedgerListParams{WalletID: w.ID, Page: 1, PageSize: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
	require.Len(t, all, 4)
	assert.Equal(t, domain.CategoryWithdrawal, all[0].Category)

	page2, _, err := s.Ledger().List(ctx, ports.LedgerListParams{WalletID: w.ID, Page: 2, PageSize: 4})
	require.NoError(t, err)
	assert.Len(t, page2, 2)

	cat := domain.CategoryWithdrawal
	withdrawals, total, err := s.Ledger().List(ctx, ports.LedgerListParams{WalletID: w.ID, Category: &cat, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(-50), withdrawals[0].Amount)
}

func TestLedgerRepo_ListDrawdownPairInCommitOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()
	w, err := s.Wallets().GetOrCreate(ctx, testKey)
	require.NoError(t, err)
	w.CreditLimit = 1000

	topup, err := w.Post([]domain.Posting{{Category: domain.CategoryTopup, Amount: 200}},
		domain.EntryMeta{Actor: domain.SystemActor("test")}, now)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, topup))

	postings, err := domain.PlanMove(topup.Wallet, -500, domain.CategoryOrderPayment)
	require.NoError(t, err)
	payment, err := topup.Wallet.Post(postings, domain.EntryMeta{Actor: domain.SystemActor("test")}, now)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, payment))

	for i := 0; i < 3; i++ {
		entries, total, err := s.Ledger().List(ctx, ports.LedgerListParams{WalletID: w.ID, Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, entries, 3)
		assert.Equal(t, domain.CategoryOrderPayment, entries[0].Category)
		assert.Equal(t, domain.CategoryCreditDrawdown, entries[1].Category)
		assert.Equal(t, domain.CategoryTopup, entries[2].Category)
		assert.Equal(t, int64(2), entries[0].WalletVersion)
		assert.Equal(t, 1, entries[0].Position)
	}
}

func TestRewardStateRepo_EnrollIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Rewards().Enroll(ctx, testKey, at))
	st, err := s.Rewards().Get(ctx, testKey)
	require.NoError(t, err)
	next := at.Add(24 * time.Hour)
	st.NextRewardDate = &next
	require.NoError(t, s.Rewards().Save(ctx, st))

	require.NoError(t, s.Rewards().Enroll(ctx, testKey, at.Add(time.Hour)))
	st, err = s.Rewards().Get(ctx, testKey)
	require.NoError(t, err)
	require.NotNil(t, st.NextRewardDate)
	assert.Equal(t, next, *st.NextRewardDate)

	all, err := s.Rewards().ListEnrolled(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	err = s.Rewards().Save(ctx, &domain.RewardState{OwnerID: "ghost", Currency: domain.NGN})
	assert.Error(t, err)
}
