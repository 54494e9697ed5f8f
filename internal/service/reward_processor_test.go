package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"glotrade-wallet/internal/core/domain"
	"glotrade-wallet/internal/core/ports"
	"glotrade-wallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var rewardEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testRewardConfig() RewardConfig {
	return RewardConfig{
		Rate:        decimal.RequireFromString("0.0005"),
		Interval:    24 * time.Hour,
		Tick:        time.Minute,
		Concurrency: 4,
		LockTTL:     time.Minute,
	}
}

// fakeClock is a settable clock shared by goroutines.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func setupMemoryRewards(t *testing.T) (*memoryServices, *RewardProcessor, *fakeClock) {
	t.Helper()
	m := newMemoryServices(t)
	clock := &fakeClock{now: rewardEpoch}
	p := NewRewardProcessor(m.ledger, m.store.Wallets(), m.store.Rewards(), nil, nil, testRewardConfig(), zerolog.Nop()).
		WithClock(clock.Now)
	return m, p, clock
}

// ==================== Schedule Tests ====================

func TestRewardProcessor_BootstrapThenPay(t *testing.T) {
	m, p, clock := setupMemoryRewards(t)
	ctx := context.Background()
	key := testKey()
	m.topUp(t, key, 1_000_000)

	st, err := p.Enroll(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, st.NextRewardDate)

	summary, err := p.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Initialized)
	assert.Equal(t, int64(1_000_000), m.balance(t, key).Available, "bootstrap never back-pays")

	st, err = p.GetState(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, st.NextRewardDate)
	assert.Equal(t, rewardEpoch.Add(24*time.Hour), st.NextRewardDate.UTC())

	clock.Set(rewardEpoch.Add(time.Hour))
	summary, err = p.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NotDue)

	clock.Set(rewardEpoch.Add(24 * time.Hour))
	summary, err = p.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Paid)
	assert.Equal(t, int64(500), summary.TotalCredited)
	assert.Equal(t, int64(1_000_500), m.balance(t, key).Available)

	st, err = p.GetState(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, rewardEpoch.Add(48*time.Hour), st.NextRewardDate.UTC())
	assert.Equal(t, int64(500), st.TotalRewardsEarned)
	assert.Equal(t, int64(500), st.LastRewardAmount)
	assert.Equal(t, domain.RewardOutcomePaid, st.LastOutcome)

	entries, _, err := m.ledger.ListEntries(ctx, ports.EntryQuery{Key: key})
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryDistributorReward, entries[0].Category)
	require.NotNil(t, entries[0].IdempotencyKey)
	assert.Equal(t, domain.RewardIdempotencyKey(key, rewardEpoch.Add(24*time.Hour)), *entries[0].IdempotencyKey)
	m.assertConserved(t, key)
}

func TestRewardProcessor_MissedPeriodsPayOnce(t *testing.T) {
	m, p, clock := setupMemoryRewards(t)
	ctx := context.Background()
	key := testKey()
	m.topUp(t, key, 1_000_000)

	_, err := p.Enroll(ctx, key)
	require.NoError(t, err)
	_, err = p.Tick(ctx)
	require.NoError(t, err)

	clock.Set(rewardEpoch.Add(5*24*time.Hour + time.Hour))
	summary, err := p.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Paid)

	st, err := p.GetState(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, rewardEpoch.Add(6*24*time.Hour), st.NextRewardDate.UTC())
	assert.Equal(t, int64(1_000_500), m.balance(t, key).Available)
}

func TestRewardProcessor_SkipsEmptyAndDustBalances(t *testing.T) {
	m, p, clock := setupMemoryRewards(t)
	ctx := context.Background()
	empty := domain.WalletKey{OwnerID: "dist-empty", Currency: domain.NGN}
	dust := domain.WalletKey{OwnerID: "dist-dust", Currency: domain.NGN}
	m.topUp(t, dust, 1)

	for _, key := range []domain.WalletKey{empty, dust} {
		_, err := p.Enroll(ctx, key)
		require.NoError(t, err)
	}
	_, err := p.Tick(ctx)
	require.NoError(t, err)

	clock.Set(rewardEpoch.Add(24 * time.Hour))
	summary, err := p.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 0, summary.Paid)

	for _, key := range []domain.WalletKey{empty, dust} {
		st, err := p.GetState(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, domain.RewardOutcomeSkipped, st.LastOutcome)
		assert.Equal(t, rewardEpoch.Add(48*time.Hour), st.NextRewardDate.UTC())
	}
	assert.Equal(t, int64(1), m.balance(t, dust).Available)
}

func TestRewardProcessor_FailureIsIsolatedAndAdvances(t *testing.T) {
	m, p, clock := setupMemoryRewards(t)
	ctx := context.Background()
	good := domain.WalletKey{OwnerID: "dist-good", Currency: domain.NGN}
	archived := domain.WalletKey{OwnerID: "dist-archived", Currency: domain.NGN}
	m.topUp(t, good, 200_000)
	m.topUp(t, archived, 200_000)

	for _, key := range []domain.WalletKey{good, archived} {
		_, err := p.Enroll(ctx, key)
		require.NoError(t, err)
	}
	_, err := p.Tick(ctx)
	require.NoError(t, err)
	require.NoError(t, m.ledger.Archive(ctx, archived, admin))

	clock.Set(rewardEpoch.Add(24 * time.Hour))
	summary, err := p.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Paid)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, int64(100), summary.TotalCredited)

	st, err := p.GetState(ctx, archived)
	require.NoError(t, err)
	assert.Equal(t, domain.RewardOutcomeFailed, st.LastOutcome)
	assert.Equal(t, rewardEpoch.Add(48*time.Hour), st.NextRewardDate.UTC())
}

func TestRewardProcessor_GetStateNotEnrolled(t *testing.T) {
	_, p, _ := setupMemoryRewards(t)

	_, err := p.GetState(context.Background(), testKey())
	assertAppError(t, err, "WAL_006")

	_, err = p.Enroll(context.Background(), domain.WalletKey{OwnerID: "x", Currency: "ZZZ"})
	assertAppError(t, err, "WAL_005")
}

// ==================== Single-flight & Recovery Tests ====================

type rewardMockDeps struct {
	p       *RewardProcessor
	ledger  *mocks.MockLedgerService
	wallets *mocks.MockWalletRepository
	states  *mocks.MockRewardStateRepository
	lock    *mocks.MockJobLock
	ctrl    *gomock.Controller
}

func setupRewardProcessor(t *testing.T) *rewardMockDeps {
	ctrl := gomock.NewController(t)
	d := &rewardMockDeps{
		ledger:  mocks.NewMockLedgerService(ctrl),
		wallets: mocks.NewMockWalletRepository(ctrl),
		states:  mocks.NewMockRewardStateRepository(ctrl),
		lock:    mocks.NewMockJobLock(ctrl),
		ctrl:    ctrl,
	}
	d.p = NewRewardProcessor(d.ledger, d.wallets, d.states, d.lock, nil, testRewardConfig(), zerolog.Nop()).
		WithClock(func() time.Time { return rewardEpoch })
	return d
}

func TestRewardProcessor_TickInProgressInProcess(t *testing.T) {
	d := setupRewardProcessor(t)
	defer d.ctrl.Finish()

	d.p.running.Store(true)
	_, err := d.p.Tick(context.Background())
	assertAppError(t, err, "RWD_001")
}

func TestRewardProcessor_TickInProgressElsewhere(t *testing.T) {
	d := setupRewardProcessor(t)
	defer d.ctrl.Finish()

	d.lock.EXPECT().Acquire(gomock.Any(), rewardLockName, time.Minute).Return("", false, nil)

	_, err := d.p.Tick(context.Background())
	assertAppError(t, err, "RWD_001")
	assert.False(t, d.p.running.Load(), "in-process guard is cleared")
}

func TestRewardProcessor_LockErrorAbortsTick(t *testing.T) {
	d := setupRewardProcessor(t)
	defer d.ctrl.Finish()

	d.lock.EXPECT().Acquire(gomock.Any(), rewardLockName, time.Minute).Return("", false, errors.New("redis down"))

	_, err := d.p.Tick(context.Background())
	assertAppError(t, err, "SYS_002")
}

func TestRewardProcessor_SaveFailureKeepsAccountDue(t *testing.T) {
	d := setupRewardProcessor(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	key := testKey()
	periodStart := rewardEpoch.Add(-time.Hour)
	due := domain.RewardState{OwnerID: key.OwnerID, Currency: key.Currency, NextRewardDate: &periodStart}
	wallet := testWallet(400_000)
	wantKey := domain.RewardIdempotencyKey(key, periodStart)
	entryID := uuid.New()

	d.lock.EXPECT().Acquire(gomock.Any(), rewardLockName, time.Minute).Return("tok-1", true, nil).Times(2)
	d.lock.EXPECT().Release(gomock.Any(), rewardLockName, "tok-1").Return(nil).Times(2)
	d.states.EXPECT().ListEnrolled(gomock.Any()).Return([]domain.RewardState{due}, nil).Times(2)
	d.wallets.EXPECT().GetByKey(gomock.Any(), key).Return(wallet, nil).Times(2)

	// First tick pays but cannot persist the schedule.
	d.ledger.EXPECT().Move(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.MoveRequest) (*ports.MoveResult, error) {
			assert.Equal(t, wantKey, req.IdempotencyKey)
			assert.Equal(t, int64(200), req.Amount)
			assert.Equal(t, domain.CategoryDistributorReward, req.Category)
			return &ports.MoveResult{EntryID: entryID, Amount: 200}, nil
		})
	d.states.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

	summary, err := d.p.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	// Second tick replays the same period and records it once.
	d.ledger.EXPECT().Move(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.MoveRequest) (*ports.MoveResult, error) {
			assert.Equal(t, wantKey, req.IdempotencyKey)
			return &ports.MoveResult{EntryID: entryID, Amount: 200, Replayed: true}, nil
		})
	d.states.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, st *domain.RewardState) error {
			assert.Equal(t, int64(200), st.TotalRewardsEarned)
			assert.Equal(t, domain.RewardOutcomePaid, st.LastOutcome)
			assert.Equal(t, periodStart.Add(24*time.Hour), *st.NextRewardDate)
			return nil
		})

	summary, err = d.p.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Paid)
	assert.Equal(t, int64(200), summary.TotalCredited)
}

func shortLeaseProcessor(d *rewardMockDeps, concurrency int) *RewardProcessor {
	cfg := testRewardConfig()
	cfg.LockTTL = 30 * time.Millisecond
	cfg.Concurrency = concurrency
	return NewRewardProcessor(d.ledger, d.wallets, d.states, d.lock, nil, cfg, zerolog.Nop()).
		WithClock(func() time.Time { return rewardEpoch })
}

func TestRewardProcessor_RenewsLeaseDuringLongTick(t *testing.T) {
	d := setupRewardProcessor(t)
	defer d.ctrl.Finish()
	p := shortLeaseProcessor(d, 1)

	key := testKey()
	periodStart := rewardEpoch.Add(-time.Hour)
	due := domain.RewardState{OwnerID: key.OwnerID, Currency: key.Currency, NextRewardDate: &periodStart}
	renewed := make(chan struct{}, 16)

	d.lock.EXPECT().Acquire(gomock.Any(), rewardLockName, 30*time.Millisecond).Return("tok-1", true, nil)
	d.lock.EXPECT().Extend(gomock.Any(), rewardLockName, "tok-1", 30*time.Millisecond).DoAndReturn(
		func(context.Context, string, string, time.Duration) (bool, error) {
			select {
			case renewed <- struct{}{}:
			default:
			}
			return true, nil
		}).MinTimes(2)
	d.lock.EXPECT().Release(gomock.Any(), rewardLockName, "tok-1").Return(nil)
	d.states.EXPECT().ListEnrolled(gomock.Any()).Return([]domain.RewardState{due}, nil)

	// The payout outlives the original lease.
	d.wallets.EXPECT().GetByKey(gomock.Any(), key).DoAndReturn(
		func(context.Context, domain.WalletKey) (*domain.WalletAccount, error) {
			for i := 0; i < 2; i++ {
				select {
				case <-renewed:
				case <-time.After(time.Second):
					t.Error("lease was not renewed")
				}
			}
			return testWallet(400_000), nil
		})
	d.ledger.EXPECT().Move(gomock.Any(), gomock.Any()).Return(&ports.MoveResult{EntryID: uuid.New(), Amount: 200}, nil)
	d.states.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	summary, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Paid)
}

func TestRewardProcessor_LostLeaseStopsStartingAccounts(t *testing.T) {
	d := setupRewardProcessor(t)
	defer d.ctrl.Finish()
	p := shortLeaseProcessor(d, 1)

	periodStart := rewardEpoch.Add(-time.Hour)
	first := domain.RewardState{OwnerID: "user-1", Currency: domain.NGN, NextRewardDate: &periodStart}
	second := domain.RewardState{OwnerID: "user-2", Currency: domain.NGN, NextRewardDate: &periodStart}

	d.lock.EXPECT().Acquire(gomock.Any(), rewardLockName, gomock.Any()).Return("tok-1", true, nil)
	d.lock.EXPECT().Extend(gomock.Any(), rewardLockName, "tok-1", gomock.Any()).Return(false, nil)
	d.lock.EXPECT().Release(gomock.Any(), rewardLockName, "tok-1").Return(nil)
	d.states.EXPECT().ListEnrolled(gomock.Any()).Return([]domain.RewardState{first, second}, nil)

	// The first account is in flight when the lease is taken over.
	d.wallets.EXPECT().GetByKey(gomock.Any(), first.Key()).DoAndReturn(
		func(ctx context.Context, _ domain.WalletKey) (*domain.WalletAccount, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
				t.Error("lost lease did not cancel the tick")
				return nil, errors.New("timeout")
			}
		})
	d.states.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ *domain.RewardState) error { return ctx.Err() })

	summary, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Paid)
	assert.Equal(t, 2, summary.Failed)
}

func TestRewardProcessor_ConcurrentTicksSingleFlight(t *testing.T) {
	m, p, clock := setupMemoryRewards(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		key := domain.WalletKey{OwnerID: uuid.NewString(), Currency: domain.NGN}
		m.topUp(t, key, 100_000)
		_, err := p.Enroll(ctx, key)
		require.NoError(t, err)
	}
	_, err := p.Tick(ctx)
	require.NoError(t, err)
	clock.Set(rewardEpoch.Add(24 * time.Hour))

	var wg sync.WaitGroup
	var mu sync.Mutex
	paid := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summary, err := p.Tick(ctx)
			if err != nil {
				assertAppError(t, err, "RWD_001")
				return
			}
			mu.Lock()
			paid += summary.Paid
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, paid, "each account is paid exactly once per period")
}

func TestRewardProcessor_RunStopsOnCancel(t *testing.T) {
	d := setupRewardProcessor(t)
	defer d.ctrl.Finish()

	d.lock.EXPECT().Acquire(gomock.Any(), rewardLockName, time.Minute).Return("tok", true, nil).AnyTimes()
	d.lock.EXPECT().Release(gomock.Any(), rewardLockName, "tok").Return(nil).AnyTimes()
	d.states.EXPECT().ListEnrolled(gomock.Any()).Return(nil, nil).AnyTimes()

	cfg := testRewardConfig()
	cfg.Tick = 5 * time.Millisecond
	p := NewRewardProcessor(d.ledger, d.wallets, d.states, d.lock, nil, cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
