package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"glotrade-wallet/internal/core/domain"
	"glotrade-wallet/internal/core/ports"
	"glotrade-wallet/pkg/apperror"
	"glotrade-wallet/pkg/metrics"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const rewardLockName = "reward-processor"

// RewardConfig controls the distributor reward schedule.
type RewardConfig struct {
	Rate        decimal.Decimal
	Interval    time.Duration
	Tick        time.Duration
	Concurrency int
	LockTTL     time.Duration
}

// RewardProcessor pays each enrolled wallet a fixed fraction of its
// available balance once per interval. It implements ports.RewardService.
type RewardProcessor struct {
	ledger  ports.LedgerService
	wallets ports.WalletRepository
	states  ports.RewardStateRepository
	lock    ports.JobLock // nil runs without a cross-instance lease
	metrics *metrics.Collector
	cfg     RewardConfig
	log     zerolog.Logger
	now     func() time.Time
	running atomic.Bool
}

// NewRewardProcessor creates a RewardProcessor. lock and m may be nil.
func NewRewardProcessor(
	ledger ports.LedgerService,
	wallets ports.WalletRepository,
	states ports.RewardStateRepository,
	lock ports.JobLock,
	m *metrics.Collector,
	cfg RewardConfig,
	log zerolog.Logger,
) *RewardProcessor {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	return &RewardProcessor{
		ledger:  ledger,
		wallets: wallets,
		states:  states,
		lock:    lock,
		metrics: m,
		cfg:     cfg,
		log:     log.With().Str("component", "reward_processor").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the processor's clock.
func (p *RewardProcessor) WithClock(now func() time.Time) *RewardProcessor {
	p.now = now
	return p
}

// Enroll registers a wallet for rewards. The first tick schedules it.
func (p *RewardProcessor) Enroll(ctx context.Context, key domain.WalletKey) (*domain.RewardState, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := p.states.Enroll(ctx, key, p.now()); err != nil {
		return nil, toAppError(fmt.Errorf("enroll: %w", err))
	}
	return p.GetState(ctx, key)
}

func (p *RewardProcessor) GetState(ctx context.Context, key domain.WalletKey) (*domain.RewardState, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	st, err := p.states.Get(ctx, key)
	if err != nil {
		return nil, toAppError(fmt.Errorf("get reward state: %w", err))
	}
	if st == nil {
		return nil, apperror.ErrNotFound("reward state")
	}
	return st, nil
}

// Run ticks until ctx is cancelled.
func (p *RewardProcessor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Tick)
	defer ticker.Stop()

	p.log.Info().Dur("tick", p.cfg.Tick).Dur("interval", p.cfg.Interval).Msg("reward processor started")
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("reward processor stopped")
			return
		case <-ticker.C:
			if _, err := p.Tick(ctx); err != nil {
				if apperror.HasCode(err, "RWD_001") {
					p.log.Debug().Msg("previous reward tick still running, skipping")
					continue
				}
				p.log.Error().Err(err).Msg("reward tick failed")
			}
		}
	}
}

// Tick processes every enrolled account once. Only one tick runs at a time
// per process, and across processes when a JobLock is configured.
func (p *RewardProcessor) Tick(ctx context.Context) (*domain.RewardTickSummary, error) {
	if !p.running.CompareAndSwap(false, true) {
		p.metrics.RewardTick("in_progress")
		return nil, apperror.ErrTickInProgress()
	}
	defer p.running.Store(false)

	workCtx := ctx
	if p.lock != nil {
		token, ok, err := p.lock.Acquire(ctx, rewardLockName, p.cfg.LockTTL)
		if err != nil {
			p.metrics.RewardTick(metrics.OutcomeFailed)
			return nil, apperror.ErrStorageUnavailable(fmt.Errorf("acquire reward lock: %w", err))
		}
		if !ok {
			p.metrics.RewardTick("in_progress")
			return nil, apperror.ErrTickInProgress()
		}
		defer func() {
			if err := p.lock.Release(context.WithoutCancel(ctx), rewardLockName, token); err != nil {
				p.log.Warn().Err(err).Msg("failed to release reward lock")
			}
		}()

		var stop func()
		workCtx, stop = p.holdLease(ctx, token)
		defer stop()
	}

	now := p.now()
	states, err := p.states.ListEnrolled(workCtx)
	if err != nil {
		p.metrics.RewardTick(metrics.OutcomeFailed)
		return nil, toAppError(fmt.Errorf("list enrolled: %w", err))
	}

	summary := &domain.RewardTickSummary{StartedAt: now, Scanned: len(states)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i := range states {
		st := states[i]
		g.Go(func() error {
			outcome, credited := domain.RewardOutcomeFailed, int64(0)
			if workCtx.Err() == nil {
				outcome, credited = p.processAccount(workCtx, &st, now)
			}
			if outcome == domain.RewardOutcomeNone {
				p.metrics.RewardAccount("not_due")
			} else {
				p.metrics.RewardAccount(string(outcome))
			}

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case domain.RewardOutcomeInitialized:
				summary.Initialized++
			case domain.RewardOutcomePaid:
				summary.Paid++
				summary.TotalCredited += credited
			case domain.RewardOutcomeSkipped:
				summary.Skipped++
			case domain.RewardOutcomeFailed:
				summary.Failed++
			default:
				summary.NotDue++
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.FinishedAt = p.now()
	p.metrics.RewardTick("completed")
	p.log.Info().
		Int("scanned", summary.Scanned).
		Int("paid", summary.Paid).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int("initialized", summary.Initialized).
		Int64("credited", summary.TotalCredited).
		Msg("reward tick completed")
	return summary, nil
}

// holdLease renews the reward lease every third of its TTL until stop is
// called. The returned context is cancelled once the lease is lost, so no
// further accounts are started by this holder.
func (p *RewardProcessor) holdLease(ctx context.Context, token string) (context.Context, func()) {
	leaseCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.cfg.LockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-leaseCtx.Done():
				return
			case <-ticker.C:
			}
			ok, err := p.lock.Extend(leaseCtx, rewardLockName, token, p.cfg.LockTTL)
			switch {
			case leaseCtx.Err() != nil:
				return
			case err != nil:
				p.log.Warn().Err(err).Msg("failed to renew reward lock")
			case !ok:
				p.log.Error().Msg("reward lock lost, abandoning remaining accounts")
				cancel()
				return
			}
		}
	}()

	return leaseCtx, func() {
		cancel()
		<-done
	}
}

// processAccount moves one account through its state machine. The returned
// outcome is RewardOutcomeNone when the account was not due.
func (p *RewardProcessor) processAccount(ctx context.Context, st *domain.RewardState, now time.Time) (domain.RewardOutcome, int64) {
	key := st.Key()
	log := p.log.With().Str("wallet", key.String()).Logger()

	if st.NextRewardDate == nil {
		next := now.Add(p.cfg.Interval)
		st.NextRewardDate = &next
		st.LastOutcome = domain.RewardOutcomeInitialized
		st.UpdatedAt = now
		if err := p.states.Save(ctx, st); err != nil {
			log.Warn().Err(err).Msg("failed to schedule reward account")
			return domain.RewardOutcomeFailed, 0
		}
		return domain.RewardOutcomeInitialized, 0
	}
	if !st.IsDue(now) {
		return domain.RewardOutcomeNone, 0
	}

	periodStart := *st.NextRewardDate
	outcome, amount, err := p.payout(ctx, key, periodStart)
	if err != nil {
		log.Warn().Err(err).Time("period_start", periodStart).Msg("reward payout failed")
	}

	next := domain.NextRewardAfter(periodStart, p.cfg.Interval, now)
	st.NextRewardDate = &next
	st.LastOutcome = outcome
	st.UpdatedAt = now
	if outcome == domain.RewardOutcomePaid {
		paidAt := now
		st.TotalRewardsEarned += amount
		st.LastRewardAmount = amount
		st.LastRewardAt = &paidAt
	}
	if err := p.states.Save(ctx, st); err != nil {
		log.Warn().Err(err).Msg("failed to save reward state, account stays due")
		return domain.RewardOutcomeFailed, 0
	}
	return outcome, amount
}

func (p *RewardProcessor) payout(ctx context.Context, key domain.WalletKey, periodStart time.Time) (domain.RewardOutcome, int64, error) {
	w, err := p.wallets.GetByKey(ctx, key)
	if err != nil {
		return domain.RewardOutcomeFailed, 0, err
	}
	var balance int64
	if w != nil {
		balance = w.Available
	}
	if balance <= 0 {
		return domain.RewardOutcomeSkipped, 0, nil
	}

	reward := domain.NewMoney(balance, key.Currency).MulFloor(p.cfg.Rate)
	if reward.Amount <= 0 {
		return domain.RewardOutcomeSkipped, 0, nil
	}

	res, err := p.ledger.Move(ctx, ports.MoveRequest{
		Key:            key,
		Amount:         reward.Amount,
		Category:       domain.CategoryDistributorReward,
		IdempotencyKey: domain.RewardIdempotencyKey(key, periodStart),
		Actor:          domain.SystemActor(rewardLockName),
	})
	if err != nil {
		return domain.RewardOutcomeFailed, 0, err
	}
	return domain.RewardOutcomePaid, res.Amount, nil
}
