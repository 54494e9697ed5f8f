package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"glotrade-wallet/internal/core/domain"
	"glotrade-wallet/internal/core/ports"
	"glotrade-wallet/pkg/apperror"
	"glotrade-wallet/pkg/metrics"

	"github.com/rs/zerolog"
)

// EngineConfig tunes the commit retry loop.
type EngineConfig struct {
	MaxAttempts    int
	Backoff        []time.Duration
	IdempotencyTTL time.Duration
}

// DefaultEngineConfig matches the configuration defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxAttempts:    5,
		Backoff:        []time.Duration{50 * time.Millisecond, 200 * time.Millisecond, 500 * time.Millisecond},
		IdempotencyTTL: 24 * time.Hour,
	}
}

// Engine runs every balance change through read, plan and versioned commit.
// It is shared by the ledger, freeze and credit services.
type Engine struct {
	wallets ports.WalletRepository
	ledger  ports.LedgerRepository
	store   ports.LedgerStore
	cache   ports.IdempotencyCache // nil disables the cache layer
	metrics *metrics.Collector
	cfg     EngineConfig
	log     zerolog.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an Engine. cache and m may be nil.
func NewEngine(
	wallets ports.WalletRepository,
	ledger ports.LedgerRepository,
	store ports.LedgerStore,
	cache ports.IdempotencyCache,
	m *metrics.Collector,
	cfg EngineConfig,
	log zerolog.Logger,
) *Engine {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Engine{
		wallets: wallets,
		ledger:  ledger,
		store:   store,
		cache:   cache,
		metrics: m,
		cfg:     cfg,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
		sleep:   sleepCtx,
	}
}

// WithClock overrides the clock used for entry timestamps.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type loadFunc func(ctx context.Context) (*domain.WalletAccount, error)

type planFunc func(w *domain.WalletAccount, now time.Time) (*domain.LedgerCommit, error)

// apply loads a wallet snapshot, plans a commit against it and persists the
// commit, starting over on version conflicts and transient failures. The
// commit itself runs detached from ctx cancellation.
//
// Business errors come back unmapped; exhausted retries come back as
// AppErrors. domain.ErrDuplicateIdempotencyKey is returned as is.
func (e *Engine) apply(ctx context.Context, load loadFunc, plan planFunc) (*domain.LedgerCommit, error) {
	conflicts, transient := 0, 0
	for {
		c, err := e.attempt(ctx, load, plan)
		if err == nil {
			return c, nil
		}

		switch {
		case errors.Is(err, domain.ErrVersionConflict):
			conflicts++
			e.metrics.VersionConflict()
			if conflicts >= e.cfg.MaxAttempts {
				e.log.Warn().Int("attempts", conflicts).Msg("giving up after repeated version conflicts")
				return nil, apperror.ErrConcurrentModification()
			}
			e.log.Debug().Int("attempt", conflicts).Msg("wallet version conflict, retrying")

		case errors.Is(err, domain.ErrTransientStorage):
			if transient >= len(e.cfg.Backoff) {
				e.log.Error().Err(err).Int("retries", transient).Msg("ledger storage unavailable")
				return nil, apperror.ErrStorageUnavailable(err)
			}
			delay := e.cfg.Backoff[transient]
			transient++
			e.log.Warn().Err(err).Dur("backoff", delay).Msg("transient storage failure, retrying")
			if serr := e.sleep(ctx, delay); serr != nil {
				return nil, apperror.ErrStorageUnavailable(err)
			}

		default:
			return nil, err
		}
	}
}

func (e *Engine) attempt(ctx context.Context, load loadFunc, plan planFunc) (*domain.LedgerCommit, error) {
	w, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c, err := plan(w, e.now())
	if err != nil {
		return nil, err
	}
	if err := e.store.Commit(context.WithoutCancel(ctx), c); err != nil {
		return nil, err
	}
	return c, nil
}

// loadOrCreate reads the wallet for key, creating it on first use.
func (e *Engine) loadOrCreate(key domain.WalletKey) loadFunc {
	return func(ctx context.Context) (*domain.WalletAccount, error) {
		return e.wallets.GetOrCreate(ctx, key)
	}
}

// loadExisting reads the wallet for key and fails with NotFound if absent.
func (e *Engine) loadExisting(key domain.WalletKey) loadFunc {
	return func(ctx context.Context) (*domain.WalletAccount, error) {
		w, err := e.wallets.GetByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if w == nil {
			return nil, apperror.ErrNotFound("wallet")
		}
		return w, nil
	}
}

// post applies an idempotent movement. A known idempotency key short-cuts to
// the recorded result; a key that loses a commit race is answered from the
// winning entry.
func (e *Engine) post(
	ctx context.Context,
	key domain.WalletKey,
	load loadFunc,
	meta domain.EntryMeta,
	plan func(w *domain.WalletAccount) ([]domain.Posting, error),
) (*ports.MoveResult, error) {
	if meta.IdempotencyKey != "" {
		res, err := e.replay(ctx, key, meta.IdempotencyKey)
		if err != nil || res != nil {
			return res, err
		}
	}

	c, err := e.apply(ctx, load, func(w *domain.WalletAccount, now time.Time) (*domain.LedgerCommit, error) {
		postings, err := plan(w)
		if err != nil {
			return nil, err
		}
		return w.Post(postings, meta, now)
	})
	if err != nil && meta.IdempotencyKey != "" {
		// A duplicate that lost the race re-planned against the winner's
		// balance; whatever it failed with, the winner's entry is the answer.
		res, rerr := e.replay(ctx, key, meta.IdempotencyKey)
		switch {
		case res != nil:
			return res, nil
		case rerr != nil && (errors.Is(err, domain.ErrDuplicateIdempotencyKey) || apperror.HasCode(rerr, "WAL_008")):
			return nil, rerr
		case errors.Is(err, domain.ErrDuplicateIdempotencyKey):
			return nil, apperror.InternalError(fmt.Errorf("idempotency key %q reported taken but no entry found", meta.IdempotencyKey))
		}
	}
	if err != nil {
		return nil, toAppError(err)
	}

	principal := c.PrincipalEntry()
	if principal == nil {
		return nil, apperror.InternalError(errors.New("commit produced no entries"))
	}
	if meta.IdempotencyKey != "" {
		e.remember(ctx, meta.IdempotencyKey, domain.ReceiptOf(principal))
	}
	return &ports.MoveResult{
		WalletID:     c.Wallet.ID,
		EntryID:      principal.ID,
		Amount:       principal.Amount,
		NewAvailable: c.Wallet.Available,
	}, nil
}

// replay returns the recorded result for idemKey, or nil if the key is unused.
func (e *Engine) replay(ctx context.Context, key domain.WalletKey, idemKey string) (*ports.MoveResult, error) {
	if e.cache != nil {
		receipt, err := e.cache.Get(ctx, idemKey)
		if err != nil {
			e.log.Warn().Err(err).Str("idempotency_key", idemKey).Msg("idempotency cache read failed, falling through to ledger")
		}
		if receipt != nil {
			return e.replayed(ctx, key, *receipt)
		}
	}

	entry, err := e.ledger.GetByIdempotencyKey(ctx, idemKey)
	if err != nil {
		return nil, toAppError(fmt.Errorf("idempotency lookup: %w", err))
	}
	if entry == nil {
		return nil, nil
	}
	receipt := domain.ReceiptOf(entry)
	res, err := e.replayed(ctx, key, receipt)
	if err == nil {
		e.remember(ctx, idemKey, receipt)
	}
	return res, err
}

func (e *Engine) replayed(ctx context.Context, key domain.WalletKey, receipt domain.MovementReceipt) (*ports.MoveResult, error) {
	w, err := e.wallets.GetByKey(ctx, key)
	if err != nil {
		return nil, toAppError(fmt.Errorf("idempotency wallet lookup: %w", err))
	}
	if w == nil || w.ID != receipt.WalletID {
		return nil, apperror.ErrIdempotencyKeyConflict()
	}
	e.metrics.IdempotentReplay()
	return &ports.MoveResult{
		WalletID:     receipt.WalletID,
		EntryID:      receipt.EntryID,
		Amount:       receipt.Amount,
		NewAvailable: receipt.BalanceAfter,
		Replayed:     true,
	}, nil
}

func (e *Engine) remember(ctx context.Context, idemKey string, receipt domain.MovementReceipt) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(context.WithoutCancel(ctx), idemKey, receipt, e.cfg.IdempotencyTTL); err != nil {
		e.log.Warn().Err(err).Str("idempotency_key", idemKey).Msg("failed to cache idempotency receipt")
	}
}
