package service

import (
	"context"
	"time"

	"glotrade-wallet/internal/core/domain"
	"glotrade-wallet/internal/core/ports"
	"glotrade-wallet/pkg/apperror"
	"glotrade-wallet/pkg/metrics"

	"github.com/rs/zerolog"
)

// CreditServiceImpl implements ports.CreditService. Drawdown happens inside
// the engine's debit planning; this service covers the explicit operations.
type CreditServiceImpl struct {
	engine  *Engine
	metrics *metrics.Collector
	log     zerolog.Logger
}

// NewCreditService creates a new CreditServiceImpl.
func NewCreditService(engine *Engine, m *metrics.Collector, log zerolog.Logger) *CreditServiceImpl {
	return &CreditServiceImpl{engine: engine, metrics: m, log: log}
}

// Repay reduces credit used, clamped to what is outstanding.
func (s *CreditServiceImpl) Repay(ctx context.Context, req ports.RepayRequest) (*ports.MoveResult, error) {
	if err := validateKey(req.Key); err != nil {
		return nil, err
	}
	if err := req.Actor.Validate(); err != nil {
		return nil, toAppError(err)
	}
	if req.Amount <= 0 {
		return nil, apperror.Validation("repayment amount must be positive")
	}

	start := time.Now()
	meta := domain.EntryMeta{IdempotencyKey: req.IdempotencyKey, Actor: req.Actor}
	res, err := s.engine.post(ctx, req.Key, s.engine.loadExisting(req.Key), meta, func(w *domain.WalletAccount) ([]domain.Posting, error) {
		p, err := domain.PlanRepayment(w, req.Amount, req.FromWallet)
		if err != nil {
			return nil, err
		}
		return []domain.Posting{p}, nil
	})
	s.metrics.RecordMovement(string(domain.CategoryCreditRepayment), movementOutcome(res, err), time.Since(start))
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("wallet_id", res.WalletID.String()).
		Str("entry_id", res.EntryID.String()).
		Int64("requested", req.Amount).
		Bool("from_wallet", req.FromWallet).
		Bool("replayed", res.Replayed).
		Msg("credit repaid")
	return res, nil
}

// SetCreditLimit changes a wallet's credit limit. No ledger entry is
// written; the change is a version-checked wallet update.
func (s *CreditServiceImpl) SetCreditLimit(ctx context.Context, key domain.WalletKey, newLimit int64, actor domain.Actor) (*domain.Balance, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, toAppError(err)
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	c, err := s.engine.apply(ctx, s.engine.loadExisting(key), func(w *domain.WalletAccount, now time.Time) (*domain.LedgerCommit, error) {
		if err := domain.CheckCreditLimit(w, newLimit); err != nil {
			return nil, err
		}
		next := *w
		next.CreditLimit = newLimit
		return next.Post(nil, domain.EntryMeta{Actor: actor}, now)
	})
	if err != nil {
		return nil, toAppError(err)
	}

	s.log.Info().
		Str("wallet", key.String()).
		Int64("credit_limit", newLimit).
		Str("actor", actor.String()).
		Msg("credit limit updated")
	b := domain.BalanceOf(key, c.Wallet)
	return &b, nil
}
