package service

import (
	"context"
	"fmt"
	"time"

	"glotrade-wallet/internal/core/domain"
	"glotrade-wallet/internal/core/ports"
	"glotrade-wallet/pkg/apperror"
	"glotrade-wallet/pkg/metrics"

	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	engine  *Engine
	wallets ports.WalletRepository
	ledger  ports.LedgerRepository
	metrics *metrics.Collector
	log     zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	engine *Engine,
	wallets ports.WalletRepository,
	ledger ports.LedgerRepository,
	m *metrics.Collector,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		engine:  engine,
		wallets: wallets,
		ledger:  ledger,
		metrics: m,
		log:     log,
	}
}

// Move applies a signed amount to the wallet identified by req.Key, creating
// the wallet on first use.
func (s *LedgerServiceImpl) Move(ctx context.Context, req ports.MoveRequest) (*ports.MoveResult, error) {
	start := time.Now()
	res, err := s.move(ctx, req)
	s.metrics.RecordMovement(string(req.Category), movementOutcome(res, err), time.Since(start))
	if err != nil {
		s.log.Debug().Err(err).
			Str("wallet", req.Key.String()).
			Str("category", string(req.Category)).
			Int64("amount", req.Amount).
			Msg("movement rejected")
		return nil, err
	}

	s.log.Info().
		Str("wallet_id", res.WalletID.String()).
		Str("entry_id", res.EntryID.String()).
		Str("category", string(req.Category)).
		Int64("amount", req.Amount).
		Bool("replayed", res.Replayed).
		Msg("movement applied")
	return res, nil
}

func (s *LedgerServiceImpl) move(ctx context.Context, req ports.MoveRequest) (*ports.MoveResult, error) {
	if err := validateKey(req.Key); err != nil {
		return nil, err
	}
	if err := req.Category.ValidateMove(req.Amount, req.Actor); err != nil {
		return nil, toAppError(err)
	}

	meta := domain.EntryMeta{
		IdempotencyKey:  req.IdempotencyKey,
		RelatedEntityID: req.RelatedEntityID,
		Actor:           req.Actor,
	}
	return s.engine.post(ctx, req.Key, s.engine.loadOrCreate(req.Key), meta, func(w *domain.WalletAccount) ([]domain.Posting, error) {
		return domain.PlanMove(w, req.Amount, req.Category)
	})
}

// Reverse posts an admin_adjustment that cancels a previous movement. The
// reversal is keyed on the original entry, so reversing twice is a replay.
func (s *LedgerServiceImpl) Reverse(ctx context.Context, req ports.ReverseRequest) (*ports.MoveResult, error) {
	if err := req.Actor.RequireAdmin(); err != nil {
		return nil, toAppError(err)
	}

	entry, err := s.ledger.GetByID(ctx, req.EntryID)
	if err != nil {
		return nil, toAppError(fmt.Errorf("get entry: %w", err))
	}
	if entry == nil {
		return nil, apperror.ErrNotFound("ledger entry")
	}
	if !entry.Category.Movable() || entry.Amount == 0 {
		return nil, apperror.ErrNotReversible()
	}

	w, err := s.wallets.GetByID(ctx, entry.WalletID)
	if err != nil {
		return nil, toAppError(fmt.Errorf("get wallet: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	key := w.Key()

	start := time.Now()
	meta := domain.EntryMeta{
		IdempotencyKey:  domain.ReversalKey(entry.ID),
		RelatedEntityID: entry.ID.String(),
		Actor:           req.Actor,
	}
	res, err := s.engine.post(ctx, key, s.engine.loadExisting(key), meta, func(w *domain.WalletAccount) ([]domain.Posting, error) {
		return domain.PlanMove(w, -entry.Amount, domain.CategoryAdminAdjustment)
	})
	s.metrics.RecordMovement(string(domain.CategoryAdminAdjustment), movementOutcome(res, err), time.Since(start))
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("reversed_entry_id", entry.ID.String()).
		Str("entry_id", res.EntryID.String()).
		Str("actor", req.Actor.String()).
		Bool("replayed", res.Replayed).
		Msg("entry reversed")
	return res, nil
}

// GetBalance returns the wallet's balances. A wallet that was never used
// reads as zero and is not created.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, key domain.WalletKey) (*domain.Balance, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	w, err := s.wallets.GetByKey(ctx, key)
	if err != nil {
		return nil, toAppError(fmt.Errorf("get wallet: %w", err))
	}
	b := domain.BalanceOf(key, w)
	return &b, nil
}

// ListEntries returns one page of the wallet's history, newest first.
func (s *LedgerServiceImpl) ListEntries(ctx context.Context, q ports.EntryQuery) ([]domain.LedgerEntry, int64, error) {
	if err := validateKey(q.Key); err != nil {
		return nil, 0, err
	}
	if q.Category != nil && !q.Category.Valid() {
		return nil, 0, apperror.ErrInvalidCategory()
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, 0, apperror.Validation("'to' must not be before 'from'")
	}

	w, err := s.wallets.GetByKey(ctx, q.Key)
	if err != nil {
		return nil, 0, toAppError(fmt.Errorf("get wallet: %w", err))
	}
	if w == nil {
		return []domain.LedgerEntry{}, 0, nil
	}

	page, size := normalizePage(q.Page, q.PageSize)
	entries, total, err := s.ledger.List(ctx, ports.LedgerListParams{
		WalletID: w.ID,
		Category: q.Category,
		From:     q.From,
		To:       q.To,
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		return nil, 0, toAppError(fmt.Errorf("list entries: %w", err))
	}
	return entries, total, nil
}

// Archive soft-archives a wallet. Its history stays readable.
func (s *LedgerServiceImpl) Archive(ctx context.Context, key domain.WalletKey, actor domain.Actor) error {
	if err := actor.RequireAdmin(); err != nil {
		return toAppError(err)
	}
	if err := validateKey(key); err != nil {
		return err
	}
	found, err := s.wallets.Archive(ctx, key, s.engine.now())
	if err != nil {
		return toAppError(fmt.Errorf("archive wallet: %w", err))
	}
	if !found {
		return apperror.ErrNotFound("wallet")
	}
	s.log.Info().Str("wallet", key.String()).Str("actor", actor.String()).Msg("wallet archived")
	return nil
}

func validateKey(key domain.WalletKey) error {
	if key.OwnerID == "" {
		return apperror.Validation("owner id is required")
	}
	if !key.Currency.Valid() {
		return apperror.Validation(fmt.Sprintf("unsupported currency %q", key.Currency))
	}
	return nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func movementOutcome(res *ports.MoveResult, err error) string {
	switch {
	case err == nil && res != nil && res.Replayed:
		return metrics.OutcomeReplayed
	case err == nil:
		return metrics.OutcomeApplied
	case apperror.HasCode(err, "SYS_001"), apperror.HasCode(err, "SYS_002"), apperror.HasCode(err, "WAL_004"):
		return metrics.OutcomeFailed
	default:
		return metrics.OutcomeRejected
	}
}
