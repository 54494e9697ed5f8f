package service

import (
	"context"
	"fmt"
	"time"

	"glotrade-wallet/internal/core/domain"
	"glotrade-wallet/internal/core/ports"
	"glotrade-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FreezeServiceImpl implements ports.FreezeService.
type FreezeServiceImpl struct {
	engine  *Engine
	wallets ports.WalletRepository
	freezes ports.FreezeRepository
	log     zerolog.Logger
}

// NewFreezeService creates a new FreezeServiceImpl.
func NewFreezeService(engine *Engine, wallets ports.WalletRepository, freezes ports.FreezeRepository, log zerolog.Logger) *FreezeServiceImpl {
	return &FreezeServiceImpl{
		engine:  engine,
		wallets: wallets,
		freezes: freezes,
		log:     log,
	}
}

// Freeze moves part of the available balance into a hold.
func (s *FreezeServiceImpl) Freeze(ctx context.Context, req ports.FreezeRequest) (*domain.FreezeRecord, error) {
	if err := req.Actor.RequireAdmin(); err != nil {
		return nil, toAppError(err)
	}
	if err := validateKey(req.Key); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, apperror.Validation("freeze amount must be positive")
	}

	recordID := uuid.New()
	var record *domain.FreezeRecord
	_, err := s.engine.apply(ctx, s.engine.loadExisting(req.Key), func(w *domain.WalletAccount, now time.Time) (*domain.LedgerCommit, error) {
		p, err := domain.PlanFreeze(w, req.Amount)
		if err != nil {
			return nil, err
		}
		c, err := w.Post([]domain.Posting{p}, domain.EntryMeta{
			RelatedEntityID: recordID.String(),
			Actor:           req.Actor,
		}, now)
		if err != nil {
			return nil, err
		}
		record = &domain.FreezeRecord{
			ID:       recordID,
			WalletID: w.ID,
			Amount:   req.Amount,
			Reason:   req.Reason,
			PlacedBy: req.Actor,
			PlacedAt: now,
		}
		c.NewFreeze = record
		return c, nil
	})
	if err != nil {
		return nil, toAppError(err)
	}

	s.log.Info().
		Str("freeze_id", record.ID.String()).
		Str("wallet", req.Key.String()).
		Int64("amount", req.Amount).
		Str("actor", req.Actor.String()).
		Msg("funds frozen")
	return record, nil
}

// Unfreeze releases a hold. A partial release closes the record and opens a
// replacement holding the remainder, in the same commit.
func (s *FreezeServiceImpl) Unfreeze(ctx context.Context, req ports.UnfreezeRequest) (*ports.UnfreezeResult, error) {
	if err := req.Actor.RequireAdmin(); err != nil {
		return nil, toAppError(err)
	}

	rec, err := s.freezes.GetByID(ctx, req.FreezeID)
	if err != nil {
		return nil, toAppError(fmt.Errorf("get freeze: %w", err))
	}
	if rec == nil {
		return nil, apperror.ErrNotFound("freeze")
	}
	if !rec.IsActive() {
		return nil, apperror.ErrAlreadyReleased()
	}

	amount := req.Amount
	if amount == 0 {
		amount = rec.Amount
	}
	if amount < 0 || amount > rec.Amount {
		return nil, apperror.Validation(fmt.Sprintf("release amount must be between 1 and %d", rec.Amount))
	}

	replacementID := uuid.New()
	var result ports.UnfreezeResult
	c, err := s.engine.apply(ctx, s.loadForRelease(rec), func(w *domain.WalletAccount, now time.Time) (*domain.LedgerCommit, error) {
		if w.IsArchived() {
			return nil, domain.ErrWalletArchived
		}
		p, err := domain.PlanUnfreeze(w, amount)
		if err != nil {
			return nil, err
		}
		c, err := w.Post([]domain.Posting{p}, domain.EntryMeta{
			RelatedEntityID: rec.ID.String(),
			Actor:           req.Actor,
		}, now)
		if err != nil {
			return nil, err
		}

		released := *rec
		releasedAt, releasedBy := now, req.Actor
		released.ReleasedAt = &releasedAt
		released.ReleasedBy = &releasedBy
		c.Release = &domain.FreezeRelease{FreezeID: rec.ID, ReleasedAt: now, ReleasedBy: req.Actor}
		result = ports.UnfreezeResult{Released: &released}

		if amount < rec.Amount {
			replaces := rec.ID
			c.NewFreeze = &domain.FreezeRecord{
				ID:         replacementID,
				WalletID:   rec.WalletID,
				Amount:     rec.Amount - amount,
				Reason:     rec.Reason,
				PlacedBy:   req.Actor,
				PlacedAt:   now,
				ReplacesID: &replaces,
			}
			result.Replacement = c.NewFreeze
		}
		return c, nil
	})
	if err != nil {
		return nil, toAppError(err)
	}
	result.EntryID = c.PrincipalEntry().ID

	s.log.Info().
		Str("freeze_id", rec.ID.String()).
		Int64("released", amount).
		Bool("partial", result.Replacement != nil).
		Str("actor", req.Actor.String()).
		Msg("funds unfrozen")
	return &result, nil
}

// History lists a wallet's freeze records, newest first.
func (s *FreezeServiceImpl) History(ctx context.Context, key domain.WalletKey) ([]domain.FreezeRecord, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	w, err := s.wallets.GetByKey(ctx, key)
	if err != nil {
		return nil, toAppError(fmt.Errorf("get wallet: %w", err))
	}
	if w == nil {
		return []domain.FreezeRecord{}, nil
	}
	records, err := s.freezes.ListByWallet(ctx, w.ID)
	if err != nil {
		return nil, toAppError(fmt.Errorf("list freezes: %w", err))
	}
	return records, nil
}

// loadForRelease re-checks that the record is still active before reading
// its wallet, so a retry after losing a race reports AlreadyReleased.
func (s *FreezeServiceImpl) loadForRelease(rec *domain.FreezeRecord) loadFunc {
	return func(ctx context.Context) (*domain.WalletAccount, error) {
		current, err := s.freezes.GetByID(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		if current == nil || !current.IsActive() {
			return nil, domain.ErrFreezeAlreadyReleased
		}
		w, err := s.wallets.GetByID(ctx, rec.WalletID)
		if err != nil {
			return nil, err
		}
		if w == nil {
			return nil, apperror.ErrNotFound("wallet")
		}
		return w, nil
	}
}
