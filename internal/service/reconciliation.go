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

// snapshotAttempts bounds how often a check is repeated when the wallet
// changes between its reads.
const snapshotAttempts = 3

// ReconciliationServiceImpl implements ports.ReconciliationService.
type ReconciliationServiceImpl struct {
	wallets ports.WalletRepository
	ledger  ports.LedgerRepository
	freezes ports.FreezeRepository
	metrics *metrics.Collector
	log     zerolog.Logger
	now     func() time.Time
}

// NewReconciliationService creates a new ReconciliationServiceImpl.
func NewReconciliationService(
	wallets ports.WalletRepository,
	ledger ports.LedgerRepository,
	freezes ports.FreezeRepository,
	m *metrics.Collector,
	log zerolog.Logger,
) *ReconciliationServiceImpl {
	return &ReconciliationServiceImpl{
		wallets: wallets,
		ledger:  ledger,
		freezes: freezes,
		metrics: m,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// VerifyConservation compares the wallet's cached balances with the sums of
// its ledger and active freezes. The wallet is read before and after the
// sums; if its version moved in between the check is repeated.
func (s *ReconciliationServiceImpl) VerifyConservation(ctx context.Context, key domain.WalletKey) (*domain.ConservationReport, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		w, err := s.wallets.GetByKey(ctx, key)
		if err != nil {
			return nil, toAppError(fmt.Errorf("get wallet: %w", err))
		}
		if w == nil {
			return nil, apperror.ErrNotFound("wallet")
		}

		totals, err := s.ledger.Totals(ctx, w.ID)
		if err != nil {
			return nil, toAppError(fmt.Errorf("ledger totals: %w", err))
		}
		active, err := s.freezes.SumActive(ctx, w.ID)
		if err != nil {
			return nil, toAppError(fmt.Errorf("active freezes: %w", err))
		}

		after, err := s.wallets.GetByID(ctx, w.ID)
		if err != nil {
			return nil, toAppError(fmt.Errorf("get wallet: %w", err))
		}
		if after != nil && after.Version != w.Version && attempt < snapshotAttempts {
			continue
		}

		report := domain.CheckConservation(w, *totals, active, s.now())
		if !report.Balanced {
			s.metrics.ReconciliationMismatch()
			s.log.Error().
				Str("wallet_id", w.ID.String()).
				Strs("discrepancies", report.Discrepancies).
				Msg("wallet balances disagree with ledger")
		}
		return &report, nil
	}
}
