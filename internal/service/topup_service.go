package service

import (
	"context"
	"errors"
	"strings"

	"glotrade-wallet/internal/core/domain"
	"glotrade-wallet/internal/core/ports"
	"glotrade-wallet/pkg/apperror"

	"github.com/rs/zerolog"
)

// TopUpServiceImpl implements ports.TopUpService. The provider and its
// reference form the idempotency key, so webhooks and client polls credit once.
type TopUpServiceImpl struct {
	ledger    ports.LedgerService
	verifiers map[string]ports.PaymentVerifier
	log       zerolog.Logger
}

// NewTopUpService creates a new TopUpServiceImpl.
func NewTopUpService(ledger ports.LedgerService, verifiers []ports.PaymentVerifier, log zerolog.Logger) *TopUpServiceImpl {
	byName := make(map[string]ports.PaymentVerifier, len(verifiers))
	for _, v := range verifiers {
		byName[v.Name()] = v
	}
	return &TopUpServiceImpl{ledger: ledger, verifiers: byName, log: log}
}

// Confirm verifies a reference with its provider and credits the wallet.
func (s *TopUpServiceImpl) Confirm(ctx context.Context, req ports.TopUpConfirmation) (*ports.TopUpResult, error) {
	verifier, ok := s.verifiers[req.Provider]
	if !ok {
		return nil, apperror.ErrUnknownProvider(req.Provider)
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return nil, apperror.Validation("reference is required")
	}

	payment, err := verifier.Verify(ctx, reference)
	if err != nil {
		if errors.Is(err, domain.ErrTopUpNotFound) {
			return nil, apperror.ErrTopUpNotFound()
		}
		s.log.Warn().Err(err).Str("provider", req.Provider).Str("reference", reference).Msg("payment verification failed")
		return nil, apperror.ErrProviderUnavailable(err)
	}

	switch payment.Status {
	case domain.PaymentFailed:
		return nil, apperror.ErrTopUpFailed()
	case domain.PaymentPending:
		return nil, apperror.ErrTopUpPending()
	case domain.PaymentSuccess:
	default:
		return nil, apperror.ErrProviderUnavailable(errors.New("unrecognised payment status " + string(payment.Status)))
	}

	owner := payment.OwnerID
	if owner == "" {
		owner = req.OwnerID
	}
	if owner == "" || (req.OwnerID != "" && req.OwnerID != owner) {
		s.log.Warn().
			Str("reference", reference).
			Str("requested_owner", req.OwnerID).
			Str("verified_owner", payment.OwnerID).
			Msg("top-up owner mismatch")
		return nil, apperror.ErrTopUpMismatch()
	}
	if !payment.Amount.IsPositive() || !payment.Amount.Currency.Valid() {
		return nil, apperror.ErrTopUpMismatch()
	}

	move, err := s.ledger.Move(ctx, ports.MoveRequest{
		Key:             domain.WalletKey{OwnerID: owner, Currency: payment.Amount.Currency},
		Amount:          payment.Amount.Amount,
		Category:        domain.CategoryTopup,
		IdempotencyKey:  domain.TopUpIdempotencyKey(req.Provider, reference),
		RelatedEntityID: req.Provider,
		Actor:           domain.SystemActor("topup:" + req.Provider),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("provider", req.Provider).
		Str("reference", reference).
		Str("owner_id", owner).
		Str("amount", payment.Amount.String()).
		Bool("replayed", move.Replayed).
		Msg("top-up confirmed")
	return &ports.TopUpResult{Payment: *payment, Move: *move}, nil
}
