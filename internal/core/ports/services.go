package ports

//go:generate mockgen -destination=mocks/services.go -package=mocks glotrade-wallet/internal/core/ports LedgerService,FreezeService,CreditService,ReconciliationService,TopUpService,RewardService,TokenService

import (
	"context"
	"time"

	"glotrade-wallet/internal/core/domain"

	"github.com/google/uuid"
)

// MoveRequest asks the engine to apply a signed amount to a wallet.
type MoveRequest struct {
	Key             domain.WalletKey
	Amount          int64 // minor units; negative debits
	Category        domain.Category
	IdempotencyKey  string
	RelatedEntityID string
	Actor           domain.Actor
}

// MoveResult is returned for both fresh and replayed movements.
type MoveResult struct {
	WalletID     uuid.UUID `json:"wallet_id"`
	EntryID      uuid.UUID `json:"entry_id"`
	Amount       int64     `json:"amount"`
	NewAvailable int64     `json:"new_available"`
	Replayed     bool      `json:"replayed"`
}

// ReverseRequest corrects a previous entry with an opposite-signed one.
type ReverseRequest struct {
	EntryID uuid.UUID
	Actor   domain.Actor
}

// EntryQuery filters ListEntries.
type EntryQuery struct {
	Key      domain.WalletKey
	Category *domain.Category
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// LedgerService is the funds movement engine and its read side.
type LedgerService interface {
	Move(ctx context.Context, req MoveRequest) (*MoveResult, error)
	Reverse(ctx context.Context, req ReverseRequest) (*MoveResult, error)
	GetBalance(ctx context.Context, key domain.WalletKey) (*domain.Balance, error)
	ListEntries(ctx context.Context, q EntryQuery) ([]domain.LedgerEntry, int64, error)
	Archive(ctx context.Context, key domain.WalletKey, actor domain.Actor) error
}

// FreezeRequest places a hold on part of the available balance.
type FreezeRequest struct {
	Key    domain.WalletKey
	Amount int64
	Reason string
	Actor  domain.Actor
}

// UnfreezeRequest releases a hold. Amount zero releases the whole record.
type UnfreezeRequest struct {
	FreezeID uuid.UUID
	Amount   int64
	Actor    domain.Actor
}

// UnfreezeResult carries the released record and, for a partial release,
// the replacement holding the remainder.
type UnfreezeResult struct {
	Released    *domain.FreezeRecord `json:"released"`
	Replacement *domain.FreezeRecord `json:"replacement,omitempty"`
	EntryID     uuid.UUID            `json:"entry_id"`
}

// FreezeService manages holds on wallet balances.
type FreezeService interface {
	Freeze(ctx context.Context, req FreezeRequest) (*domain.FreezeRecord, error)
	Unfreeze(ctx context.Context, req UnfreezeRequest) (*UnfreezeResult, error)
	History(ctx context.Context, key domain.WalletKey) ([]domain.FreezeRecord, error)
}

// RepayRequest reduces credit used on a payment-terms wallet.
type RepayRequest struct {
	Key            domain.WalletKey
	Amount         int64
	FromWallet     bool
	IdempotencyKey string
	Actor          domain.Actor
}

// CreditService manages credit limits and repayments.
type CreditService interface {
	Repay(ctx context.Context, req RepayRequest) (*MoveResult, error)
	SetCreditLimit(ctx context.Context, key domain.WalletKey, newLimit int64, actor domain.Actor) (*domain.Balance, error)
}

// ReconciliationService checks that wallet projections match the ledger.
type ReconciliationService interface {
	VerifyConservation(ctx context.Context, key domain.WalletKey) (*domain.ConservationReport, error)
}

// TopUpConfirmation asks for a provider reference to be verified and credited.
type TopUpConfirmation struct {
	Provider  string
	Reference string
	OwnerID   string // optional; must match the verified owner when set
}

// TopUpResult is the credited amount and the ledger outcome.
type TopUpResult struct {
	Payment domain.VerifiedPayment `json:"payment"`
	Move    MoveResult             `json:"move"`
}

// TopUpService reconciles provider payments into wallet credits.
type TopUpService interface {
	Confirm(ctx context.Context, req TopUpConfirmation) (*TopUpResult, error)
}

// RewardService exposes the distributor reward schedule.
type RewardService interface {
	Enroll(ctx context.Context, key domain.WalletKey) (*domain.RewardState, error)
	GetState(ctx context.Context, key domain.WalletKey) (*domain.RewardState, error)
	Tick(ctx context.Context) (*domain.RewardTickSummary, error)
}

// Roles carried in access tokens.
const (
	RoleAdmin   = "admin"
	RoleService = "service"
)

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
	Role    string
}

// Actor derives the ledger actor recorded for requests under these claims.
func (c TokenClaims) Actor() domain.Actor {
	if c.Role == RoleAdmin {
		return domain.AdminActor(c.Subject)
	}
	return domain.SystemActor(c.Subject)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(subject, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}
