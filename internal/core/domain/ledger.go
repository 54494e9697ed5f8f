package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Category classifies a ledger entry. The set is closed.
type Category string

const (
	CategoryTopup             Category = "topup"
	CategoryOrderPayment      Category = "order_payment"
	CategoryRefund            Category = "refund"
	CategoryWithdrawal        Category = "withdrawal"
	CategoryCommission        Category = "commission"
	CategoryDistributorReward Category = "distributor_reward"
	CategoryAdminAdjustment   Category = "admin_adjustment"
	CategoryFreeze            Category = "freeze"
	CategoryUnfreeze          Category = "unfreeze"
	CategoryCreditDrawdown    Category = "credit_drawdown"
	CategoryCreditRepayment   Category = "credit_repayment"
)

// Direction constrains the sign of a category's amount.
type Direction int

const (
	DirectionCredit Direction = iota + 1
	DirectionDebit
	DirectionEither
	// DirectionInternal categories are produced by the engine only.
	DirectionInternal
)

type categoryRule struct {
	direction Direction
	adminOnly bool
}

var categoryRules = map[Category]categoryRule{
	CategoryTopup:             {direction: DirectionCredit},
	CategoryOrderPayment:      {direction: DirectionDebit},
	CategoryRefund:            {direction: DirectionCredit},
	CategoryWithdrawal:        {direction: DirectionDebit},
	CategoryCommission:        {direction: DirectionCredit},
	CategoryDistributorReward: {direction: DirectionCredit},
	CategoryAdminAdjustment:   {direction: DirectionEither, adminOnly: true},
	CategoryFreeze:            {direction: DirectionInternal},
	CategoryUnfreeze:          {direction: DirectionInternal},
	CategoryCreditDrawdown:    {direction: DirectionInternal},
	CategoryCreditRepayment:   {direction: DirectionInternal},
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := categoryRules[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// Categories lists every category in name order.
func Categories() []Category {
	out := make([]Category, 0, len(categoryRules))
	for c := range categoryRules {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c Category) Valid() bool {
	_, ok := categoryRules[c]
	return ok
}

// Movable reports whether callers may post this category through Move.
func (c Category) Movable() bool {
	rule, ok := categoryRules[c]
	return ok && rule.direction != DirectionInternal
}

func (c Category) Direction() Direction {
	return categoryRules[c].direction
}

// ValidateMove checks a caller-requested movement against the category rules.
func (c Category) ValidateMove(amount int64, actor Actor) error {
	rule, ok := categoryRules[c]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, c)
	}
	if rule.direction == DirectionInternal {
		return fmt.Errorf("%w: %q is engine-internal", ErrInvalidCategory, c)
	}
	if amount == 0 {
		return fmt.Errorf("%w: amount must be non-zero", ErrInvalidAmount)
	}
	if rule.direction == DirectionCredit && amount < 0 {
		return fmt.Errorf("%w: %s must be a credit", ErrInvalidAmount, c)
	}
	if rule.direction == DirectionDebit && amount > 0 {
		return fmt.Errorf("%w: %s must be a debit", ErrInvalidAmount, c)
	}
	if err := actor.Validate(); err != nil {
		return err
	}
	if rule.adminOnly && actor.Kind != ActorAdmin {
		return fmt.Errorf("%w: %s requires an admin", ErrForbidden, c)
	}
	return nil
}

// ActorKind says who initiated a ledger change.
type ActorKind string

const (
	ActorSystem ActorKind = "system"
	ActorAdmin  ActorKind = "admin"
	ActorOwner  ActorKind = "owner"
)

// Actor is recorded on every entry for audit.
type Actor struct {
	Kind ActorKind `json:"kind"`
	ID   string    `json:"id"`
}

func SystemActor(id string) Actor { return Actor{Kind: ActorSystem, ID: id} }
func AdminActor(id string) Actor  { return Actor{Kind: ActorAdmin, ID: id} }
func OwnerActor(id string) Actor  { return Actor{Kind: ActorOwner, ID: id} }

func (a Actor) String() string {
	return string(a.Kind) + ":" + a.ID
}

// Validate requires a known kind and a non-empty id.
func (a Actor) Validate() error {
	switch a.Kind {
	case ActorSystem, ActorAdmin, ActorOwner:
	default:
		return fmt.Errorf("%w: unknown actor kind %q", ErrForbidden, a.Kind)
	}
	if a.ID == "" {
		return fmt.Errorf("%w: actor id is required", ErrForbidden)
	}
	return nil
}

// RequireAdmin fails unless the actor is an administrator.
func (a Actor) RequireAdmin() error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.Kind != ActorAdmin {
		return fmt.Errorf("%w: admin required", ErrForbidden)
	}
	return nil
}

// LedgerEntry is an immutable record of one balance change.
// Amount changes available+frozen, FrozenDelta changes frozen and
// CreditDelta changes credit used. (WalletVersion, Position) orders a
// wallet's entries in commit order.
type LedgerEntry struct {
	ID              uuid.UUID `json:"id"`
	WalletID        uuid.UUID `json:"wallet_id"`
	WalletVersion   int64     `json:"wallet_version"`
	Position        int       `json:"position"`
	Amount          int64     `json:"amount"`
	FrozenDelta     int64     `json:"frozen_delta"`
	CreditDelta     int64     `json:"credit_delta"`
	Currency        Currency  `json:"currency"`
	Category        Category  `json:"category"`
	RelatedEntityID *string   `json:"related_entity_id,omitempty"`
	IdempotencyKey  *string   `json:"idempotency_key,omitempty"`
	BalanceAfter    int64     `json:"balance_after"`
	Actor           Actor     `json:"actor"`
	CreatedAt       time.Time `json:"created_at"`
}

// MovementReceipt is the replayable outcome of an idempotent movement.
type MovementReceipt struct {
	WalletID     uuid.UUID `json:"wallet_id"`
	EntryID      uuid.UUID `json:"entry_id"`
	Category     Category  `json:"category"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
}

func ReceiptOf(e *LedgerEntry) MovementReceipt {
	return MovementReceipt{
		WalletID:     e.WalletID,
		EntryID:      e.ID,
		Category:     e.Category,
		Amount:       e.Amount,
		BalanceAfter: e.BalanceAfter,
	}
}

// ReversalKey is the idempotency key of the correction for entryID.
func ReversalKey(entryID uuid.UUID) string {
	return "reversal:" + entryID.String()
}

// LedgerTotals are per-wallet sums over the entry log.
type LedgerTotals struct {
	Amount      int64 `json:"amount"`
	FrozenDelta int64 `json:"frozen_delta"`
	CreditDelta int64 `json:"credit_delta"`
	Entries     int64 `json:"entries"`
}
