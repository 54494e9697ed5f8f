package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WalletKey identifies a wallet by owner and currency.
type WalletKey struct {
	OwnerID  string   `json:"owner_id"`
	Currency Currency `json:"currency"`
}

// NewWalletKey validates and normalises a wallet key.
func NewWalletKey(ownerID, currency string) (WalletKey, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return WalletKey{}, fmt.Errorf("%w: owner id is required", ErrInvalidAmount)
	}
	c, err := ParseCurrency(currency)
	if err != nil {
		return WalletKey{}, err
	}
	return WalletKey{OwnerID: ownerID, Currency: c}, nil
}

func (k WalletKey) String() string {
	return k.OwnerID + "/" + string(k.Currency)
}

// WalletAccount is the cached projection of a wallet's ledger. Every change
// bumps Version; writers must compare-and-swap on it.
type WalletAccount struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Currency    Currency   `json:"currency"`
	Available   int64      `json:"available"`
	Frozen      int64      `json:"frozen"`
	CreditLimit int64      `json:"credit_limit"`
	CreditUsed  int64      `json:"credit_used"`
	Version     int64      `json:"version"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewWalletAccount returns an empty wallet for key.
func NewWalletAccount(key WalletKey, now time.Time) *WalletAccount {
	return &WalletAccount{
		ID:        uuid.New(),
		OwnerID:   key.OwnerID,
		Currency:  key.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (w *WalletAccount) Key() WalletKey {
	return WalletKey{OwnerID: w.OwnerID, Currency: w.Currency}
}

// Total is available plus frozen, the amount the ledger sums to.
func (w *WalletAccount) Total() int64 {
	return w.Available + w.Frozen
}

// CreditHeadroom is how much more credit may be drawn.
func (w *WalletAccount) CreditHeadroom() int64 {
	if w.CreditLimit <= w.CreditUsed {
		return 0
	}
	return w.CreditLimit - w.CreditUsed
}

func (w *WalletAccount) IsArchived() bool {
	return w.ArchivedAt != nil
}

// Apply mutates the balances by one posting. A posting that would overflow
// a balance fails with ErrInvalidAmount and leaves w unchanged.
func (w *WalletAccount) Apply(p Posting) error {
	delta, ok := addInt64(p.Amount, -p.FrozenDelta)
	if !ok || p.FrozenDelta == math.MinInt64 {
		return fmt.Errorf("%w: posting out of range", ErrInvalidAmount)
	}
	available, ok1 := addInt64(w.Available, delta)
	frozen, ok2 := addInt64(w.Frozen, p.FrozenDelta)
	creditUsed, ok3 := addInt64(w.CreditUsed, p.CreditDelta)
	if !ok1 || !ok2 || !ok3 {
		return fmt.Errorf("%w: balance overflow", ErrInvalidAmount)
	}
	w.Available, w.Frozen, w.CreditUsed = available, frozen, creditUsed
	return nil
}

// addInt64 returns a+b and false if the sum overflows.
func addInt64(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// CheckInvariants verifies the balance constraints that must hold after
// every committed change.
func (w *WalletAccount) CheckInvariants() error {
	switch {
	case w.Available < 0:
		return fmt.Errorf("%w: available would be %d", ErrInsufficientFunds, w.Available)
	case w.Frozen < 0:
		return fmt.Errorf("%w: frozen would be %d", ErrInvalidAmount, w.Frozen)
	case w.CreditUsed < 0:
		return fmt.Errorf("%w: credit used would be %d", ErrInvalidAmount, w.CreditUsed)
	case w.CreditUsed > w.CreditLimit:
		return fmt.Errorf("%w: credit used %d over limit %d", ErrCreditLimitExceeded, w.CreditUsed, w.CreditLimit)
	}
	return nil
}

// Balance is the read model returned to collaborators.
type Balance struct {
	WalletID    *uuid.UUID `json:"wallet_id,omitempty"`
	OwnerID     string     `json:"owner_id"`
	Currency    Currency   `json:"currency"`
	Available   int64      `json:"available"`
	Frozen      int64      `json:"frozen"`
	Total       int64      `json:"total"`
	CreditLimit int64      `json:"credit_limit"`
	CreditUsed  int64      `json:"credit_used"`
	Version     int64      `json:"version"`
	Archived    bool       `json:"archived"`
}

// BalanceOf projects a wallet into a Balance. A nil wallet reads as zero.
func BalanceOf(key WalletKey, w *WalletAccount) Balance {
	if w == nil {
		return Balance{OwnerID: key.OwnerID, Currency: key.Currency}
	}
	id := w.ID
	return Balance{
		WalletID:    &id,
		OwnerID:     w.OwnerID,
		Currency:    w.Currency,
		Available:   w.Available,
		Frozen:      w.Frozen,
		Total:       w.Total(),
		CreditLimit: w.CreditLimit,
		CreditUsed:  w.CreditUsed,
		Version:     w.Version,
		Archived:    w.IsArchived(),
	}
}
