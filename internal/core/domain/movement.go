package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Posting is one planned balance change, before it becomes a LedgerEntry.
type Posting struct {
	Category    Category
	Amount      int64
	FrozenDelta int64
	CreditDelta int64
}

// EntryMeta carries the caller-supplied fields copied onto entries.
type EntryMeta struct {
	IdempotencyKey  string
	RelatedEntityID string
	Actor           Actor
}

// PlanMove turns a signed movement into postings against a wallet snapshot.
// A debit that overruns available balance is covered by credit when there is
// headroom, producing a credit_drawdown posting ahead of the debit.
func PlanMove(w *WalletAccount, amount int64, category Category) ([]Posting, error) {
	if w.IsArchived() {
		return nil, ErrWalletArchived
	}
	if amount == 0 {
		return nil, fmt.Errorf("%w: amount must be non-zero", ErrInvalidAmount)
	}
	if amount > 0 {
		return []Posting{{Category: category, Amount: amount}}, nil
	}

	need := -amount
	if w.Available >= need {
		return []Posting{{Category: category, Amount: amount}}, nil
	}

	shortfall := need - w.Available
	if w.CreditLimit > 0 && shortfall <= w.CreditHeadroom() {
		return []Posting{
			{Category: CategoryCreditDrawdown, Amount: shortfall, CreditDelta: shortfall},
			{Category: category, Amount: amount},
		}, nil
	}

	switch {
	case w.Frozen > 0 && w.Available+w.Frozen >= need:
		return nil, ErrWalletFrozen
	case w.CreditLimit > 0:
		return nil, ErrCreditLimitExceeded
	default:
		return nil, ErrInsufficientFunds
	}
}

// PlanFreeze moves amount from available to frozen.
func PlanFreeze(w *WalletAccount, amount int64) (Posting, error) {
	if w.IsArchived() {
		return Posting{}, ErrWalletArchived
	}
	if amount <= 0 {
		return Posting{}, fmt.Errorf("%w: freeze amount must be positive", ErrInvalidAmount)
	}
	if amount > w.Available {
		return Posting{}, ErrInsufficientFunds
	}
	return Posting{Category: CategoryFreeze, FrozenDelta: amount}, nil
}

// PlanUnfreeze returns frozen funds to available.
func PlanUnfreeze(w *WalletAccount, amount int64) (Posting, error) {
	if amount <= 0 || amount > w.Frozen {
		return Posting{}, fmt.Errorf("%w: cannot release %d of %d frozen", ErrInvalidAmount, amount, w.Frozen)
	}
	return Posting{Category: CategoryUnfreeze, FrozenDelta: -amount}, nil
}

// PlanRepayment reduces credit used, clamped to what is outstanding. When
// fromWallet is set the repayment is paid out of available balance,
// otherwise it was settled outside the wallet.
func PlanRepayment(w *WalletAccount, amount int64, fromWallet bool) (Posting, error) {
	if w.IsArchived() {
		return Posting{}, ErrWalletArchived
	}
	if amount <= 0 {
		return Posting{}, fmt.Errorf("%w: repayment must be positive", ErrInvalidAmount)
	}
	if w.CreditUsed <= 0 {
		return Posting{}, ErrNoOutstandingCredit
	}
	repaid := min(amount, w.CreditUsed)
	p := Posting{Category: CategoryCreditRepayment, CreditDelta: -repaid}
	if fromWallet {
		if w.Available < repaid {
			return Posting{}, ErrInsufficientFunds
		}
		p.Amount = -repaid
	}
	return p, nil
}

// CheckCreditLimit validates a new credit limit for w.
func CheckCreditLimit(w *WalletAccount, newLimit int64) error {
	if w.IsArchived() {
		return ErrWalletArchived
	}
	if newLimit < 0 {
		return fmt.Errorf("%w: credit limit must not be negative", ErrInvalidAmount)
	}
	if newLimit < w.CreditUsed {
		return ErrCreditLimitBelowUsed
	}
	return nil
}

// LedgerCommit is everything one atomic store write must apply: the new
// wallet state guarded by ExpectedVersion, the entries, and freeze changes.
type LedgerCommit struct {
	Wallet          *WalletAccount
	ExpectedVersion int64
	Entries         []LedgerEntry
	NewFreeze       *FreezeRecord
	Release         *FreezeRelease
}

// PrincipalEntry is the entry carrying the idempotency key, always the last.
func (c *LedgerCommit) PrincipalEntry() *LedgerEntry {
	if len(c.Entries) == 0 {
		return nil
	}
	return &c.Entries[len(c.Entries)-1]
}

// Post applies postings to a copy of w and returns the commit that persists
// them. The idempotency key goes on the final posting only.
func (w *WalletAccount) Post(postings []Posting, meta EntryMeta, now time.Time) (*LedgerCommit, error) {
	next := *w
	next.Version = w.Version + 1
	next.UpdatedAt = now

	entries := make([]LedgerEntry, 0, len(postings))
	for i, p := range postings {
		if err := next.Apply(p); err != nil {
			return nil, err
		}
		e := LedgerEntry{
			ID:            uuid.New(),
			WalletID:      w.ID,
			WalletVersion: next.Version,
			Position:      i,
			Amount:        p.Amount,
			FrozenDelta:   p.FrozenDelta,
			CreditDelta:   p.CreditDelta,
			Currency:      w.Currency,
			Category:      p.Category,
			BalanceAfter:  next.Available,
			Actor:         meta.Actor,
			CreatedAt:     now,
		}
		if meta.RelatedEntityID != "" {
			e.RelatedEntityID = stringPtr(meta.RelatedEntityID)
		}
		if meta.IdempotencyKey != "" && i == len(postings)-1 {
			e.IdempotencyKey = stringPtr(meta.IdempotencyKey)
		}
		entries = append(entries, e)
	}

	if err := next.CheckInvariants(); err != nil {
		return nil, err
	}

	return &LedgerCommit{
		Wallet:          &next,
		ExpectedVersion: w.Version,
		Entries:         entries,
	}, nil
}

func stringPtr(s string) *string { return &s }
