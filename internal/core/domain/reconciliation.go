package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConservationReport compares a wallet's cached balances with its ledger.
type ConservationReport struct {
	WalletID      uuid.UUID `json:"wallet_id"`
	OwnerID       string    `json:"owner_id"`
	Currency      Currency  `json:"currency"`
	Available     int64     `json:"available"`
	Frozen        int64     `json:"frozen"`
	CreditUsed    int64     `json:"credit_used"`
	LedgerTotal   int64     `json:"ledger_total"`
	LedgerFrozen  int64     `json:"ledger_frozen"`
	LedgerCredit  int64     `json:"ledger_credit"`
	ActiveFreezes int64     `json:"active_freezes"`
	EntryCount    int64     `json:"entry_count"`
	Balanced      bool      `json:"balanced"`
	Discrepancies []string  `json:"discrepancies,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
}

// CheckConservation builds the report for w.
func CheckConservation(w *WalletAccount, totals LedgerTotals, activeFreezes int64, now time.Time) ConservationReport {
	r := ConservationReport{
		WalletID:      w.ID,
		OwnerID:       w.OwnerID,
		Currency:      w.Currency,
		Available:     w.Available,
		Frozen:        w.Frozen,
		CreditUsed:    w.CreditUsed,
		LedgerTotal:   totals.Amount,
		LedgerFrozen:  totals.FrozenDelta,
		LedgerCredit:  totals.CreditDelta,
		ActiveFreezes: activeFreezes,
		EntryCount:    totals.Entries,
		CheckedAt:     now,
	}
	if w.Total() != totals.Amount {
		r.Discrepancies = append(r.Discrepancies, fmt.Sprintf("available+frozen %d != ledger sum %d", w.Total(), totals.Amount))
	}
	if w.Frozen != totals.FrozenDelta {
		r.Discrepancies = append(r.Discrepancies, fmt.Sprintf("frozen %d != ledger frozen %d", w.Frozen, totals.FrozenDelta))
	}
	if w.Frozen != activeFreezes {
		r.Discrepancies = append(r.Discrepancies, fmt.Sprintf("frozen %d != active freezes %d", w.Frozen, activeFreezes))
	}
	if w.CreditUsed != totals.CreditDelta {
		r.Discrepancies = append(r.Discrepancies, fmt.Sprintf("credit used %d != ledger credit %d", w.CreditUsed, totals.CreditDelta))
	}
	r.Balanced = len(r.Discrepancies) == 0
	return r
}
