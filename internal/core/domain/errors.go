package domain

import "errors"

// Business-rule violations. Services translate these into API errors; they
// are never retried.
var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidCurrency      = errors.New("invalid currency")
	ErrCurrencyMismatch     = errors.New("currency mismatch")
	ErrInvalidCategory      = errors.New("invalid ledger category")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrWalletFrozen         = errors.New("funds held by active freeze")
	ErrCreditLimitExceeded  = errors.New("credit limit exceeded")
	ErrCreditLimitBelowUsed = errors.New("credit limit below credit used")
	ErrNoOutstandingCredit  = errors.New("no outstanding credit")
	ErrWalletArchived       = errors.New("wallet archived")
	ErrForbidden            = errors.New("actor not allowed")
	ErrNotReversible        = errors.New("entry not reversible")
	ErrTopUpNotFound        = errors.New("top-up reference not found")
)

// Storage outcomes the engine reacts to.
var (
	ErrVersionConflict         = errors.New("wallet version conflict")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrFreezeAlreadyReleased   = errors.New("freeze already released")
	ErrTransientStorage        = errors.New("transient storage failure")
)
