package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Retryable  bool   `json:"retryable,omitempty"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ---- Wallet & Ledger (WAL) ----

func ErrInsufficientFunds() *AppError {
	return New("WAL_001", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrWalletFrozen() *AppError {
	return New("WAL_002", "Requested amount is held by an active freeze", http.StatusLocked)
}

func ErrCreditLimitExceeded() *AppError {
	return New("WAL_003", "Debit exceeds available balance and credit headroom", http.StatusPaymentRequired)
}

func ErrConcurrentModification() *AppError {
	e := New("WAL_004", "Wallet was modified concurrently, retry the request", http.StatusConflict)
	e.Retryable = true
	return e
}

func ErrInvalidAmount() *AppError {
	return New("WAL_005", "Invalid amount", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("WAL_006", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrAlreadyReleased() *AppError {
	return New("WAL_007", "Freeze has already been released", http.StatusConflict)
}

func ErrIdempotencyKeyConflict() *AppError {
	return New("WAL_008", "Idempotency key was already used for a different wallet", http.StatusConflict)
}

func ErrInvalidCategory() *AppError {
	return New("WAL_009", "Invalid ledger category", http.StatusBadRequest)
}

func ErrCreditLimitBelowUsed() *AppError {
	return New("WAL_010", "Credit limit cannot be lower than credit already used", http.StatusUnprocessableEntity)
}

func ErrWalletArchived() *AppError {
	return New("WAL_011", "Wallet is archived", http.StatusGone)
}

func ErrNoOutstandingCredit() *AppError {
	return New("WAL_012", "Wallet has no outstanding credit", http.StatusUnprocessableEntity)
}

func ErrNotReversible() *AppError {
	return New("WAL_013", "Ledger entry cannot be reversed", http.StatusUnprocessableEntity)
}

func ErrForbidden() *AppError {
	return New("WAL_014", "Actor is not allowed to perform this operation", http.StatusForbidden)
}

// ---- Top-up reconciliation (TOP) ----

func ErrTopUpFailed() *AppError {
	return New("TOP_001", "Payment provider reported the top-up as failed", http.StatusPaymentRequired)
}

func ErrTopUpNotFound() *AppError {
	return New("TOP_002", "Payment provider does not know this reference", http.StatusNotFound)
}

func ErrTopUpPending() *AppError {
	e := New("TOP_003", "Top-up is still pending at the payment provider", http.StatusConflict)
	e.Retryable = true
	return e
}

func ErrTopUpMismatch() *AppError {
	return New("TOP_004", "Verified payment does not match the requested wallet", http.StatusUnprocessableEntity)
}

func ErrUnknownProvider(name string) *AppError {
	return New("TOP_005", fmt.Sprintf("unknown payment provider %q", name), http.StatusBadRequest)
}

// ErrProviderUnavailable means the provider could not be reached or answered
// with something other than a verification result.
func ErrProviderUnavailable(err error) *AppError {
	e := Wrap("TOP_006", "Payment provider unavailable", http.StatusBadGateway, err)
	e.Retryable = true
	return e
}

// ---- Rewards (RWD) ----

func ErrTickInProgress() *AppError {
	e := New("RWD_001", "A reward tick is already running", http.StatusConflict)
	e.Retryable = true
	return e
}

// ---- Authentication (AUTH / SEC) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New("SEC_001", "Invalid signature", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// ErrStorageUnavailable signals that the ledger store kept failing transiently.
func ErrStorageUnavailable(err error) *AppError {
	e := Wrap("SYS_002", "Ledger storage temporarily unavailable, retry the request", http.StatusServiceUnavailable, err)
	e.Retryable = true
	return e
}

// Validation returns a WAL_005-style validation error.
func Validation(message string) *AppError {
	return New("WAL_005", message, http.StatusBadRequest)
}
