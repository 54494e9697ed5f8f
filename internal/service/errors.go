package service

import (
	"errors"

	"glotrade-wallet/internal/core/domain"
	"glotrade-wallet/pkg/apperror"
)

// domainErrors maps business-rule sentinels to their API errors.
var domainErrors = []struct {
	sentinel error
	build    func() *apperror.AppError
}{
	{domain.ErrInsufficientFunds, apperror.ErrInsufficientFunds},
	{domain.ErrWalletFrozen, apperror.ErrWalletFrozen},
	{domain.ErrCreditLimitExceeded, apperror.ErrCreditLimitExceeded},
	{domain.ErrCreditLimitBelowUsed, apperror.ErrCreditLimitBelowUsed},
	{domain.ErrNoOutstandingCredit, apperror.ErrNoOutstandingCredit},
	{domain.ErrWalletArchived, apperror.ErrWalletArchived},
	{domain.ErrInvalidCategory, apperror.ErrInvalidCategory},
	{domain.ErrForbidden, apperror.ErrForbidden},
	{domain.ErrNotReversible, apperror.ErrNotReversible},
	{domain.ErrFreezeAlreadyReleased, apperror.ErrAlreadyReleased},
	{domain.ErrTopUpNotFound, apperror.ErrTopUpNotFound},
	{domain.ErrInvalidAmount, apperror.ErrInvalidAmount},
	{domain.ErrInvalidCurrency, apperror.ErrInvalidAmount},
	{domain.ErrCurrencyMismatch, apperror.ErrInvalidAmount},
}

// toAppError translates an error from the domain or storage layers into the
// API error returned to callers. AppErrors pass through untouched.
func toAppError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	for _, m := range domainErrors {
		if errors.Is(err, m.sentinel) {
			e := m.build()
			e.Err = err
			return e
		}
	}
	switch {
	case errors.Is(err, domain.ErrVersionConflict):
		return apperror.ErrConcurrentModification()
	case errors.Is(err, domain.ErrTransientStorage):
		return apperror.ErrStorageUnavailable(err)
	}
	return apperror.InternalError(err)
}
