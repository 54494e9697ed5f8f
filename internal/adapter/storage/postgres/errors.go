package postgres

import (
	"errors"
	"fmt"

	"glotrade-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

const idempotencyKeyConstraint = "uq_ledger_entries_idempotency_key"

// SQLSTATE codes the ledger store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeAdminShutdown        = "57P01"
	codeCannotConnectNow     = "57P03"
)

// classify maps driver errors onto the domain storage sentinels. Domain
// errors already produced by the repos pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrVersionConflict) ||
		errors.Is(err, domain.ErrDuplicateIdempotencyKey) ||
		errors.Is(err, domain.ErrFreezeAlreadyReleased) ||
		errors.Is(err, domain.ErrTransientStorage) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			if pgErr.ConstraintName == idempotencyKeyConstraint {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateIdempotencyKey, pgErr.Detail)
			}
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable,
			codeAdminShutdown, codeCannotConnectNow:
			return fmt.Errorf("%w: %w", domain.ErrTransientStorage, err)
		}
		return err
	}

	// A timeout may land after the server applied a COMMIT, so only errors
	// raised before anything reached the server are retried.
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", domain.ErrTransientStorage, err)
	}
	return err
}
