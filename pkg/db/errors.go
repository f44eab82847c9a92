package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation       = "23505"
	pgSerializationFailure  = "40001"
	pgDeadlockDetected      = "40P01"
	pgLockNotAvailable      = "55P03"
	sqliteUniqueMessage     = "UNIQUE constraint failed"
	sqliteBusyMessage       = "database is locked"
	sqliteTableLockedMesage = "database table is locked"
)

// IsUniqueViolation reports whether the provided error is a unique constraint violation.
// When constraintName is provided, the helper also requires the constraint (or, on
// sqlite, the column list) to appear in the error.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}
	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, sqliteUniqueMessage) {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}

// IsRetryableTxError reports whether a transaction failed because of contention rather
// than because of its own logic, so rerunning it from scratch may succeed.
func IsRetryableTxError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, sqliteBusyMessage) || strings.Contains(msg, sqliteTableLockedMesage)
}
