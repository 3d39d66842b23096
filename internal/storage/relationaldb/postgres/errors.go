package postgres

import (
	"strings"

	"github.com/lib/pq"

	"github.com/sokopay/ledgerd/internal/storage/relationaldb"
)

// PostgreSQL SQLSTATE codes the core branches on.
const (
	sqlstateUniqueViolation      = "23505"
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
)

// classify maps driver errors onto the relationaldb sentinels so core
// services can branch with errors.Is regardless of driver.
func classify(operation string, err error) error {
	if err == nil {
		return nil
	}

	if pqErr, ok := err.(*pq.Error); ok {
		switch string(pqErr.Code) {
		case sqlstateUniqueViolation:
			return relationaldb.NewConstraintError(operation, "unique constraint violation",
				relationaldb.ErrUniqueViolation)
		case sqlstateSerializationFailure, sqlstateDeadlockDetected:
			return relationaldb.NewTransactionError(operation, "serialization conflict",
				relationaldb.ErrSerializationFailure)
		}
		return relationaldb.NewQueryError(operation, pqErr.Message, err)
	}

	// modernc sqlite reports constraint failures in the message text.
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE") {
		return relationaldb.NewConstraintError(operation, "unique constraint violation",
			relationaldb.ErrUniqueViolation)
	}

	return relationaldb.NewQueryError(operation, "query failed", err)
}
