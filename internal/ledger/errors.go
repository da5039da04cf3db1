package ledger

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrMarketNotFound  = errors.New("market not found")
	ErrMarketNotActive = errors.New("market is not active")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrStorageConflict = errors.New("storage conflict")
)

// isConflict reports whether err is a transient serialization failure that
// is safe to retry from scratch.
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStorageConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
