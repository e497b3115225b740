package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsDuplicateKeyErr reports whether err is a unique-constraint violation.
// The idempotent ledger appends and the ownership/high-bid insert-if-absent
// paths all branch on this. gorm only translates the error for dialects with
// translation enabled, so the driver message is the fallback.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") || // postgres 23505
		strings.Contains(msg, "Error 1062") || // mysql
		strings.Contains(msg, "UNIQUE constraint failed") // sqlite
}
