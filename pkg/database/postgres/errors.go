package pg

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

// CheckNoRows maps a sql.ErrNoRows error to the provided error
func CheckNoRows(inErr, outErr error) error {
	if IsNoRows(inErr) {
		return outErr
	}
	return inErr
}

// IsNoRows determines whether the error is a sql.ErrNoRows
func IsNoRows(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, sql.ErrNoRows)
}

// CheckUniqueViolation maps a postgres unique constraint violation to the
// provided error
func CheckUniqueViolation(inErr, outErr error) error {
	if inErr != nil {
		var pgErr *pgconn.PgError
		if errors.As(inErr, &pgErr) {
			if pgErr.Code == pgerrcode.UniqueViolation {
				return outErr
			}
		}
	}
	return inErr
}
