package database

import (
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/Aidin1998/crowdfund/pkg/errors"
)

const (
	DuplicateKeyErrorCode = "23505"
	ForeignKeyErrorCode   = "23503"
)

// WrapError maps driver errors onto the API error kinds.
func WrapError(err error) error {
	var pgErr *pgconn.PgError

	if err == nil {
		return nil
	} else if _, ok := err.(*errors.Error); ok {
		return err
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound.Explain("resource not found")
	} else if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Conflict.Explain("duplication of key").Wrap(err)
	} else if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case DuplicateKeyErrorCode:
			return errors.Conflict.Explain("duplication of key").Wrap(err)
		case ForeignKeyErrorCode:
			return errors.Invalid.Explain("referenced resource does not exist").Wrap(err)
		}
	} else if IsUniqueViolation(err) {
		return errors.Conflict.Explain("duplication of key").Wrap(err)
	}

	return err
}

// IsUniqueViolation recognises unique index failures from either driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == DuplicateKeyErrorCode
	}
	// mattn/go-sqlite3 reports "UNIQUE constraint failed: users.email"
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
