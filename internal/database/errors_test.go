package database

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/Aidin1998/crowdfund/pkg/errors"
)

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil))

	assert.True(t, errors.Is(WrapError(gorm.ErrRecordNotFound), errors.NotFound))
	assert.True(t, errors.Is(WrapError(fmt.Errorf("find: %w", gorm.ErrRecordNotFound)), errors.NotFound))

	pgDup := &pgconn.PgError{Code: DuplicateKeyErrorCode, Message: "duplicate key value"}
	assert.True(t, errors.Is(WrapError(pgDup), errors.Conflict))

	pgFK := &pgconn.PgError{Code: ForeignKeyErrorCode}
	assert.True(t, errors.Is(WrapError(pgFK), errors.Invalid))

	sqliteDup := fmt.Errorf("UNIQUE constraint failed: projects.slug")
	assert.True(t, errors.Is(WrapError(sqliteDup), errors.Conflict))

	already := errors.Forbidden.Explain("nope")
	assert.Same(t, already, WrapError(already))

	plain := fmt.Errorf("connection reset")
	assert.Equal(t, plain, WrapError(plain))
}
