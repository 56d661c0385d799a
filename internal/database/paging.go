package database

import "gorm.io/gorm"

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Paginate clamps limit/offset and applies them as a gorm scope.
func Paginate(limit, offset int) func(*gorm.DB) *gorm.DB {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(limit).Offset(offset)
	}
}
