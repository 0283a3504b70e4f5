package postgres

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

// SharedHelpers holds query helpers used by every repository
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// getDB returns tx when set, otherwise the base connection
func (h *SharedHelpers) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return h.db
}

// ApplyPaginationAndSort applies ordering and paging. Only whitelisted
// columns are accepted for sorting.
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int, allowed map[string]bool) *gorm.DB {
	if sortBy == "" || !allowed[sortBy] {
		sortBy = "created_at"
	}
	if sortOrder != "asc" {
		sortOrder = "desc"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))

	if limit > 0 {
		if limit > 100 {
			limit = 100
		}
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}

// translateError maps gorm errors onto repository sentinels
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repositories.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", repositories.ErrDuplicate, err)
	default:
		return err
	}
}
