package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique index
	ErrDuplicate = errors.New("duplicate record")
)

// Repository groups the per-aggregate repositories and owns transactions.
// Every repository method takes an optional tx; nil means the base connection.
type Repository interface {
	Exam() ExamRepository
	Question() QuestionRepository
	QuestionSet() QuestionSetRepository
	Submission() SubmissionRepository
	Class() ClassRepository
	User() UserRepository

	// WithTransaction runs fn in a single transaction. Returning an error
	// rolls everything back.
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	OwnerID     *string `json:"owner_id"`
	IsPublished *bool   `json:"is_published"`
	Limit       int     `json:"limit"`
	Offset      int     `json:"offset"`
	SortBy      string  `json:"sort_by"`    // "created_at", "title", "start_time"
	SortOrder   string  `json:"sort_order"` // "asc", "desc"
}
