package repositories

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
)

// QuestionRepository is plain data access over question content and counters.
// Questions are authored by the question bank; this service only reads them
// and maintains their counters.
type QuestionRepository interface {
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)
	GetIDsByBank(ctx context.Context, tx *gorm.DB, bankID uint) ([]uint, error)
	CountExisting(ctx context.Context, tx *gorm.DB, ids []uint) (int64, error)

	// IncrementUsage atomically bumps usage and correct/incorrect counters and
	// returns the counters as stored after the increment.
	IncrementUsage(ctx context.Context, tx *gorm.DB, id uint, correct bool) (*models.QuestionStats, error)
	// UpdateDerivedStats writes success rate and adaptive label. Call it in
	// the transaction of the IncrementUsage that produced stats; the row lock
	// taken there keeps the counters and the label consistent.
	UpdateDerivedStats(ctx context.Context, tx *gorm.DB, stats *models.QuestionStats) error
}
