package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
)

type QuestionSetRepository interface {
	// CreateBatch inserts sets together with their items
	CreateBatch(ctx context.Context, tx *gorm.DB, sets []*models.QuestionSet) error
	// DeleteByExam removes every set and item of an exam
	DeleteByExam(ctx context.Context, tx *gorm.DB, examID uint) error

	GetByExamAndEmail(ctx context.Context, tx *gorm.DB, examID uint, email string) (*models.QuestionSet, error)
	GetByExamAndStudentID(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.QuestionSet, error)
	ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.QuestionSet, error)
	ListByStudent(ctx context.Context, tx *gorm.DB, email, studentID string) ([]*models.QuestionSet, error)

	MarkStarted(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error
	// MarkCompleted flips is_completed on an open set. It reports false when
	// the set was already completed.
	MarkCompleted(ctx context.Context, tx *gorm.DB, id uint, at time.Time) (bool, error)
	CompleteOpenByExam(ctx context.Context, tx *gorm.DB, examID uint, at time.Time) (int64, error)
	CompleteOpenByExamAndEmail(ctx context.Context, tx *gorm.DB, examID uint, email string, at time.Time) (int64, error)
}
