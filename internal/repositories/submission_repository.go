package repositories

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
)

type SubmissionRepository interface {
	// Create returns ErrDuplicate when the student already submitted the exam
	Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error
	GetByExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.Submission, error)
	ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Submission, error)
	CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error)
	// ListByStudent matches on email or student id, newest first
	ListByStudent(ctx context.Context, tx *gorm.DB, email, studentID string) ([]*models.Submission, error)
}
