package repositories

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
)

type ExamRepository interface {
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	// GetByIDForUpdate row-locks the exam for the rest of tx
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Exam, error)
	List(ctx context.Context, tx *gorm.DB, filters ExamFilters) ([]*models.Exam, int64, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
}
