package repositories

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
)

type ClassRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Class, error)
	// List returns the classes of teacherID, or every class when it is nil
	List(ctx context.Context, tx *gorm.DB, teacherID *string) ([]*models.Class, error)
	// ListEnrollments returns the roster entries matching email or user id, oldest first
	ListEnrollments(ctx context.Context, tx *gorm.DB, email, userID string) ([]models.ClassStudent, error)
	GetRoster(ctx context.Context, tx *gorm.DB, classID uint) ([]models.ClassStudent, error)
	IsEnrolled(ctx context.Context, tx *gorm.DB, classID uint, email, userID string) (bool, error)
	AttachUserID(ctx context.Context, tx *gorm.DB, entryID uint, userID string) error
}
