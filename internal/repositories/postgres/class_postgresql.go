package postgres

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

type ClassPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewClassPostgreSQL(db *gorm.DB) repositories.ClassRepository {
	return &ClassPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (c *ClassPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Class, error) {
	db := c.helpers.getDB(tx)
	var class models.Class
	if err := db.WithContext(ctx).First(&class, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &class, nil
}

func (c *ClassPostgreSQL) List(ctx context.Context, tx *gorm.DB, teacherID *string) ([]*models.Class, error) {
	db := c.helpers.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Class{})
	if teacherID != nil {
		query = query.Where("teacher_id = ?", *teacherID)
	}

	var classes []*models.Class
	if err := query.Order("id asc").Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

func (c *ClassPostgreSQL) ListEnrollments(ctx context.Context, tx *gorm.DB, email, userID string) ([]models.ClassStudent, error) {
	db := c.helpers.getDB(tx)

	query := db.WithContext(ctx).Model(&models.ClassStudent{})
	if userID != "" {
		query = query.Where("LOWER(email) = ? OR user_id = ?", models.NormalizeEmail(email), userID)
	} else {
		query = query.Where("LOWER(email) = ?", models.NormalizeEmail(email))
	}

	var entries []models.ClassStudent
	if err := query.Order("joined_at asc, id asc").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *ClassPostgreSQL) GetRoster(ctx context.Context, tx *gorm.DB, classID uint) ([]models.ClassStudent, error) {
	db := c.helpers.getDB(tx)

	var exists int64
	if err := db.WithContext(ctx).Model(&models.Class{}).Where("id = ?", classID).Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, repositories.ErrNotFound
	}

	var students []models.ClassStudent
	if err := db.WithContext(ctx).
		Where("class_id = ?", classID).
		Order("id asc").
		Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

func (c *ClassPostgreSQL) IsEnrolled(ctx context.Context, tx *gorm.DB, classID uint, email, userID string) (bool, error) {
	db := c.helpers.getDB(tx)
	var count int64

	query := db.WithContext(ctx).Model(&models.ClassStudent{}).Where("class_id = ?", classID)
	if userID != "" {
		query = query.Where("LOWER(email) = ? OR user_id = ?", models.NormalizeEmail(email), userID)
	} else {
		query = query.Where("LOWER(email) = ?", models.NormalizeEmail(email))
	}

	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (c *ClassPostgreSQL) AttachUserID(ctx context.Context, tx *gorm.DB, entryID uint, userID string) error {
	db := c.helpers.getDB(tx)
	return db.WithContext(ctx).Model(&models.ClassStudent{}).
		Where("id = ? AND user_id IS NULL", entryID).
		Update("user_id", userID).Error
}
