package postgres

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

type SubmissionPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewSubmissionPostgreSQL(db *gorm.DB) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (s *SubmissionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	db := s.helpers.getDB(tx)
	return translateError(db.WithContext(ctx).Create(submission).Error)
}

func (s *SubmissionPostgreSQL) GetByExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.Submission, error) {
	db := s.helpers.getDB(tx)
	var submission models.Submission
	if err := db.WithContext(ctx).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		First(&submission).Error; err != nil {
		return nil, translateError(err)
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Submission, error) {
	db := s.helpers.getDB(tx)
	var submissions []*models.Submission
	if err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("submitted_at asc").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (s *SubmissionPostgreSQL) CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	db := s.helpers.getDB(tx)
	var count int64
	err := db.WithContext(ctx).Model(&models.Submission{}).Where("exam_id = ?", examID).Count(&count).Error
	return count, err
}

func (s *SubmissionPostgreSQL) ListByStudent(ctx context.Context, tx *gorm.DB, email, studentID string) ([]*models.Submission, error) {
	db := s.helpers.getDB(tx)
	var submissions []*models.Submission

	query := db.WithContext(ctx).Model(&models.Submission{})
	if studentID != "" {
		query = query.Where("LOWER(student_email) = ? OR student_id = ?", models.NormalizeEmail(email), studentID)
	} else {
		query = query.Where("LOWER(student_email) = ?", models.NormalizeEmail(email))
	}

	if err := query.Order("submitted_at desc").Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}
