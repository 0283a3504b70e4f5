package postgres

import (
	"context"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

type QuestionSetPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewQuestionSetPostgreSQL(db *gorm.DB) repositories.QuestionSetRepository {
	return &QuestionSetPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("question_order asc")
}

func (q *QuestionSetPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, sets []*models.QuestionSet) error {
	if len(sets) == 0 {
		return nil
	}
	db := q.helpers.getDB(tx)
	// Items are inserted through the has-many association
	return translateError(db.WithContext(ctx).CreateInBatches(sets, 100).Error)
}

func (q *QuestionSetPostgreSQL) DeleteByExam(ctx context.Context, tx *gorm.DB, examID uint) error {
	db := q.helpers.getDB(tx).WithContext(ctx)

	setIDs := db.Model(&models.QuestionSet{}).Select("id").Where("exam_id = ?", examID)
	if err := db.Where("question_set_id IN (?)", setIDs).Delete(&models.QuestionSetItem{}).Error; err != nil {
		return err
	}
	return db.Where("exam_id = ?", examID).Delete(&models.QuestionSet{}).Error
}

func (q *QuestionSetPostgreSQL) GetByExamAndEmail(ctx context.Context, tx *gorm.DB, examID uint, email string) (*models.QuestionSet, error) {
	db := q.helpers.getDB(tx)
	var set models.QuestionSet
	if err := db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("exam_id = ? AND LOWER(student_email) = ?", examID, models.NormalizeEmail(email)).
		First(&set).Error; err != nil {
		return nil, translateError(err)
	}
	return &set, nil
}

func (q *QuestionSetPostgreSQL) GetByExamAndStudentID(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.QuestionSet, error) {
	db := q.helpers.getDB(tx)
	var set models.QuestionSet
	if err := db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		First(&set).Error; err != nil {
		return nil, translateError(err)
	}
	return &set, nil
}

func (q *QuestionSetPostgreSQL) ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.QuestionSet, error) {
	db := q.helpers.getDB(tx)
	var sets []*models.QuestionSet
	if err := db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("exam_id = ?", examID).
		Order("set_number asc, id asc").
		Find(&sets).Error; err != nil {
		return nil, err
	}
	return sets, nil
}

func (q *QuestionSetPostgreSQL) ListByStudent(ctx context.Context, tx *gorm.DB, email, studentID string) ([]*models.QuestionSet, error) {
	db := q.helpers.getDB(tx)
	var sets []*models.QuestionSet

	query := db.WithContext(ctx).Model(&models.QuestionSet{})
	if studentID != "" {
		query = query.Where("LOWER(student_email) = ? OR student_id = ?", models.NormalizeEmail(email), studentID)
	} else {
		query = query.Where("LOWER(student_email) = ?", models.NormalizeEmail(email))
	}

	if err := query.Order("created_at desc").Find(&sets).Error; err != nil {
		return nil, err
	}
	return sets, nil
}

func (q *QuestionSetPostgreSQL) MarkStarted(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error {
	db := q.helpers.getDB(tx)
	return db.WithContext(ctx).Model(&models.QuestionSet{}).
		Where("id = ? AND started_at IS NULL", id).
		Update("started_at", at).Error
}

func (q *QuestionSetPostgreSQL) MarkCompleted(ctx context.Context, tx *gorm.DB, id uint, at time.Time) (bool, error) {
	db := q.helpers.getDB(tx)
	result := db.WithContext(ctx).Model(&models.QuestionSet{}).
		Where("id = ? AND is_completed = ?", id, false).
		Updates(map[string]interface{}{
			"is_completed": true,
			"completed_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (q *QuestionSetPostgreSQL) CompleteOpenByExam(ctx context.Context, tx *gorm.DB, examID uint, at time.Time) (int64, error) {
	db := q.helpers.getDB(tx)
	result := db.WithContext(ctx).Model(&models.QuestionSet{}).
		Where("exam_id = ? AND is_completed = ?", examID, false).
		Updates(map[string]interface{}{
			"is_completed": true,
			"completed_at": at,
		})
	return result.RowsAffected, result.Error
}

func (q *QuestionSetPostgreSQL) CompleteOpenByExamAndEmail(ctx context.Context, tx *gorm.DB, examID uint, email string, at time.Time) (int64, error) {
	db := q.helpers.getDB(tx)
	result := db.WithContext(ctx).Model(&models.QuestionSet{}).
		Where("exam_id = ? AND LOWER(student_email) = ? AND is_completed = ?", examID, models.NormalizeEmail(email), false).
		Updates(map[string]interface{}{
			"is_completed": true,
			"completed_at": at,
		})
	return result.RowsAffected, result.Error
}
