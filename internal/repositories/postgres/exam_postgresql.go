package postgres

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var examSortColumns = map[string]bool{
	"created_at": true,
	"title":      true,
	"start_time": true,
}

type ExamPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewExamPostgreSQL(db *gorm.DB) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (e *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.helpers.getDB(tx)
	return translateError(db.WithContext(ctx).Create(exam).Error)
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.helpers.getDB(tx)
	var exam models.Exam
	if err := db.WithContext(ctx).First(&exam, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.helpers.getDB(tx)
	var exam models.Exam
	if err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&exam, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Exam, error) {
	if len(ids) == 0 {
		return []*models.Exam{}, nil
	}
	db := e.helpers.getDB(tx)
	var exams []*models.Exam
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&exams).Error; err != nil {
		return nil, err
	}
	return exams, nil
}

func (e *ExamPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	db := e.helpers.getDB(tx)
	var exams []*models.Exam
	var total int64

	query := db.WithContext(ctx).Model(&models.Exam{})
	if filters.OwnerID != nil {
		query = query.Where("owner_id = ?", *filters.OwnerID)
	}
	if filters.IsPublished != nil {
		query = query.Where("is_published = ?", *filters.IsPublished)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = e.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset, examSortColumns)
	if err := query.Find(&exams).Error; err != nil {
		return nil, 0, err
	}

	return exams, total, nil
}

func (e *ExamPostgreSQL) UpdateFields(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error {
	db := e.helpers.getDB(tx)
	result := db.WithContext(ctx).Model(&models.Exam{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (e *ExamPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := e.helpers.getDB(tx)
	result := db.WithContext(ctx).Delete(&models.Exam{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
