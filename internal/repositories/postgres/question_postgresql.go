package postgres

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuestionPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (q *QuestionPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return []*models.Question{}, nil
	}
	db := q.helpers.getDB(tx)
	var questions []*models.Question
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) GetIDsByBank(ctx context.Context, tx *gorm.DB, bankID uint) ([]uint, error) {
	db := q.helpers.getDB(tx)
	var ids []uint
	if err := db.WithContext(ctx).Model(&models.Question{}).
		Where("question_bank_id = ?", bankID).
		Order("id asc").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (q *QuestionPostgreSQL) CountExisting(ctx context.Context, tx *gorm.DB, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	db := q.helpers.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).Model(&models.Question{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (q *QuestionPostgreSQL) IncrementUsage(ctx context.Context, tx *gorm.DB, id uint, correct bool) (*models.QuestionStats, error) {
	db := q.helpers.getDB(tx)

	correctDelta, incorrectDelta := 0, 1
	if correct {
		correctDelta, incorrectDelta = 1, 0
	}

	// Single UPDATE ... RETURNING so concurrent graders never lose an increment
	var question models.Question
	result := db.WithContext(ctx).Model(&question).
		Clauses(clause.Returning{Columns: []clause.Column{
			{Name: "id"}, {Name: "usage_count"}, {Name: "correct_count"}, {Name: "incorrect_count"},
		}}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"usage_count":     gorm.Expr("usage_count + 1"),
			"correct_count":   gorm.Expr("correct_count + ?", correctDelta),
			"incorrect_count": gorm.Expr("incorrect_count + ?", incorrectDelta),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, repositories.ErrNotFound
	}

	return &models.QuestionStats{
		QuestionID:     question.ID,
		UsageCount:     question.UsageCount,
		CorrectCount:   question.CorrectCount,
		IncorrectCount: question.IncorrectCount,
	}, nil
}

func (q *QuestionPostgreSQL) UpdateDerivedStats(ctx context.Context, tx *gorm.DB, stats *models.QuestionStats) error {
	db := q.helpers.getDB(tx)
	result := db.WithContext(ctx).Model(&models.Question{}).
		Where("id = ?", stats.QuestionID).
		Updates(map[string]interface{}{
			"success_rate":        stats.SuccessRate,
			"adaptive_difficulty": stats.AdaptiveDifficulty,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
