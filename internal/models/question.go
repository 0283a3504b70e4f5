package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AdaptiveDifficulty string

const (
	AdaptiveEasy   AdaptiveDifficulty = "easy"
	AdaptiveMedium AdaptiveDifficulty = "medium"
	AdaptiveHard   AdaptiveDifficulty = "hard"
)

type Question struct {
	ID             uint  `json:"id" gorm:"primaryKey"`
	QuestionBankID *uint `json:"question_bank_id" gorm:"index"`

	Text             string                       `json:"text" gorm:"type:text;not null" validate:"required"`
	CorrectOption    string                       `json:"correct_option" gorm:"type:text;not null" validate:"required"`
	IncorrectOptions datatypes.JSONType[[]string] `json:"incorrect_options" gorm:"type:jsonb;not null"`
	Subject          string                       `json:"subject" gorm:"size:100;index"`
	DifficultyRating int                          `json:"difficulty_rating" gorm:"default:3"`

	// Usage statistics, maintained by grading
	UsageCount         int                `json:"usage_count" gorm:"not null;default:0"`
	CorrectCount       int                `json:"correct_count" gorm:"not null;default:0"`
	IncorrectCount     int                `json:"incorrect_count" gorm:"not null;default:0"`
	SuccessRate        float64            `json:"success_rate" gorm:"not null;default:0"`
	AdaptiveDifficulty AdaptiveDifficulty `json:"adaptive_difficulty" gorm:"size:10;not null;default:medium"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Question) TableName() string {
	return "questions"
}

// Options returns the answer options in canonical order: incorrect options
// first, then the correct one.
func (q *Question) Options() []string {
	incorrect := q.IncorrectOptions.Data()
	options := make([]string, 0, len(incorrect)+1)
	options = append(options, incorrect...)
	return append(options, q.CorrectOption)
}

// QuestionStats is the counter snapshot written back after grading.
type QuestionStats struct {
	QuestionID         uint               `json:"question_id"`
	UsageCount         int                `json:"usage_count"`
	CorrectCount       int                `json:"correct_count"`
	IncorrectCount     int                `json:"incorrect_count"`
	SuccessRate        float64            `json:"success_rate"`
	AdaptiveDifficulty AdaptiveDifficulty `json:"adaptive_difficulty"`
}
