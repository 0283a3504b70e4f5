package services

import (
	"testing"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestNormalizeAnswer(t *testing.T) {
	// Canonical order is [Berlin, Madrid, Paris]: C is correct
	q := &models.Question{
		CorrectOption:    "Paris",
		IncorrectOptions: datatypes.NewJSONType([]string{"Berlin", "Madrid"}),
	}
	q2 := &models.Question{
		CorrectOption:    "Paris",
		IncorrectOptions: datatypes.NewJSONType([]string{"Berlin", "Madrid", "Rome"}),
	}

	tests := []struct {
		name      string
		question  *models.Question
		answer    models.AnswerInput
		wantIndex int
		wantText  string
		wantLabel string
		correct   bool
	}{
		{"correct letter", q, models.AnswerInput{Kind: models.AnswerLetter, Value: "C"}, 2, "Paris", "C", true},
		{"incorrect letter A", q, models.AnswerInput{Kind: models.AnswerLetter, Value: "A"}, 0, "Berlin", "A", false},
		{"incorrect letter B", q, models.AnswerInput{Kind: models.AnswerLetter, Value: "B"}, 1, "Madrid", "B", false},
		{"out of range letter", q, models.AnswerInput{Kind: models.AnswerLetter, Value: "D"}, -1, "", "D", false},
		{"correct text", q, models.AnswerInput{Kind: models.AnswerText, Value: "Paris"}, 2, "Paris", "C", true},
		{"unknown text", q, models.AnswerInput{Kind: models.AnswerText, Value: "London"}, -1, "London", "", false},
		{"correct is last", q2, models.AnswerInput{Kind: models.AnswerLetter, Value: "D"}, 3, "Paris", "D", true},
		{"distractor in longer list", q2, models.AnswerInput{Kind: models.AnswerLetter, Value: "C"}, 2, "Rome", "C", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAnswer(tt.question, tt.answer)
			assert.Equal(t, tt.wantIndex, got.SelectedIndex)
			assert.Equal(t, tt.wantText, got.SelectedText)
			assert.Equal(t, tt.wantLabel, got.SelectedOption)
			assert.Equal(t, tt.correct, got.IsCorrect)
		})
	}
}

func TestNormalizeAnswer_LowercaseLetterIsOutOfRange(t *testing.T) {
	q := &models.Question{
		CorrectOption:    "4",
		IncorrectOptions: datatypes.NewJSONType([]string{"3", "5"}),
	}
	assert.True(t, NormalizeAnswer(q, models.AnswerInput{Kind: models.AnswerLetter, Value: "C"}).IsCorrect)
	assert.False(t, NormalizeAnswer(q, models.AnswerInput{Kind: models.AnswerLetter, Value: "a"}).IsCorrect)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(0, 0))
	assert.Equal(t, 100.0, Percentage(3, 3))
	assert.InDelta(t, 66.666, Percentage(2, 3), 0.001)
	assert.Equal(t, 0.0, Percentage(0, 4))
}

func TestAdaptiveDifficultyFor(t *testing.T) {
	tests := []struct {
		usage int
		rate  float64
		want  models.AdaptiveDifficulty
	}{
		{0, 0, models.AdaptiveMedium},
		{4, 100, models.AdaptiveMedium},
		{4, 0, models.AdaptiveMedium},
		{5, 80, models.AdaptiveEasy},
		{5, 75, models.AdaptiveMedium},
		{10, 40, models.AdaptiveMedium},
		{10, 39.99, models.AdaptiveHard},
		{10, 30, models.AdaptiveHard},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AdaptiveDifficultyFor(tt.usage, tt.rate), "usage=%d rate=%v", tt.usage, tt.rate)
	}
}

func TestDeriveStats(t *testing.T) {
	stats := &models.QuestionStats{UsageCount: 3, CorrectCount: 2}
	DeriveStats(stats)
	assert.Equal(t, 66.67, stats.SuccessRate)
	assert.Equal(t, models.AdaptiveMedium, stats.AdaptiveDifficulty)

	stats = &models.QuestionStats{UsageCount: 5, CorrectCount: 4}
	DeriveStats(stats)
	assert.Equal(t, 80.0, stats.SuccessRate)
	assert.Equal(t, models.AdaptiveEasy, stats.AdaptiveDifficulty)

	stats = &models.QuestionStats{UsageCount: 10, CorrectCount: 3}
	DeriveStats(stats)
	assert.Equal(t, 30.0, stats.SuccessRate)
	assert.Equal(t, models.AdaptiveHard, stats.AdaptiveDifficulty)

	stats = &models.QuestionStats{}
	DeriveStats(stats)
	assert.Equal(t, 0.0, stats.SuccessRate)
	assert.Equal(t, models.AdaptiveMedium, stats.AdaptiveDifficulty)
}
