package services

import (
	"math"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

const (
	// AdaptiveMinUsage is the number of answers a question needs before its
	// label moves off medium.
	AdaptiveMinUsage = 5
	easyAbove        = 75.0
	hardBelow        = 40.0
)

// NormalizeAnswer resolves an answer against the question's canonical option
// list (incorrect options, then the correct one). Out-of-range letters and
// unknown text resolve to index -1 and are graded incorrect.
func NormalizeAnswer(q *models.Question, answer models.AnswerInput) models.GradedAnswer {
	options := q.Options()
	graded := models.GradedAnswer{SelectedIndex: -1}

	switch answer.Kind {
	case models.AnswerLetter:
		graded.SelectedOption = answer.Value
		if len(answer.Value) == 1 {
			idx := int(answer.Value[0]) - 'A'
			if idx >= 0 && idx < len(options) {
				graded.SelectedIndex = idx
				graded.SelectedText = options[idx]
			}
		}
	case models.AnswerText:
		graded.SelectedText = answer.Value
		for i, opt := range options {
			if opt == answer.Value {
				graded.SelectedIndex = i
				graded.SelectedOption = string(rune('A' + i))
				break
			}
		}
	}

	graded.IsCorrect = graded.SelectedIndex >= 0 && graded.SelectedText == q.CorrectOption
	return graded
}

// Percentage is correct/total*100, or 0 for an empty set.
func Percentage(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}

// AdaptiveDifficultyFor labels a question from its history.
func AdaptiveDifficultyFor(usageCount int, successRate float64) models.AdaptiveDifficulty {
	if usageCount < AdaptiveMinUsage {
		return models.AdaptiveMedium
	}
	switch {
	case successRate > easyAbove:
		return models.AdaptiveEasy
	case successRate < hardBelow:
		return models.AdaptiveHard
	default:
		return models.AdaptiveMedium
	}
}

// DeriveStats fills the success rate and label from the raw counters.
func DeriveStats(stats *models.QuestionStats) {
	rate := 0.0
	if stats.UsageCount > 0 {
		rate = float64(stats.CorrectCount) / float64(stats.UsageCount) * 100
	}
	stats.SuccessRate = round(rate, 2)
	stats.AdaptiveDifficulty = AdaptiveDifficultyFor(stats.UsageCount, rate)
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
