package validator

import (
	"fmt"
	"time"
	"unicode"

	"github.com/SAP-F-2025/exam-service/internal/errors"
	"github.com/SAP-F-2025/exam-service/internal/models"
)

// ExamValidator checks rules that span more than one field
type ExamValidator struct{}

func NewExamValidator() *ExamValidator {
	return &ExamValidator{}
}

// ValidateExam checks the set layout and pool of an exam before it is stored.
func (v *ExamValidator) ValidateExam(exam *models.Exam) ValidationErrors {
	var errs ValidationErrors

	if exam.DurationMinutes < MinExamDuration || exam.DurationMinutes > MaxExamDuration {
		errs = append(errs, *errors.NewValidationErrorWithRule("duration_minutes",
			fmt.Sprintf("must be between %d and %d minutes", MinExamDuration, MaxExamDuration),
			"exam_duration", exam.DurationMinutes))
	}
	if exam.SetCount < 1 {
		errs = append(errs, *errors.NewValidationErrorWithRule("set_count", "must be at least 1", "min", exam.SetCount))
	}
	if exam.QuestionsPerSet < 1 {
		errs = append(errs, *errors.NewValidationErrorWithRule("questions_per_set", "must be at least 1", "min", exam.QuestionsPerSet))
	}

	pool := exam.Pool()
	if len(pool) == 0 {
		errs = append(errs, *errors.NewValidationErrorWithRule("pool_question_ids", "must contain at least one question", "required", nil))
	}

	seen := make(map[uint]struct{}, len(pool))
	for _, id := range pool {
		if id == 0 {
			errs = append(errs, *errors.NewValidationError("pool_question_ids", "must not contain zero ids", id))
			continue
		}
		if _, dup := seen[id]; dup {
			errs = append(errs, *errors.NewValidationErrorWithRule("pool_question_ids", "must not contain duplicates", "unique", id))
			continue
		}
		seen[id] = struct{}{}
	}

	return errs
}

// ValidateSchedule checks an explicit exam window. The window must be
// non-empty and must not already be over at now.
func (v *ExamValidator) ValidateSchedule(start, end, now time.Time) ValidationErrors {
	var errs ValidationErrors
	if !end.After(start) {
		errs = append(errs, *errors.NewValidationErrorWithRule("end_time", "must be after start_time", "gtfield", end))
	} else if !end.After(now) {
		errs = append(errs, *errors.NewValidationErrorWithRule("end_time", "must be in the future", "future", end))
	}
	return errs
}

// ValidateAnswer checks that a letter answer is a single A-Z letter.
func (v *ExamValidator) ValidateAnswer(questionID uint, answer models.AnswerInput) *ValidationError {
	if answer.Kind != models.AnswerLetter {
		return nil
	}
	runes := []rune(answer.Value)
	if len(runes) != 1 || runes[0] > unicode.MaxASCII || !unicode.IsUpper(runes[0]) {
		return errors.NewValidationErrorWithRule(fmt.Sprintf("answers.%d", questionID),
			"must be a single upper-case letter", "answer_letter", answer.Value)
	}
	return nil
}
