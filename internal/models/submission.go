package models

import (
	"time"

	"gorm.io/datatypes"
)

type AnswerKind string

const (
	AnswerLetter AnswerKind = "letter"
	AnswerText   AnswerKind = "text"
)

// AnswerInput is a single client answer. Kind says how Value is to be read:
// an option letter (A, B, C ...) or the full option text.
type AnswerInput struct {
	Kind  AnswerKind `json:"kind" validate:"required,answer_kind"`
	Value string     `json:"value" validate:"required"`
}

// GradedAnswer is the normalised, graded form of an answer.
type GradedAnswer struct {
	SelectedOption string `json:"selected_option"`
	SelectedText   string `json:"selected_text"`
	SelectedIndex  int    `json:"selected_index"`
	IsCorrect      bool   `json:"is_correct"`
}

type Submission struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	ExamID        uint   `json:"exam_id" gorm:"not null;uniqueIndex:idx_submission_exam_student"`
	StudentID     string `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_submission_exam_student"`
	StudentEmail  string `json:"student_email" gorm:"not null;size:255;index"`
	QuestionSetID uint   `json:"question_set_id" gorm:"not null;index"`

	Answers datatypes.JSONType[map[uint]GradedAnswer] `json:"answers" gorm:"type:jsonb"`

	Score          int     `json:"score"`
	TotalQuestions int     `json:"total_questions"`
	CorrectCount   int     `json:"correct_count"`
	Percentage     float64 `json:"percentage"`

	// Client-reported proctoring counters, stored as received
	TimeSpentSeconds int    `json:"time_spent_seconds"`
	TabSwitches      int    `json:"tab_switches"`
	FullscreenExits  int    `json:"fullscreen_exits"`
	Reason           string `json:"reason" gorm:"size:100"`

	SubmittedAt time.Time `json:"submitted_at" gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Submission) TableName() string {
	return "submissions"
}
