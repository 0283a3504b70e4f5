package models

import "time"

// StudentQuestion is a question as a student sees it. It carries no marker
// of which option is correct.
type StudentQuestion struct {
	QuestionID uint     `json:"question_id"`
	Order      int      `json:"order"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
	Subject    string   `json:"subject,omitempty"`
}

// ExamPaper is the payload returned to a student opening an exam.
type ExamPaper struct {
	ExamID          uint              `json:"exam_id"`
	Title           string            `json:"title"`
	QuestionSetID   uint              `json:"question_set_id"`
	SetNumber       int               `json:"set_number"`
	DurationMinutes int               `json:"duration_minutes"`
	EndTime         time.Time         `json:"end_time"`
	Security        SecuritySettings  `json:"security_settings"`
	Questions       []StudentQuestion `json:"questions"`
}

// AssignedExam is one entry in a student's to-do list.
type AssignedExam struct {
	ExamID          uint          `json:"exam_id"`
	Title           string        `json:"title"`
	DurationMinutes int           `json:"duration_minutes"`
	StartTime       *time.Time    `json:"start_time"`
	EndTime         *time.Time    `json:"end_time"`
	SetNumber       int           `json:"set_number"`
	AccessLink      string        `json:"access_link"`
	Status          SessionStatus `json:"status"`
}

// SubmissionSummary is the student-facing result of a submission. Score
// fields stay nil until the exam releases them.
type SubmissionSummary struct {
	SubmissionID   uint      `json:"submission_id"`
	ExamID         uint      `json:"exam_id"`
	TotalQuestions int       `json:"total_questions"`
	Score          *int      `json:"score,omitempty"`
	Percentage     *float64  `json:"percentage,omitempty"`
	ScoreReleased  bool      `json:"score_released"`
	SubmittedAt    time.Time `json:"submitted_at"`
}
