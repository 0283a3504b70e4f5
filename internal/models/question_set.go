package models

import "time"

type QuestionSet struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	ExamID       uint    `json:"exam_id" gorm:"not null;uniqueIndex:idx_question_set_exam_student"`
	SetNumber    int     `json:"set_number" gorm:"not null"`
	StudentEmail string  `json:"student_email" gorm:"not null;size:255;uniqueIndex:idx_question_set_exam_student"`
	StudentID    *string `json:"student_id" gorm:"size:255;index"`
	AccessLink   string  `json:"access_link" gorm:"not null;size:255;uniqueIndex"`

	IsCompleted bool       `json:"is_completed" gorm:"default:false"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	CreatedAt time.Time `json:"created_at"`

	Items []QuestionSetItem `json:"items,omitempty" gorm:"foreignKey:QuestionSetID;constraint:OnDelete:CASCADE"`
}

func (QuestionSet) TableName() string {
	return "question_sets"
}

// QuestionIDs returns the set's question ids ordered by position.
func (s *QuestionSet) QuestionIDs() []uint {
	ids := make([]uint, len(s.Items))
	for i, item := range s.Items {
		ids[i] = item.QuestionID
	}
	return ids
}

type QuestionSetItem struct {
	ID            uint `json:"id" gorm:"primaryKey"`
	QuestionSetID uint `json:"question_set_id" gorm:"not null;uniqueIndex:idx_set_question"`
	QuestionID    uint `json:"question_id" gorm:"not null;uniqueIndex:idx_set_question;index"`
	Order         int  `json:"order" gorm:"column:question_order;not null"`
}

func (QuestionSetItem) TableName() string {
	return "question_set_items"
}

type SessionStatus string

const (
	SessionNotStarted SessionStatus = "Not Started"
	SessionInProgress SessionStatus = "In Progress"
	SessionCompleted  SessionStatus = "Completed"
)

// Status derives the student's access state from the set flags.
func (s *QuestionSet) Status() SessionStatus {
	switch {
	case s.IsCompleted:
		return SessionCompleted
	case s.StartedAt != nil:
		return SessionInProgress
	default:
		return SessionNotStarted
	}
}
