package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const DefaultExpiringHours = 1

type Exam struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Title       string  `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`

	OwnerID        string `json:"owner_id" gorm:"not null;size:255;index"`
	QuestionBankID *uint  `json:"question_bank_id" gorm:"index"`

	// Pool of question ids eligible for this exam, in authoring order
	PoolQuestionIDs datatypes.JSONType[[]uint] `json:"pool_question_ids" gorm:"type:jsonb;not null"`

	SetCount        int `json:"set_count" gorm:"not null;default:1" validate:"min=1"`
	QuestionsPerSet int `json:"questions_per_set" gorm:"not null" validate:"min=1"`
	DurationMinutes int `json:"duration_minutes" gorm:"not null" validate:"exam_duration"`

	// Assignment window
	ClassID         *uint      `json:"class_id" gorm:"index"`
	ExpiringHours   int        `json:"expiring_hours" gorm:"default:1"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	IsPublished     bool       `json:"is_published" gorm:"default:false;index"`
	IsEnded         bool       `json:"is_ended" gorm:"default:false"`
	ManuallyEndedAt *time.Time `json:"manually_ended_at"`

	// Behaviour flags
	ShuffleQuestions bool `json:"shuffle_questions" gorm:"default:false"`
	ShuffleOptions   bool `json:"shuffle_options" gorm:"default:false"`
	ScoreReleased    bool `json:"score_released" gorm:"default:false"`
	AnswersReleased  bool `json:"answers_released" gorm:"default:false"`

	// Browser restrictions the exam client enforces; stored, never verified here
	SecuritySettings datatypes.JSONType[SecuritySettings] `json:"security_settings" gorm:"type:jsonb"`

	// Bumped on every set regeneration
	Version int `json:"version" gorm:"default:1"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// SecuritySettings are the client-side restrictions of an exam.
type SecuritySettings struct {
	DisableTabSwitching bool `json:"disable_tab_switching"`
	DisableRightClick   bool `json:"disable_right_click"`
	EnableScreenSharing bool `json:"enable_screen_sharing"`
	EnableProctoring    bool `json:"enable_proctoring"`
	EnableWebcam        bool `json:"enable_webcam"`
	RestrictIP          bool `json:"restrict_ip"`
}

// DefaultSecuritySettings locks tab switching and the context menu.
func DefaultSecuritySettings() SecuritySettings {
	return SecuritySettings{DisableTabSwitching: true, DisableRightClick: true}
}

func (Exam) TableName() string {
	return "exams"
}

// Pool returns a copy of the exam's question pool.
func (e *Exam) Pool() []uint {
	pool := e.PoolQuestionIDs.Data()
	out := make([]uint, len(pool))
	copy(out, pool)
	return out
}

// IsManagedBy reports whether the principal may run owner actions on the exam.
func (e *Exam) IsManagedBy(p Principal) bool {
	return p.IsAdmin() || (p.UserID != "" && e.OwnerID == p.UserID)
}

// IsOpenAt reports whether t falls inside the exam's active window.
func (e *Exam) IsOpenAt(t time.Time) bool {
	if !e.IsPublished || e.IsEnded || e.StartTime == nil || e.EndTime == nil {
		return false
	}
	return !t.Before(*e.StartTime) && !t.After(*e.EndTime)
}
