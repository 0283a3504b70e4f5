package models

import (
	"time"

	"gorm.io/gorm"
)

type Class struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"not null;size:200"`
	TeacherID string         `json:"teacher_id" gorm:"not null;size:255;index"`
	Students  []ClassStudent `json:"students,omitempty" gorm:"foreignKey:ClassID"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Class) TableName() string {
	return "classes"
}

// ClassStudent is one roster entry. Email identifies the student; UserID is
// filled in once the account is known.
type ClassStudent struct {
	ID      uint    `json:"id" gorm:"primaryKey"`
	ClassID uint    `json:"class_id" gorm:"not null;uniqueIndex:idx_class_student_email"`
	Name    string  `json:"name" gorm:"size:200"`
	Email   string  `json:"email" gorm:"size:255;uniqueIndex:idx_class_student_email"`
	UserID  *string `json:"user_id" gorm:"size:255;index"`

	JoinedAt time.Time `json:"joined_at" gorm:"autoCreateTime"`
}

func (ClassStudent) TableName() string {
	return "class_students"
}
