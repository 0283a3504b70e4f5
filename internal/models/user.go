package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

type User struct {
	ID       string   `json:"id" gorm:"primaryKey;size:255"`
	FullName string   `json:"full_name" gorm:"not null;size:100"`
	Email    string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Role     UserRole `json:"role" gorm:"size:20;default:student"`

	IsActive    bool       `json:"is_active" gorm:"default:true"`
	LastLoginAt *time.Time `json:"last_login_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

// Principal is the authenticated caller, resolved once per request.
type Principal struct {
	UserID       string   `json:"user_id"`
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	Role         UserRole `json:"role"`
	IsSuperAdmin bool     `json:"is_super_admin"`
}

func (p Principal) IsStaff() bool {
	return p.IsSuperAdmin || p.Role == RoleTeacher || p.Role == RoleAdmin
}

// IsAdmin reports whether the caller may act on every teacher's records.
func (p Principal) IsAdmin() bool {
	return p.IsSuperAdmin || p.Role == RoleAdmin
}

// NormalizeEmail lower-cases and trims an address for comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
