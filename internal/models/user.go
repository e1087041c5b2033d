package models

import (
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
	ID       uint     `json:"id" gorm:"primaryKey"`
	Login    string   `json:"login" gorm:"uniqueIndex;not null;size:100"`
	Email    string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	FullName string   `json:"full_name" gorm:"not null;size:200"`
	Role     UserRole `json:"role" gorm:"not null;default:student;index"`

	// Exactly one of ClassGrade / Subject is set depending on role:
	// students carry a class grade (1..8), teachers a subject.
	ClassGrade *int    `json:"class_grade" gorm:"check:class_grade >= 1 AND class_grade <= 8"`
	Subject    *string `json:"subject" gorm:"size:100"`

	SchoolID *uint `json:"school_id" gorm:"index"`

	IsEmailVerified    bool `json:"is_email_verified" gorm:"not null;default:false"`
	MustChangePassword bool `json:"must_change_password" gorm:"not null;default:false"`

	// Never serialized.
	PasswordHash string `json:"-" gorm:"not null;size:255"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsStudent() bool { return u.Role == RoleStudent }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }

// TeacherStudent links a teacher to a student they supervise.
type TeacherStudent struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	TeacherID uint      `json:"teacher_id" gorm:"not null;index;uniqueIndex:idx_teacher_student"`
	StudentID uint      `json:"student_id" gorm:"not null;index;uniqueIndex:idx_teacher_student"`
	CreatedAt time.Time `json:"created_at"`

	Teacher User `json:"-" gorm:"foreignKey:TeacherID"`
	Student User `json:"-" gorm:"foreignKey:StudentID"`
}

func (TeacherStudent) TableName() string {
	return "teacher_students"
}
