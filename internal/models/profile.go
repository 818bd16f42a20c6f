package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role determines which dashboard a user sees and what they can manage
type Role string

const (
	RolePatient   Role = "patient"
	RoleCaretaker Role = "caretaker"
	RoleBoth      Role = "both"
)

// Profile represents a user account in the system
type Profile struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	Email              string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	HashedPass         string    `gorm:"size:255;not null" json:"-"`
	FullName           string    `gorm:"size:100;not null" json:"full_name"`
	Role               Role      `gorm:"size:10;not null;default:'both'" json:"role"`
	CaretakerEmail     *string   `gorm:"size:255" json:"caretaker_email"`
	EmailNotifications bool      `gorm:"not null;default:false" json:"email_notifications"`
	AvatarURL          string    `gorm:"size:512" json:"avatar_url"`
	CreatedAt          time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time `gorm:"not null" json:"updated_at"`
}

// BeforeCreate hook is called before creating a new profile
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	if p.Role == "" {
		p.Role = RoleBoth
	}
	return nil
}

// BeforeSave hook is called before saving the profile
func (p *Profile) BeforeSave(tx *gorm.DB) error {
	p.UpdatedAt = time.Now()
	return nil
}

// NotificationsConfigured reports whether the escalation checker may email
// this profile's caretaker.
func (p *Profile) NotificationsConfigured() bool {
	return p.EmailNotifications && p.CaretakerEmail != nil && *p.CaretakerEmail != ""
}

// TableName specifies the table name for the Profile model
func (Profile) TableName() string {
	return "profile"
}

// CreateProfileRequest represents the data needed to register a new account
type CreateProfileRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required,max=100"`
	Role     Role   `json:"role" binding:"required,oneof=patient caretaker both"`
}

// UpdateProfileRequest carries the mutable profile fields; nil means "leave as is"
type UpdateProfileRequest struct {
	FullName           *string `json:"full_name" binding:"omitempty,max=100"`
	Role               *Role   `json:"role" binding:"omitempty,oneof=patient caretaker both"`
	CaretakerEmail     *string `json:"caretaker_email" binding:"omitempty,email"`
	EmailNotifications *bool   `json:"email_notifications"`
}

// LoginRequest represents the data needed for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
