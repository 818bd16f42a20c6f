package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReminderType is the escalation tier of a caretaker email
type ReminderType string

const (
	ReminderFirst    ReminderType = "first"
	ReminderSecond   ReminderType = "second"
	ReminderEndOfDay ReminderType = "end_of_day"
)

// EmailNotification records one escalation email attempt for a dose. The
// table is an append-only ledger used to deduplicate tiers: SentAt is set
// only when dispatch succeeded, ErrorMessage only when it failed.
type EmailNotification struct {
	ID            string       `gorm:"primaryKey;size:36" json:"id"`
	UserID        string       `gorm:"size:36;not null;index" json:"user_id"`
	MedicationID  string       `gorm:"size:36;not null;index:idx_email_dose,priority:1" json:"medication_id"`
	TrackingDate  string       `gorm:"size:10;not null;index:idx_email_dose,priority:2" json:"tracking_date"`
	ScheduledTime string       `gorm:"size:5;not null;index:idx_email_dose,priority:3" json:"scheduled_time"`
	ReminderType  ReminderType `gorm:"size:10;not null" json:"reminder_type"`
	EmailSent     bool         `gorm:"not null;default:false" json:"email_sent"`
	SentAt        *time.Time   `json:"sent_at"`
	ErrorMessage  *string      `gorm:"size:512" json:"error_message"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
}

// BeforeCreate hook for email notifications
func (n *EmailNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	return nil
}

// TableName specifies the table name for the EmailNotification model
func (EmailNotification) TableName() string {
	return "email_notification"
}
