package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TrackingRecord links a medication, a calendar date and one scheduled time
// to its taken status. The (medication, date, scheduled-time) tuple is the
// natural key: at most one row exists per dose.
type TrackingRecord struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	MedicationID  string     `gorm:"size:36;not null;uniqueIndex:idx_tracking_dose,priority:1" json:"medication_id"`
	UserID        string     `gorm:"size:36;not null;index" json:"user_id"`
	TrackingDate  string     `gorm:"size:10;not null;uniqueIndex:idx_tracking_dose,priority:2" json:"tracking_date"`
	ScheduledTime string     `gorm:"size:5;not null;uniqueIndex:idx_tracking_dose,priority:3" json:"scheduled_time"`
	Taken         bool       `gorm:"not null;default:false" json:"taken"`
	TakenAt       *time.Time `json:"taken_at"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
}

// BeforeCreate hook for tracking records
func (t *TrackingRecord) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	return nil
}

// TableName specifies the table name for the TrackingRecord model
func (TrackingRecord) TableName() string {
	return "medication_tracking"
}

// MarkTakenRequest identifies the dose being marked as taken. Date defaults
// to today when empty.
type MarkTakenRequest struct {
	ScheduledTime string `json:"scheduled_time" binding:"required"`
	Date          string `json:"date"`
}
