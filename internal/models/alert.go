package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AlertSeverity grades how urgent an alert is
type AlertSeverity string

const (
	SeverityLow    AlertSeverity = "low"
	SeverityMedium AlertSeverity = "medium"
	SeverityHigh   AlertSeverity = "high"
)

// Alert is a user-facing notification shown in the dashboard alert panel.
// Only the Read flag is ever mutated after creation.
type Alert struct {
	ID        string        `gorm:"primaryKey;size:36" json:"id"`
	UserID    string        `gorm:"size:36;not null;index" json:"user_id"`
	Message   string        `gorm:"type:text;not null" json:"message"`
	Severity  AlertSeverity `gorm:"size:10;not null;default:'medium'" json:"severity"`
	Read      bool          `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time     `gorm:"not null;index" json:"created_at"`
}

// BeforeCreate hook for alerts
func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.Severity == "" {
		a.Severity = SeverityMedium
	}
	return nil
}

// TableName specifies the table name for the Alert model
func (Alert) TableName() string {
	return "alert"
}
