package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DateLayout is the calendar-date format used for tracking and ledger rows
const DateLayout = "2006-01-02"

// Medication represents a scheduled medication owned by a single user.
// Time holds one or more scheduled times as a comma-separated HH:MM list.
type Medication struct {
	ID         string          `gorm:"primaryKey;size:36" json:"id"`
	UserID     string          `gorm:"size:36;not null;index" json:"user_id"`
	Name       string          `gorm:"size:100;not null" json:"name"`
	Dosage     string          `gorm:"size:50;not null" json:"dosage"`
	Frequency  string          `gorm:"size:50" json:"frequency"`
	Time       string          `gorm:"size:100;not null" json:"time"`
	Type       string          `gorm:"size:30" json:"type"`
	Notes      string          `gorm:"type:text" json:"notes"`
	RefillDate *datatypes.Date `json:"refill_date"`
	CreatedAt  time.Time       `gorm:"not null;index" json:"created_at"`
}

// BeforeCreate hook is called before creating a new medication
func (m *Medication) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return nil
}

// ScheduledTimes splits the comma-separated time list into trimmed HH:MM values
func (m *Medication) ScheduledTimes() []string {
	return SplitTimes(m.Time)
}

// TableName specifies the table name for the Medication model
func (Medication) TableName() string {
	return "medication"
}

// SplitTimes splits a comma-separated HH:MM list into trimmed values
func SplitTimes(timeList string) []string {
	if strings.TrimSpace(timeList) == "" {
		return nil
	}
	parts := strings.Split(timeList, ",")
	times := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			times = append(times, t)
		}
	}
	return times
}

// ParseClock converts an HH:MM string to minutes since midnight
func ParseClock(hhmm string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(hhmm), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", hhmm)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", hhmm, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", hhmm, err)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("time %q out of range", hhmm)
	}
	return hours*60 + minutes, nil
}

// FormatTime renders an HH:MM value (or a comma-separated list of them) in
// 12-hour clock notation for alerts and emails.
func FormatTime(timeList string) string {
	times := SplitTimes(timeList)
	if len(times) == 0 {
		return ""
	}
	formatted := make([]string, 0, len(times))
	for _, t := range times {
		parts := strings.SplitN(t, ":", 2)
		if len(parts) != 2 {
			formatted = append(formatted, t)
			continue
		}
		hour, err := strconv.Atoi(parts[0])
		if err != nil {
			formatted = append(formatted, t)
			continue
		}
		ampm := "AM"
		if hour >= 12 {
			ampm = "PM"
		}
		hour12 := hour % 12
		if hour12 == 0 {
			hour12 = 12
		}
		formatted = append(formatted, fmt.Sprintf("%d:%s %s", hour12, parts[1], ampm))
	}
	return strings.Join(formatted, ", ")
}

// CreateMedicationRequest represents the data needed to add a medication
type CreateMedicationRequest struct {
	Name       string          `json:"name" binding:"required,max=100"`
	Dosage     string          `json:"dosage" binding:"required,max=50"`
	Frequency  string          `json:"frequency" binding:"max=50"`
	Time       string          `json:"time" binding:"required,max=100"`
	Type       string          `json:"type" binding:"max=30"`
	Notes      string          `json:"notes"`
	RefillDate *datatypes.Date `json:"refill_date"`
}

// UpdateMedicationRequest carries mutable medication fields; nil means "leave as is"
type UpdateMedicationRequest struct {
	Name       *string         `json:"name" binding:"omitempty,max=100"`
	Dosage     *string         `json:"dosage" binding:"omitempty,max=50"`
	Frequency  *string         `json:"frequency" binding:"omitempty,max=50"`
	Time       *string         `json:"time" binding:"omitempty,max=100"`
	Type       *string         `json:"type" binding:"omitempty,max=30"`
	Notes      *string         `json:"notes"`
	RefillDate *datatypes.Date `json:"refill_date"`
}
