package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"medbuddy/internal/models"
	"medbuddy/internal/realtime"

	"gorm.io/gorm"
)

// missedGracePeriod is how long after the scheduled time a dose counts as
// missed in the dashboard view. Distinct from the email escalation tiers.
const missedGracePeriod = 30

// CheckMissedMedications recomputes which of the user's doses are currently
// missed today and, when any are, raises a single aggregated alert listing
// them. Returns the missed dose descriptions.
func CheckMissedMedications(db *gorm.DB, bus realtime.Bus, userID string, now time.Time) ([]string, error) {
	today := now.Format(models.DateLayout)
	currentMinutes := now.Hour()*60 + now.Minute()

	var medications []models.Medication
	if err := db.Where("user_id = ?", userID).Find(&medications).Error; err != nil {
		return nil, err
	}

	var tracking []models.TrackingRecord
	if err := db.Where("user_id = ? AND tracking_date = ?", userID, today).Find(&tracking).Error; err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(tracking))
	for _, t := range tracking {
		if t.Taken {
			taken[t.MedicationID+"|"+t.ScheduledTime] = true
		}
	}

	var missed []string
	for _, med := range medications {
		for _, slot := range med.ScheduledTimes() {
			scheduled, err := models.ParseClock(slot)
			if err != nil {
				continue
			}
			if currentMinutes > scheduled+missedGracePeriod && !taken[med.ID+"|"+slot] {
				missed = append(missed, fmt.Sprintf("%s at %s", med.Name, models.FormatTime(slot)))
			}
		}
	}

	if len(missed) > 0 {
		if _, err := CreateAlert(db, bus, userID,
			"Missed medications: "+strings.Join(missed, ", "), models.SeverityHigh); err != nil {
			return missed, err
		}
	}

	return missed, nil
}

// MedicationStats summarizes a user's adherence for the dashboard cards
type MedicationStats struct {
	TotalMedications int `json:"total_medications"`
	TotalDosesToday  int `json:"total_doses_today"`
	TakenToday       int `json:"taken_today"`
	MissedToday      int `json:"missed_today"`
	AdherenceRate    int `json:"adherence_rate"`
}

// statsWindowDays is the history window the adherence rate is computed over
const statsWindowDays = 7

// GetMedicationStats computes the dashboard statistics for one user
func GetMedicationStats(db *gorm.DB, userID string, now time.Time) (MedicationStats, error) {
	var stats MedicationStats

	var medications []models.Medication
	if err := db.Where("user_id = ?", userID).Find(&medications).Error; err != nil {
		return stats, err
	}

	history, err := GetTrackingHistory(db, userID, now, statsWindowDays)
	if err != nil {
		return stats, err
	}

	stats.TotalMedications = len(medications)
	for _, med := range medications {
		stats.TotalDosesToday += len(med.ScheduledTimes())
	}

	today := now.Format(models.DateLayout)
	takenDoses := 0
	for _, t := range history {
		if t.Taken {
			takenDoses++
			if t.TrackingDate == today {
				stats.TakenToday++
			}
		}
	}

	totalDoses := stats.TotalDosesToday * statsWindowDays
	if totalDoses > 0 {
		stats.AdherenceRate = int(math.Round(float64(takenDoses) / float64(totalDoses) * 100))
	}
	stats.MissedToday = stats.TotalDosesToday - stats.TakenToday

	return stats, nil
}

// MedicationWithStatus is a medication decorated with today's taken state
type MedicationWithStatus struct {
	models.Medication
	Taken      bool     `json:"taken"`
	TakenTimes []string `json:"taken_times"`
}

// GetMedicationsWithTodayStatus returns the user's medications combined with
// which of today's scheduled times have been taken.
func GetMedicationsWithTodayStatus(db *gorm.DB, userID, date string) ([]MedicationWithStatus, error) {
	var medications []models.Medication
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&medications).Error; err != nil {
		return nil, err
	}

	var tracking []models.TrackingRecord
	if err := db.Where("user_id = ? AND tracking_date = ?", userID, date).Find(&tracking).Error; err != nil {
		return nil, err
	}

	result := make([]MedicationWithStatus, 0, len(medications))
	for _, med := range medications {
		entry := MedicationWithStatus{Medication: med, TakenTimes: []string{}}
		for _, t := range tracking {
			if t.MedicationID == med.ID && t.Taken {
				entry.TakenTimes = append(entry.TakenTimes, t.ScheduledTime)
			}
		}
		entry.Taken = len(entry.TakenTimes) > 0
		result = append(result, entry)
	}

	return result, nil
}
