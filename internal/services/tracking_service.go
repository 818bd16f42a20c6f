package services

import (
	"context"
	"errors"
	"time"

	"medbuddy/internal/models"
	"medbuddy/internal/realtime"

	"gorm.io/gorm"
)

// MarkTaken records that a dose was taken, using find-or-create semantics on
// the (medication, date, scheduled-time) tuple. Calling it again for the same
// tuple updates the existing row; a taken dose never reverts to not taken.
func MarkTaken(db *gorm.DB, bus realtime.Bus, medicationID, userID, scheduledTime, date string, at time.Time) (*models.TrackingRecord, error) {
	var record models.TrackingRecord
	action := realtime.ActionUpdate

	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("medication_id = ? AND tracking_date = ? AND scheduled_time = ?",
			medicationID, date, scheduledTime).First(&record).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			record = models.TrackingRecord{
				MedicationID:  medicationID,
				UserID:        userID,
				TrackingDate:  date,
				ScheduledTime: scheduledTime,
				Taken:         true,
				TakenAt:       &at,
			}
			action = realtime.ActionInsert
			return tx.Create(&record).Error
		}
		if err != nil {
			return err
		}

		record.Taken = true
		record.TakenAt = &at
		return tx.Model(&record).Updates(map[string]interface{}{
			"taken":    true,
			"taken_at": at,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	if bus != nil {
		bus.Publish(context.Background(), realtime.Event{
			Table:   models.TrackingRecord{}.TableName(),
			Action:  action,
			UserID:  userID,
			Payload: record,
		})
	}

	return &record, nil
}

// TrackingWithMedication is a tracking row joined with the medication it
// belongs to, as rendered in the history views.
type TrackingWithMedication struct {
	models.TrackingRecord
	MedicationName string `json:"medication_name"`
	Dosage         string `json:"dosage"`
}

// GetTodaysTracking returns the user's tracking rows for one calendar date
func GetTodaysTracking(db *gorm.DB, userID, date string) ([]TrackingWithMedication, error) {
	var rows []TrackingWithMedication
	err := db.Table("medication_tracking").
		Select("medication_tracking.*, medication.name AS medication_name, medication.dosage").
		Joins("JOIN medication ON medication.id = medication_tracking.medication_id").
		Where("medication_tracking.user_id = ? AND medication_tracking.tracking_date = ?", userID, date).
		Scan(&rows).Error
	return rows, err
}

// GetTrackingHistory returns the user's tracking rows for the last N days,
// newest date first.
func GetTrackingHistory(db *gorm.DB, userID string, now time.Time, days int) ([]TrackingWithMedication, error) {
	endDate := now.Format(models.DateLayout)
	startDate := now.AddDate(0, 0, -days).Format(models.DateLayout)

	var rows []TrackingWithMedication
	err := db.Table("medication_tracking").
		Select("medication_tracking.*, medication.name AS medication_name, medication.dosage").
		Joins("JOIN medication ON medication.id = medication_tracking.medication_id").
		Where("medication_tracking.user_id = ? AND medication_tracking.tracking_date >= ? AND medication_tracking.tracking_date <= ?",
			userID, startDate, endDate).
		Order("medication_tracking.tracking_date DESC").
		Scan(&rows).Error
	return rows, err
}
