package services

import (
	"context"

	"medbuddy/internal/models"
	"medbuddy/internal/realtime"

	"gorm.io/gorm"
)

// CreateAlert stores a dashboard alert for the user and publishes it on the
// realtime feed.
func CreateAlert(db *gorm.DB, bus realtime.Bus, userID, message string, severity models.AlertSeverity) (*models.Alert, error) {
	alert := models.Alert{
		UserID:   userID,
		Message:  message,
		Severity: severity,
	}

	if err := db.Create(&alert).Error; err != nil {
		return nil, err
	}

	if bus != nil {
		bus.Publish(context.Background(), realtime.Event{
			Table:   models.Alert{}.TableName(),
			Action:  realtime.ActionInsert,
			UserID:  userID,
			Payload: alert,
		})
	}

	return &alert, nil
}
