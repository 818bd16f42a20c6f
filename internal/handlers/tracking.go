package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"medbuddy/internal/auth"
	"medbuddy/internal/database"
	"medbuddy/internal/models"
	"medbuddy/internal/services"

	"github.com/gin-gonic/gin"
)

// MarkMedicationTaken records that a dose was taken. Idempotent: repeating
// the call for one (medication, date, scheduled-time) keeps a single record.
func MarkMedicationTaken(c *gin.Context) {
	var req models.MarkTakenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, http.StatusBadRequest, "Invalid input", err)
		return
	}

	if _, err := models.ParseClock(req.ScheduledTime); err != nil {
		handleError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	medication, ok := findOwnedMedication(c, c.Param("id"))
	if !ok {
		return
	}

	now := time.Now()
	date := req.Date
	if date == "" {
		date = now.Format(models.DateLayout)
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		handleError(c, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return
	}

	userID := auth.GetUserIDFromContext(c)

	db := database.GetDB()
	record, err := services.MarkTaken(db, eventBus, medication.ID, userID, req.ScheduledTime, date, now)
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to mark medication as taken", err)
		return
	}

	// Surface the event in the alert panel as well
	message := fmt.Sprintf("%s was taken at %s", medication.Name, models.FormatTime(req.ScheduledTime))
	if _, err := services.CreateAlert(db, eventBus, userID, message, models.SeverityLow); err != nil {
		// The dose is recorded; a failed alert should not fail the request
		handleError(c, http.StatusOK, "marked taken, but alert creation failed", err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetTodayTracking returns today's tracking rows for the caller
func GetTodayTracking(c *gin.Context) {
	userID := auth.GetUserIDFromContext(c)
	today := time.Now().Format(models.DateLayout)

	db := database.GetDB()
	rows, err := services.GetTodaysTracking(db, userID, today)
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to retrieve tracking", err)
		return
	}

	c.JSON(http.StatusOK, rows)
}

// GetTrackingHistory returns the caller's tracking rows for the last N days
func GetTrackingHistory(c *gin.Context) {
	userID := auth.GetUserIDFromContext(c)

	days := 7
	if v := c.Query("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 90 {
			handleError(c, http.StatusBadRequest, "days must be between 1 and 90", err)
			return
		}
		days = parsed
	}

	db := database.GetDB()
	rows, err := services.GetTrackingHistory(db, userID, time.Now(), days)
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to retrieve tracking history", err)
		return
	}

	c.JSON(http.StatusOK, rows)
}

// GetMedicationStats returns the caller's dashboard statistics
func GetMedicationStats(c *gin.Context) {
	userID := auth.GetUserIDFromContext(c)

	db := database.GetDB()
	stats, err := services.GetMedicationStats(db, userID, time.Now())
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to compute statistics", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CheckMissedMedications recomputes the caller's currently missed doses,
// raises the aggregated alert, and kicks the full escalation checker in the
// background.
func CheckMissedMedications(c *gin.Context) {
	userID := auth.GetUserIDFromContext(c)

	db := database.GetDB()
	missed, err := services.CheckMissedMedications(db, eventBus, userID, time.Now())
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to check missed medications", err)
		return
	}

	if len(missed) > 0 && escalation != nil {
		go escalation.RunOnce(context.Background())
	}

	if missed == nil {
		missed = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"missed": missed})
}
