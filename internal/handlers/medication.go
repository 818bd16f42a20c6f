package handlers

import (
	"fmt"
	"net/http"
	"time"

	"medbuddy/internal/auth"
	"medbuddy/internal/database"
	"medbuddy/internal/models"
	"medbuddy/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// validateTimeList rejects schedule strings that are not comma-separated HH:MM
func validateTimeList(timeList string) error {
	times := models.SplitTimes(timeList)
	if len(times) == 0 {
		return fmt.Errorf("at least one scheduled time is required")
	}
	for _, t := range times {
		if _, err := models.ParseClock(t); err != nil {
			return err
		}
	}
	return nil
}

// findOwnedMedication loads a medication and verifies it belongs to the caller
func findOwnedMedication(c *gin.Context, id string) (*models.Medication, bool) {
	userID := auth.GetUserIDFromContext(c)

	db := database.GetDB()
	var medication models.Medication
	if err := db.Where("id = ?", id).First(&medication).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			handleError(c, http.StatusNotFound, "Medication not found", err)
		} else {
			handleError(c, http.StatusInternalServerError, "Failed to retrieve medication", err)
		}
		return nil, false
	}

	if medication.UserID != userID {
		handleError(c, http.StatusForbidden, "Medication belongs to another user",
			fmt.Errorf("user %s attempted to access medication %s", userID, id))
		return nil, false
	}

	return &medication, true
}

// CreateMedication handles adding a new medication
func CreateMedication(c *gin.Context) {
	var req models.CreateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, http.StatusBadRequest, "Invalid input", err)
		return
	}

	if err := validateTimeList(req.Time); err != nil {
		handleError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	userID := auth.GetUserIDFromContext(c)

	medication := models.Medication{
		UserID:     userID,
		Name:       req.Name,
		Dosage:     req.Dosage,
		Frequency:  req.Frequency,
		Time:       req.Time,
		Type:       req.Type,
		Notes:      req.Notes,
		RefillDate: req.RefillDate,
	}

	db := database.GetDB()
	if err := db.Create(&medication).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to create medication", err)
		return
	}

	c.JSON(http.StatusCreated, medication)
}

// GetMedications lists the caller's medications, newest first
func GetMedications(c *gin.Context) {
	userID := auth.GetUserIDFromContext(c)

	db := database.GetDB()
	var medications []models.Medication
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&medications).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to retrieve medications", err)
		return
	}

	c.JSON(http.StatusOK, medications)
}

// GetMedicationsToday lists the caller's medications with today's taken status
func GetMedicationsToday(c *gin.Context) {
	userID := auth.GetUserIDFromContext(c)
	today := time.Now().Format(models.DateLayout)

	db := database.GetDB()
	medications, err := services.GetMedicationsWithTodayStatus(db, userID, today)
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to retrieve medications", err)
		return
	}

	c.JSON(http.StatusOK, medications)
}

// UpdateMedication applies partial updates to a medication
func UpdateMedication(c *gin.Context) {
	var req models.UpdateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, http.StatusBadRequest, "Invalid input", err)
		return
	}

	medication, ok := findOwnedMedication(c, c.Param("id"))
	if !ok {
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Dosage != nil {
		updates["dosage"] = *req.Dosage
	}
	if req.Frequency != nil {
		updates["frequency"] = *req.Frequency
	}
	if req.Time != nil {
		if err := validateTimeList(*req.Time); err != nil {
			handleError(c, http.StatusBadRequest, err.Error(), err)
			return
		}
		updates["time"] = *req.Time
	}
	if req.Type != nil {
		updates["type"] = *req.Type
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if req.RefillDate != nil {
		updates["refill_date"] = *req.RefillDate
	}

	if len(updates) == 0 {
		c.JSON(http.StatusOK, medication)
		return
	}

	db := database.GetDB()
	if err := db.Model(medication).Updates(updates).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to update medication", err)
		return
	}

	c.JSON(http.StatusOK, medication)
}

// DeleteMedication removes a medication
func DeleteMedication(c *gin.Context) {
	medication, ok := findOwnedMedication(c, c.Param("id"))
	if !ok {
		return
	}

	db := database.GetDB()
	if err := db.Delete(medication).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to delete medication", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "medication deleted"})
}
