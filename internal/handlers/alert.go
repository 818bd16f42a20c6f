package handlers

import (
	"fmt"
	"net/http"

	"medbuddy/internal/auth"
	"medbuddy/internal/database"
	"medbuddy/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// alertPageSize caps the alert panel at the newest entries
const alertPageSize = 20

// GetAlerts lists the caller's newest alerts
func GetAlerts(c *gin.Context) {
	userID := auth.GetUserIDFromContext(c)

	db := database.GetDB()
	var alerts []models.Alert
	if err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(alertPageSize).
		Find(&alerts).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to retrieve alerts", err)
		return
	}

	c.JSON(http.StatusOK, alerts)
}

// MarkAlertRead flips one alert's read flag
func MarkAlertRead(c *gin.Context) {
	userID := auth.GetUserIDFromContext(c)
	alertID := c.Param("id")

	db := database.GetDB()
	var alert models.Alert
	if err := db.Where("id = ?", alertID).First(&alert).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			handleError(c, http.StatusNotFound, "Alert not found", err)
		} else {
			handleError(c, http.StatusInternalServerError, "Failed to retrieve alert", err)
		}
		return
	}

	if alert.UserID != userID {
		handleError(c, http.StatusForbidden, "Alert belongs to another user",
			fmt.Errorf("user %s attempted to read alert %s", userID, alertID))
		return
	}

	if err := db.Model(&alert).Update("read", true).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to mark alert as read", err)
		return
	}

	c.JSON(http.StatusOK, alert)
}

// MarkAllAlertsRead flips every unread alert of the caller
func MarkAllAlertsRead(c *gin.Context) {
	userID := auth.GetUserIDFromContext(c)

	db := database.GetDB()
	if err := db.Model(&models.Alert{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to mark alerts as read", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "all alerts marked as read"})
}
