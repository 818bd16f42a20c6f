package handlers

import (
	"fmt"
	"net/http"

	"medbuddy/internal/auth"
	"medbuddy/internal/services"

	"github.com/gin-gonic/gin"
)

// SendTestEmail sends a test notification to the caller's caretaker email so
// they can verify the escalation emails will arrive.
func SendTestEmail(c *gin.Context) {
	profile, err := auth.CurrentProfile(c)
	if err != nil {
		handleError(c, http.StatusNotFound, "Profile not found", err)
		return
	}

	if profile.CaretakerEmail == nil || *profile.CaretakerEmail == "" {
		handleError(c, http.StatusBadRequest, "No caretaker email configured",
			fmt.Errorf("user %s has no caretaker email", profile.ID))
		return
	}

	if err := emailService.SendTestEmail(*profile.CaretakerEmail); err != nil {
		if err == services.ErrEmailNotConfigured {
			handleError(c, http.StatusServiceUnavailable, "Email delivery is not configured", err)
			return
		}
		handleError(c, http.StatusInternalServerError, "Failed to send test email", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "test email sent to " + *profile.CaretakerEmail})
}
