package auth

import (
	"net/http"

	"medbuddy/internal/database"
	"medbuddy/internal/models"

	"github.com/gin-gonic/gin"
)

// ContextUserIDKey is the gin context key holding the authenticated user ID
const ContextUserIDKey = "user_id"

// AuthMiddleware validates the session
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get the session from the request
		session, err := GetSession(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		// Store user info in context for handlers to use
		c.Set(ContextUserIDKey, session.UserID)

		c.Next()
	}
}

// GetUserIDFromContext returns the authenticated user ID, or "" if absent
func GetUserIDFromContext(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}

// CurrentProfile loads the profile of the authenticated user
func CurrentProfile(c *gin.Context) (*models.Profile, error) {
	userID := GetUserIDFromContext(c)

	db := database.GetDB()
	var profile models.Profile
	if err := db.Where("id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}
