package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"medbuddy/internal/auth"
	"medbuddy/internal/database"
	"medbuddy/internal/models"

	"github.com/gin-gonic/gin"
)

// validatePassword checks if password meets security requirements
func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	hasLetter := false
	hasNumber := false

	for _, char := range password {
		if unicode.IsLetter(char) {
			hasLetter = true
		} else if unicode.IsNumber(char) {
			hasNumber = true
		}

		if hasLetter && hasNumber {
			return nil
		}
	}

	return fmt.Errorf("password must contain at least one letter and one number")
}

// CreateAccount handles new user registration
func CreateAccount(c *gin.Context) {
	var req models.CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, http.StatusBadRequest, "Invalid input", err)
		return
	}

	// Validate password strength
	if err := validatePassword(req.Password); err != nil {
		handleError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	hashedPass, err := auth.HashPassword(req.Password)
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to create account", err)
		return
	}

	profile := models.Profile{
		Email:      strings.ToLower(req.Email),
		HashedPass: hashedPass,
		FullName:   req.FullName,
		Role:       req.Role,
	}

	db := database.GetDB()
	if err := db.Create(&profile).Error; err != nil {
		// Check for common database errors like duplicate emails
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			handleError(c, http.StatusConflict, "Email already in use", err)
			return
		}

		handleError(c, http.StatusInternalServerError, "Failed to create account", err)
		return
	}

	// Log the new user straight in
	if err := auth.CreateSession(c, profile.ID); err != nil {
		handleError(c, http.StatusInternalServerError, "Account created but failed to start session", err)
		return
	}

	c.JSON(http.StatusCreated, profile)
}
