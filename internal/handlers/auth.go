package handlers

import (
	"log"
	"net/http"
	"strings"

	"medbuddy/internal/auth"
	"medbuddy/internal/database"
	"medbuddy/internal/models"
	"medbuddy/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Login handles user authentication and starts a session
func Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Find the account
	db := database.GetDB()
	var profile models.Profile
	if err := db.Where("email = ?", strings.ToLower(req.Email)).First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			log.Printf("Login failed for %s from %s: unknown email", req.Email, utils.GetRealClientIP(c))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	if !auth.CheckPassword(profile.HashedPass, req.Password) {
		log.Printf("Login failed for %s from %s: wrong password", req.Email, utils.GetRealClientIP(c))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if err := auth.CreateSession(c, profile.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "login successful",
		"user": gin.H{
			"id":        profile.ID,
			"email":     profile.Email,
			"full_name": profile.FullName,
			"role":      profile.Role,
		},
	})
}

// Logout handles user logout by deleting the session and clearing the cookie
func Logout(c *gin.Context) {
	auth.DeleteSession(c)
	c.JSON(http.StatusOK, gin.H{"message": "logout successful"})
}

// GetCurrentUser returns the currently authenticated user
func GetCurrentUser(c *gin.Context) {
	profile, err := auth.CurrentProfile(c)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	c.JSON(http.StatusOK, profile)
}
