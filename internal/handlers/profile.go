package handlers

import (
	"net/http"

	"medbuddy/internal/auth"
	"medbuddy/internal/database"
	"medbuddy/internal/models"

	"github.com/gin-gonic/gin"
)

// maxAvatarSize limits avatar uploads to 5 MB
const maxAvatarSize = 5 * 1024 * 1024

// GetProfile returns the authenticated user's profile
func GetProfile(c *gin.Context) {
	profile, err := auth.CurrentProfile(c)
	if err != nil {
		handleError(c, http.StatusNotFound, "Profile not found", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateProfile applies partial updates to the authenticated user's profile
func UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, http.StatusBadRequest, "Invalid input", err)
		return
	}

	profile, err := auth.CurrentProfile(c)
	if err != nil {
		handleError(c, http.StatusNotFound, "Profile not found", err)
		return
	}

	updates := map[string]interface{}{}
	if req.FullName != nil {
		updates["full_name"] = *req.FullName
	}
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.CaretakerEmail != nil {
		updates["caretaker_email"] = *req.CaretakerEmail
	}
	if req.EmailNotifications != nil {
		updates["email_notifications"] = *req.EmailNotifications
	}

	if len(updates) == 0 {
		c.JSON(http.StatusOK, profile)
		return
	}

	db := database.GetDB()
	if err := db.Model(profile).Updates(updates).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to update profile", err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UploadAvatar stores a profile picture and saves its URL on the profile
func UploadAvatar(c *gin.Context) {
	if imageService == nil {
		handleError(c, http.StatusServiceUnavailable, "Avatar uploads are not configured",
			nil)
		return
	}

	userID := auth.GetUserIDFromContext(c)

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		handleError(c, http.StatusBadRequest, "Missing avatar file", err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		handleError(c, http.StatusBadRequest, "Failed to read avatar file", err)
		return
	}
	defer file.Close()

	if err := imageService.ValidateImageFile(file, maxAvatarSize); err != nil {
		handleError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	url, err := imageService.UploadAvatar(file, fileHeader.Filename, userID)
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to upload avatar", err)
		return
	}

	db := database.GetDB()
	if err := db.Model(&models.Profile{}).Where("id = ?", userID).
		Update("avatar_url", url).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to save avatar URL", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"avatar_url": url})
}
