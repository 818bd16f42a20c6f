package handlers

import (
	"log"
	"net/http"

	"medbuddy/internal/realtime"
	"medbuddy/internal/services"

	"github.com/gin-gonic/gin"
)

// Package-level services wired up once at startup via Configure
var (
	eventBus     realtime.Bus
	emailService services.Sender
	imageService *services.ImageService
	escalation   *services.EscalationWorker
)

// Configure injects the shared services the handlers depend on. imageService
// may be nil when Cloudinary is not configured.
func Configure(bus realtime.Bus, email services.Sender, images *services.ImageService, worker *services.EscalationWorker) {
	eventBus = bus
	emailService = email
	imageService = images
	escalation = worker
}

// handleError provides a consistent way to handle and log errors
func handleError(c *gin.Context, status int, message string, err error) {
	log.Printf("Error: %v", err)
	c.JSON(status, gin.H{"error": message})
}

// HomeHandler handles requests to the root path "/"
func HomeHandler(c *gin.Context) {
	c.String(http.StatusOK, "Welcome to MedBuddy!")
}

// HealthHandler is a simple health check endpoint
func HealthHandler(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
