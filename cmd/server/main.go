package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medbuddy/internal/auth"
	"medbuddy/internal/database"
	"medbuddy/internal/handlers"
	"medbuddy/internal/realtime"
	"medbuddy/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// This is our main function - the entry point of our application
func main() {
	// Load .env if present (optional in container environments)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize database
	if err := database.InitDB(); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	// Realtime change feed (Redis-backed when configured)
	bus := realtime.NewBusFromEnv()
	defer bus.Close()

	// Email dispatch degrades to log-only without an API key
	emailService := services.NewEmailService()

	// Avatar uploads are optional
	imageService, err := services.NewImageService()
	if err != nil {
		log.Printf("Avatar uploads disabled: %v", err)
		imageService = nil
	}

	// Missed-dose escalation worker
	worker := services.NewEscalationWorker(database.GetDB(), emailService, bus)
	worker.Start()
	defer worker.Stop()

	handlers.Configure(bus, emailService, imageService, worker)

	// Initialize Gin router
	router := gin.Default()

	// Configure trusted proxies
	router.SetTrustedProxies([]string{"127.0.0.1"})

	// Allow the browser client to call us with its session cookie
	corsConfig := cors.DefaultConfig()
	if origin := os.Getenv("CLIENT_ORIGIN"); origin != "" {
		corsConfig.AllowOrigins = []string{origin}
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173"}
	}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Basic routes
	router.GET("/", handlers.HomeHandler)
	router.GET("/health", handlers.HealthHandler)

	// Auth routes (no auth required)
	router.POST("/auth/login", handlers.Login)

	// Account routes (no auth required)
	router.POST("/accounts", handlers.CreateAccount)

	// Protected routes (auth required)
	protected := router.Group("")
	protected.Use(auth.AuthMiddleware())
	{
		protected.POST("/auth/logout", handlers.Logout)
		protected.GET("/auth/me", handlers.GetCurrentUser)

		// Profile routes
		protected.GET("/profile", handlers.GetProfile)
		protected.PATCH("/profile", handlers.UpdateProfile)
		protected.POST("/profile/avatar", handlers.UploadAvatar)

		// Medication routes
		protected.POST("/medications", handlers.CreateMedication)
		protected.GET("/medications", handlers.GetMedications)
		protected.GET("/medications/today", handlers.GetMedicationsToday)
		protected.PATCH("/medications/:id", handlers.UpdateMedication)
		protected.DELETE("/medications/:id", handlers.DeleteMedication)
		protected.POST("/medications/:id/taken", handlers.MarkMedicationTaken)

		// Tracking routes
		protected.GET("/tracking/today", handlers.GetTodayTracking)
		protected.GET("/tracking/history", handlers.GetTrackingHistory)
		protected.GET("/tracking/stats", handlers.GetMedicationStats)
		protected.POST("/tracking/check-missed", handlers.CheckMissedMedications)

		// Alert routes
		protected.GET("/alerts", handlers.GetAlerts)
		protected.POST("/alerts/:id/read", handlers.MarkAlertRead)
		protected.POST("/alerts/read-all", handlers.MarkAllAlertsRead)

		// Realtime change feed
		protected.GET("/events", handlers.StreamEvents)

		// Notification routes
		protected.POST("/notifications/test", handlers.SendTestEmail)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start the server
	go func() {
		log.Printf("Server starting on port %s...", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Wait for shutdown signal, then stop the worker and drain the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	worker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
