package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rentalops/backoffice-api-go/pkg/auth"
	"github.com/rentalops/backoffice-api-go/pkg/config"
	"github.com/rentalops/backoffice-api-go/pkg/database"
	"github.com/rentalops/backoffice-api-go/pkg/handlers"
	"github.com/rentalops/backoffice-api-go/pkg/metrics"
	"github.com/rentalops/backoffice-api-go/pkg/models"
	"github.com/rentalops/backoffice-api-go/pkg/notify"
	"github.com/rs/zerolog"
)

func main() {
	// Load .env if it exists
	// Try root and parent directories for flexibility
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			break
		}
	}

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("BACKOFFICE_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics.Register()

	db := database.InitDB()
	_ = auth.EnsureAdminExists(db)
	h := handlers.New(db, logger)

	if err := h.Store.SeedSettings(models.AvailabilitySettings{
		MaxConcurrentReturns:  cfg.Availability.MaxConcurrentReturns,
		ReturnDurationMinutes: cfg.Availability.ReturnDurationMinutes,
		BufferMinutes:         cfg.Availability.BufferMinutes,
	}); err != nil {
		logger.Error().Err(err).Msg("failed to seed availability settings")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender := notify.NewWebhookSender(notify.SenderConfig{
		URL:           cfg.Webhook.URL,
		Token:         cfg.Webhook.Token,
		RatePerSecond: cfg.Webhook.RatePerSecond,
		Burst:         cfg.Webhook.Burst,
		MaxRetries:    cfg.Webhook.MaxRetries,
		RetryDelays:   []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second},
	}, logger)

	jobs, err := notify.NewJobScheduler(notify.SchedulerConfig{
		Timezone:           cfg.Jobs.Timezone,
		DailyHour:          cfg.Jobs.DailyHour,
		DailyMinute:        cfg.Jobs.DailyMinute,
		CheckInterval:      cfg.CheckInterval(),
		ContractNoticeDays: cfg.Jobs.ContractNoticeDays,
	}, h.Store, sender, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create job scheduler")
	}
	go jobs.Start(ctx)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Rental Back-Office API",
			"version": "1.3.0",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/admin/login", h.Login)

	// Admin Endpoints
	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware())
	{
		admin.POST("/keys", h.GenerateKey)
		admin.GET("/keys", h.ListKeys)
		admin.PUT("/keys/:id", h.UpdateKeyLimit)
		admin.DELETE("/keys/:id", h.RevokeKey)
		admin.GET("/usage/:id", h.GetUsage)
		admin.GET("/settings", h.GetSettings)
		admin.PUT("/settings", h.UpdateSettings)
	}

	// Back-office Endpoints
	api := r.Group("/api")
	api.Use(h.ServiceKeyMiddleware())
	{
		api.GET("/availability", h.GetAvailability)

		api.PUT("/shifts/bulk", h.BulkUpsertShifts)
		api.GET("/shifts", h.ListShifts)
		api.POST("/validate", h.ValidateShifts)

		api.POST("/bookings", h.CreateBooking)
		api.GET("/bookings", h.ListBookings)
		api.PUT("/bookings/:id/assign", h.AssignEmployee)
		api.POST("/bookings/:id/confirm", h.ConfirmBooking)
		api.POST("/bookings/:id/complete", h.CompleteBooking)

		api.POST("/clients", h.CreateClient)
		api.GET("/clients", h.ListClients)
		api.PUT("/clients/:id", h.UpdateClient)

		api.POST("/vehicles", h.CreateVehicle)
		api.GET("/vehicles", h.ListVehicles)
		api.PUT("/vehicles/:id/status", h.UpdateVehicleStatus)

		api.POST("/contracts", h.CreateContract)
		api.GET("/contracts", h.ListContracts)
		api.POST("/contracts/:id/close", h.CloseContract)
		api.GET("/contracts/:id/documents", h.ListDocuments)

		api.POST("/invoices", h.IssueInvoice)
		api.POST("/invoices/:id/pay", h.PayInvoice)
		api.GET("/invoices/overdue", h.ListOverdueInvoices)

		api.POST("/documents", h.CreateDocument)

		api.GET("/reports/day", h.DayReport)
		api.GET("/usage", h.GetMyUsage)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info().Str("port", cfg.Server.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("could not run server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	jobs.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
}
