package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rentalops/backoffice-api-go/pkg/auth"
	"github.com/rentalops/backoffice-api-go/pkg/availability"
	"github.com/rentalops/backoffice-api-go/pkg/database"
	"github.com/rentalops/backoffice-api-go/pkg/metrics"
	"github.com/rentalops/backoffice-api-go/pkg/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dateLayout = "2006-01-02"

// Handler contains dependencies for the route handlers
type Handler struct {
	DB     *gorm.DB
	Store  *database.Store
	Logger zerolog.Logger
}

// New creates a Handler over an initialized database
func New(db *gorm.DB, logger zerolog.Logger) *Handler {
	return &Handler{DB: db, Store: database.NewStore(db), Logger: logger}
}

// AuthMiddleware verifies the JWT token for admin routes
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Strip "Bearer " if present
		if len(token) > 7 && token[:7] == "Bearer " {
			token = token[7:]
		}

		claims, err := auth.VerifyToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

// ServiceKeyMiddleware verifies the HMAC service key for API routes
func (h *Handler) ServiceKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("Authorization")
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Service key required"})
			c.Abort()
			return
		}

		if len(key) > 7 && key[:7] == "Bearer " {
			key = key[7:]
		}

		serviceID, err := auth.VerifyServiceKey(key)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid service key signature"})
			c.Abort()
			return
		}

		// Fetch or create the key record to track usage
		var serviceKey database.ServiceKey
		h.DB.Where(database.ServiceKey{Key: key}).FirstOrCreate(&serviceKey, database.ServiceKey{
			Key:       key,
			Name:      serviceID,
			RateLimit: 10000,
		})

		c.Set("serviceKey", &serviceKey)
		c.Set("serviceID", serviceID)
		c.Next()
	}
}

// GetAvailability computes the ranked list of employees who can take a
// return at the requested slot. Missing date or time yields an empty list
// with 200: the booking desk legitimately has nothing-selected states. A
// failed data read is a 500 so the caller can tell "no candidates" from
// "could not determine availability".
func (h *Handler) GetAvailability(c *gin.Context) {
	metrics.IncHTTP("availability")
	date := c.Query("date")
	clock := c.Query("time")

	resp := models.AvailabilityResponse{Date: date, Time: clock, Candidates: []models.Candidate{}}
	if date == "" || clock == "" {
		c.JSON(http.StatusOK, resp)
		return
	}

	settings, err := h.Store.LoadSettings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load availability settings"})
		return
	}
	shifts, err := h.Store.ShiftsForDate(date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load shift calendar"})
		return
	}
	bookings, err := h.Store.AssignedBookingsForDate(date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load bookings"})
		return
	}

	engine := availability.NewEngine(settings, h.Logger)
	resp.Candidates = engine.ComputeAvailable(date, clock, shifts, bookings)

	metrics.IncAvailabilityCheck(len(resp.Candidates))
	h.RecordUsage(c, 1, 0)
	c.JSON(http.StatusOK, resp)
}

// CreateBooking registers a return booking. With auto_assign the engine's
// top candidate is committed; the transactional slot check still runs, so a
// stale recommendation is rejected rather than double-booked.
func (h *Handler) CreateBooking(c *gin.Context) {
	metrics.IncHTTP("booking_create")
	var req struct {
		ContractID    uint    `json:"contract_id"`
		ScheduledDate string  `json:"scheduled_date"`
		ScheduledTime *string `json:"scheduled_time"`
		EmployeeID    *string `json:"employee_id"`
		AutoAssign    bool    `json:"auto_assign"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ContractID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "contract_id is required"})
		return
	}
	if _, err := time.Parse(dateLayout, req.ScheduledDate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled_date must be YYYY-MM-DD"})
		return
	}

	var contract database.Contract
	if err := h.DB.First(&contract, req.ContractID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found"})
		return
	}

	settings, err := h.Store.LoadSettings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load availability settings"})
		return
	}

	employeeID := req.EmployeeID
	if req.AutoAssign && req.ScheduledTime != nil {
		shifts, err := h.Store.ShiftsForDate(req.ScheduledDate)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load shift calendar"})
			return
		}
		bookings, err := h.Store.AssignedBookingsForDate(req.ScheduledDate)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load bookings"})
			return
		}
		engine := availability.NewEngine(settings, h.Logger)
		candidates := engine.ComputeAvailable(req.ScheduledDate, *req.ScheduledTime, shifts, bookings)
		if len(candidates) == 0 {
			metrics.IncBookingCreated("no_candidates")
			c.JSON(http.StatusConflict, gin.H{"error": "No employees available for this slot"})
			return
		}
		employeeID = &candidates[0].EmployeeID
	}

	booking := database.Booking{
		ContractID:         req.ContractID,
		AssignedEmployeeID: employeeID,
		ScheduledDate:      req.ScheduledDate,
		ScheduledTime:      req.ScheduledTime,
	}
	if err := h.Store.CreateBookingChecked(&booking, settings); err != nil {
		h.bookingError(c, err)
		return
	}

	metrics.IncBookingCreated("created")
	h.RecordUsage(c, 0, 1)
	c.JSON(http.StatusCreated, booking)
}

// ListBookings returns the bookings on a date
func (h *Handler) ListBookings(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
		return
	}
	var bookings []database.Booking
	if err := h.DB.Where("scheduled_date = ?", date).Order("scheduled_time").Find(&bookings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch bookings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// AssignEmployee sets or replaces the employee on a booking
func (h *Handler) AssignEmployee(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var req struct {
		EmployeeID string `json:"employee_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.EmployeeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "employee_id is required"})
		return
	}

	settings, err := h.Store.LoadSettings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load availability settings"})
		return
	}
	booking, err := h.Store.AssignBooking(id, req.EmployeeID, settings)
	if err != nil {
		h.bookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// ConfirmBooking marks a booking acknowledged by its employee
func (h *Handler) ConfirmBooking(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	booking, err := h.Store.ConfirmBooking(id)
	if err != nil {
		h.bookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// CompleteBooking marks the physical handover done
func (h *Handler) CompleteBooking(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	booking, err := h.Store.CompleteBooking(id)
	if err != nil {
		h.bookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// BulkUpsertShifts writes a batch of shift entries, keyed per employee per
// date. The whole batch is validated before anything is written.
func (h *Handler) BulkUpsertShifts(c *gin.Context) {
	metrics.IncHTTP("shifts_bulk")
	var upload models.ShiftUpload
	if err := c.ShouldBindJSON(&upload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := validateShiftUpload(upload); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if err := h.Store.UpsertShifts(upload.Shifts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not save shifts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": len(upload.Shifts)})
}

// ListShifts returns all shift rows for a date, including unavailable ones
func (h *Handler) ListShifts(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
		return
	}
	var shifts []database.Shift
	if err := h.DB.Where("work_date = ?", date).Order("employee_id").Find(&shifts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch shifts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"shifts": shifts})
}

// Login handles back-office admin login
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user database.MasterUser
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := auth.CreateToken(user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// GenerateKey creates a new service key using the HMAC strategy
func (h *Handler) GenerateKey(c *gin.Context) {
	var req struct {
		Name      string `json:"name"`
		RateLimit int    `json:"rate_limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if req.RateLimit == 0 {
		req.RateLimit = 10000
	}

	key := auth.GenerateServiceKey(req.Name)

	// Create preview (e.g., sk_...****)
	preview := ""
	if len(key) > 8 {
		preview = key[:3] + "..." + key[len(key)-4:]
	} else {
		preview = "****"
	}

	serviceKey := database.ServiceKey{
		Key:        key,
		Name:       req.Name,
		KeyPreview: preview,
		RateLimit:  req.RateLimit,
	}

	if err := h.DB.Create(&serviceKey).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create key record"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name": req.Name,
		"key":  key,
	})
}

// ListKeys returns all service keys
func (h *Handler) ListKeys(c *gin.Context) {
	var keys []database.ServiceKey
	h.DB.Find(&keys)
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// RevokeKey deletes a service key
func (h *Handler) RevokeKey(c *gin.Context) {
	id := c.Param("id")
	if err := h.DB.Delete(&database.ServiceKey{}, id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not delete key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Key revoked"})
}

// UpdateKeyLimit updates the rate limit for a key
func (h *Handler) UpdateKeyLimit(c *gin.Context) {
	id := c.Param("id")
	var req struct {
		RateLimit int `json:"rate_limit" form:"rate_limit"`
	}

	// Try JSON first, then Form/Query
	if err := c.ShouldBindJSON(&req); err != nil {
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rate_limit is required"})
			return
		}
	}

	if req.RateLimit == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rate limit"})
		return
	}

	if err := h.DB.Model(&database.ServiceKey{}).Where("id = ?", id).Update("rate_limit", req.RateLimit).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update key limit"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rate limit updated successfully"})
}

// GetUsage returns usage stats for a key
func (h *Handler) GetUsage(c *gin.Context) {
	id := c.Param("id")
	var usage []database.APIUsage
	h.DB.Where("key_id = ?", id).Order("date desc").Limit(30).Find(&usage)
	c.JSON(http.StatusOK, gin.H{"usage": usage})
}

// RecordUsage records service-key usage in the database using an efficient upsert
func (h *Handler) RecordUsage(c *gin.Context, availabilityChecks, bookingsCreated int) {
	keyRaw, exists := c.Get("serviceKey")
	if !exists {
		return
	}
	serviceKey := keyRaw.(*database.ServiceKey)

	today := time.Now().Format(dateLayout)

	// Use OnConflict for a single-query upsert (supported by both Postgres and SQLite)
	h.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count":       gorm.Expr("request_count + ?", 1),
			"availability_checks": gorm.Expr("availability_checks + ?", availabilityChecks),
			"bookings_created":    gorm.Expr("bookings_created + ?", bookingsCreated),
		}),
	}).Create(&database.APIUsage{
		KeyID:              serviceKey.ID,
		Date:               today,
		RequestCount:       1,
		AvailabilityChecks: availabilityChecks,
		BookingsCreated:    bookingsCreated,
	})
}

func (h *Handler) paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) bookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrSlotConflict):
		metrics.IncBookingCreated("conflict")
		c.JSON(http.StatusConflict, gin.H{"error": "Employee already booked in an overlapping window"})
	case errors.Is(err, database.ErrCapacityReached):
		metrics.IncBookingCreated("capacity")
		c.JSON(http.StatusConflict, gin.H{"error": "Maximum concurrent returns reached for this slot"})
	case errors.Is(err, database.ErrCompletedImmutable):
		c.JSON(http.StatusConflict, gin.H{"error": "Completed bookings cannot be modified"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
	default:
		h.Logger.Error().Err(err).Msg("booking operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Booking operation failed"})
	}
}
