package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rentalops/backoffice-api-go/pkg/database"
	"github.com/rentalops/backoffice-api-go/pkg/models"
	"github.com/rentalops/backoffice-api-go/pkg/reports"
)

// CreateClient registers a new client record
func (h *Handler) CreateClient(c *gin.Context) {
	var client database.Client
	if err := c.ShouldBindJSON(&client); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if client.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	client.ID = 0
	if err := h.DB.Create(&client).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create client"})
		return
	}
	c.JSON(http.StatusCreated, client)
}

// ListClients returns all clients
func (h *Handler) ListClients(c *gin.Context) {
	var clients []database.Client
	if err := h.DB.Order("name").Find(&clients).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch clients"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

// UpdateClient overwrites an existing client's contact details
func (h *Handler) UpdateClient(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var client database.Client
	if err := h.DB.First(&client, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}
	var req database.Client
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	client.Name = req.Name
	client.Email = req.Email
	client.Phone = req.Phone
	client.LicenseNumber = req.LicenseNumber
	if err := h.DB.Save(&client).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update client"})
		return
	}
	c.JSON(http.StatusOK, client)
}

// CreateVehicle adds a vehicle to the fleet
func (h *Handler) CreateVehicle(c *gin.Context) {
	var vehicle database.Vehicle
	if err := c.ShouldBindJSON(&vehicle); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if vehicle.Plate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plate is required"})
		return
	}
	vehicle.ID = 0
	if vehicle.Status == "" {
		vehicle.Status = "available"
	}
	if err := h.DB.Create(&vehicle).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create vehicle"})
		return
	}
	c.JSON(http.StatusCreated, vehicle)
}

// ListVehicles returns the fleet, optionally filtered by status
func (h *Handler) ListVehicles(c *gin.Context) {
	q := h.DB.Order("plate")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var vehicles []database.Vehicle
	if err := q.Find(&vehicles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch vehicles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": vehicles})
}

// UpdateVehicleStatus moves a vehicle between available, rented and maintenance
func (h *Handler) UpdateVehicleStatus(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var req struct {
		Status  string `json:"status"`
		Mileage int    `json:"mileage"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.Status {
	case "available", "rented", "maintenance":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be available, rented or maintenance"})
		return
	}

	var vehicle database.Vehicle
	if err := h.DB.First(&vehicle, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
		return
	}
	vehicle.Status = req.Status
	if req.Mileage > 0 {
		vehicle.Mileage = req.Mileage
	}
	if err := h.DB.Save(&vehicle).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update vehicle"})
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

// CreateContract opens a rental contract for a client and vehicle
func (h *Handler) CreateContract(c *gin.Context) {
	var req struct {
		ClientID       uint   `json:"client_id"`
		VehicleID      uint   `json:"vehicle_id"`
		StartDate      string `json:"start_date"`
		EndDate        string `json:"end_date"`
		DailyRateCents int64  `json:"daily_rate_cents"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := time.Parse(dateLayout, req.StartDate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be YYYY-MM-DD"})
		return
	}
	if req.EndDate != "" {
		if _, err := time.Parse(dateLayout, req.EndDate); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be YYYY-MM-DD"})
			return
		}
	}
	var client database.Client
	if err := h.DB.First(&client, req.ClientID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}
	var vehicle database.Vehicle
	if err := h.DB.First(&vehicle, req.VehicleID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
		return
	}

	contract := database.Contract{
		Ref:            uuid.NewString(),
		ClientID:       req.ClientID,
		VehicleID:      req.VehicleID,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		DailyRateCents: req.DailyRateCents,
		Status:         "open",
	}
	if err := h.DB.Create(&contract).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create contract"})
		return
	}
	h.DB.Model(&vehicle).Update("status", "rented")
	c.JSON(http.StatusCreated, contract)
}

// ListContracts returns contracts, optionally filtered by status
func (h *Handler) ListContracts(c *gin.Context) {
	q := h.DB.Order("created_at desc")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var contracts []database.Contract
	if err := q.Find(&contracts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch contracts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contracts": contracts})
}

// CloseContract ends a contract and releases its vehicle
func (h *Handler) CloseContract(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var contract database.Contract
	if err := h.DB.First(&contract, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found"})
		return
	}
	if contract.Status == "closed" {
		c.JSON(http.StatusOK, contract)
		return
	}
	contract.Status = "closed"
	if contract.EndDate == "" {
		contract.EndDate = time.Now().Format(dateLayout)
	}
	if err := h.DB.Save(&contract).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not close contract"})
		return
	}
	h.DB.Model(&database.Vehicle{}).Where("id = ?", contract.VehicleID).Update("status", "available")
	c.JSON(http.StatusOK, contract)
}

// IssueInvoice creates an invoice for a contract
func (h *Handler) IssueInvoice(c *gin.Context) {
	var req struct {
		ContractID  uint   `json:"contract_id"`
		AmountCents int64  `json:"amount_cents"`
		DueDate     string `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var contract database.Contract
	if err := h.DB.First(&contract, req.ContractID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found"})
		return
	}
	if req.DueDate != "" {
		if _, err := time.Parse(dateLayout, req.DueDate); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be YYYY-MM-DD"})
			return
		}
	}

	invoice := database.Invoice{
		ContractID:  req.ContractID,
		Ref:         uuid.NewString(),
		AmountCents: req.AmountCents,
		DueDate:     req.DueDate,
	}
	if err := h.DB.Create(&invoice).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create invoice"})
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

// PayInvoice marks an invoice settled
func (h *Handler) PayInvoice(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var invoice database.Invoice
	if err := h.DB.First(&invoice, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
		return
	}
	if !invoice.Paid {
		now := time.Now()
		invoice.Paid = true
		invoice.PaidAt = &now
		if err := h.DB.Save(&invoice).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update invoice"})
			return
		}
	}
	c.JSON(http.StatusOK, invoice)
}

// ListOverdueInvoices returns the unpaid invoices past their due date
func (h *Handler) ListOverdueInvoices(c *gin.Context) {
	invoices, err := h.Store.OverdueInvoices(time.Now().Format(dateLayout))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch invoices"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

// CreateDocument records uploaded document metadata; the blob itself lives
// in external storage under the generated storage key
func (h *Handler) CreateDocument(c *gin.Context) {
	var req struct {
		ContractID  uint   `json:"contract_id"`
		FileName    string `json:"file_name"`
		ContentType string `json:"content_type"`
		SizeBytes   int64  `json:"size_bytes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.FileName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_name is required"})
		return
	}
	var contract database.Contract
	if err := h.DB.First(&contract, req.ContractID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found"})
		return
	}

	doc := database.Document{
		ContractID:  req.ContractID,
		StorageKey:  uuid.NewString(),
		FileName:    req.FileName,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
	}
	if err := h.DB.Create(&doc).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not record document"})
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// ListDocuments returns document metadata for a contract
func (h *Handler) ListDocuments(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var docs []database.Document
	if err := h.DB.Where("contract_id = ?", id).Order("created_at").Find(&docs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch documents"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// GetSettings returns the availability settings, with defaults applied
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.Store.LoadSettings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateSettings overwrites the availability settings
func (h *Handler) UpdateSettings(c *gin.Context) {
	var settings models.AvailabilitySettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if settings.MaxConcurrentReturns <= 0 || settings.ReturnDurationMinutes <= 0 || settings.BufferMinutes < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "settings values must be positive"})
		return
	}
	if err := h.Store.SaveSettings(settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not save settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// DayReport streams the day's bookings as an xlsx attachment
func (h *Handler) DayReport(c *gin.Context) {
	date := c.Query("date")
	if _, err := time.Parse(dateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	rows, err := h.Store.DayReportRows(date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not build report"})
		return
	}
	data, err := reports.DayReport(date, rows)
	if err != nil {
		h.Logger.Error().Err(err).Str("date", date).Msg("day report rendering failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not render report"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="returns-`+date+`.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
