package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rentalops/backoffice-api-go/pkg/availability"
	"github.com/rentalops/backoffice-api-go/pkg/models"
)

// validateShiftUpload checks a bulk shift submission. Returns an empty
// string when valid, otherwise the problem description.
func validateShiftUpload(upload models.ShiftUpload) string {
	if len(upload.Shifts) == 0 {
		return "At least one shift is required"
	}

	seen := make(map[string]bool)
	for _, sh := range upload.Shifts {
		if sh.EmployeeID == "" {
			return "employee_id is required on every shift"
		}
		if _, err := time.Parse(dateLayout, sh.WorkDate); err != nil {
			return fmt.Sprintf("Invalid work_date %q for employee %s", sh.WorkDate, sh.EmployeeID)
		}
		start, err := availability.ParseClock(sh.WorkDate, sh.StartTime)
		if err != nil {
			return fmt.Sprintf("Invalid start_time %q for employee %s", sh.StartTime, sh.EmployeeID)
		}
		end, err := availability.ParseClock(sh.WorkDate, sh.EndTime)
		if err != nil {
			return fmt.Sprintf("Invalid end_time %q for employee %s", sh.EndTime, sh.EmployeeID)
		}
		if !start.Before(end) {
			return fmt.Sprintf("start_time must be before end_time for employee %s on %s", sh.EmployeeID, sh.WorkDate)
		}

		key := sh.EmployeeID + "|" + sh.WorkDate
		if seen[key] {
			return fmt.Sprintf("Duplicate shift for employee %s on %s", sh.EmployeeID, sh.WorkDate)
		}
		seen[key] = true
	}
	return ""
}

// ValidateShifts handles the JSON-based validation request for a shift
// upload without writing anything
func (h *Handler) ValidateShifts(c *gin.Context) {
	var upload models.ShiftUpload
	if err := c.ShouldBindJSON(&upload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	if msg := validateShiftUpload(upload); msg != "" {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": msg})
		return
	}

	employees := make(map[string]bool)
	for _, sh := range upload.Shifts {
		employees[sh.EmployeeID] = true
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"stats": gin.H{
			"shift_count":    len(upload.Shifts),
			"employee_count": len(employees),
		},
	})
}
