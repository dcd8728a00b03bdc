package models

// ShiftEntry is one employee's declared working window on one calendar date
type ShiftEntry struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name,omitempty"`
	WorkDate     string `json:"work_date"`  // YYYY-MM-DD
	StartTime    string `json:"start_time"` // HH:MM
	EndTime      string `json:"end_time"`   // HH:MM
	IsAvailable  bool   `json:"is_available"`
}

// BookingEntry is a scheduled vehicle-return appointment
type BookingEntry struct {
	ContractID         string  `json:"contract_id"`
	AssignedEmployeeID *string `json:"assigned_employee_id"`
	ScheduledDate      string  `json:"scheduled_date"` // YYYY-MM-DD
	ScheduledTime      *string `json:"scheduled_time"` // HH:MM, nil when no slot recorded
	Confirmed          bool    `json:"confirmed"`
	Completed          bool    `json:"completed"`
}

// AvailabilitySettings are the process-wide tunables for return scheduling
type AvailabilitySettings struct {
	MaxConcurrentReturns  int `json:"max_concurrent_returns"`
	ReturnDurationMinutes int `json:"return_duration_minutes"`
	BufferMinutes         int `json:"buffer_minutes"`
}

// DefaultAvailabilitySettings returns the fallback used when no settings row exists
func DefaultAvailabilitySettings() AvailabilitySettings {
	return AvailabilitySettings{
		MaxConcurrentReturns:  3,
		ReturnDurationMinutes: 30,
		BufferMinutes:         15,
	}
}

// Candidate is an employee eligible for a requested return slot
type Candidate struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	CurrentLoad  int    `json:"current_load"`
}

// AvailabilityResponse is the payload for the availability endpoint
type AvailabilityResponse struct {
	Date       string      `json:"date"`
	Time       string      `json:"time"`
	Candidates []Candidate `json:"candidates"`
}

// ShiftUpload is the bulk self-service shift submission
type ShiftUpload struct {
	Shifts []ShiftEntry `json:"shifts"`
}
