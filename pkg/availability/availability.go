package availability

import (
	"sort"
	"time"

	"github.com/rentalops/backoffice-api-go/pkg/models"
	"github.com/rs/zerolog"
)

const clockLayout = "2006-01-02 15:04"

// Engine computes which employees can take a return booking at a given slot.
// It is a pure read-and-compute component: its output is an advisory ranking,
// not a reservation. The authoritative conflict check happens when the booking
// is committed (see database.CreateBookingChecked).
type Engine struct {
	settings models.AvailabilitySettings
	logger   zerolog.Logger
}

// NewEngine creates an engine with the given settings. Zero-valued settings
// fields fall back to the defaults.
func NewEngine(settings models.AvailabilitySettings, logger zerolog.Logger) *Engine {
	defaults := models.DefaultAvailabilitySettings()
	if settings.MaxConcurrentReturns <= 0 {
		settings.MaxConcurrentReturns = defaults.MaxConcurrentReturns
	}
	if settings.ReturnDurationMinutes <= 0 {
		settings.ReturnDurationMinutes = defaults.ReturnDurationMinutes
	}
	if settings.BufferMinutes <= 0 {
		settings.BufferMinutes = defaults.BufferMinutes
	}
	return &Engine{settings: settings, logger: logger}
}

// Settings returns the effective settings after defaulting.
func (e *Engine) Settings() models.AvailabilitySettings {
	return e.settings
}

// Window is the widened appointment length: nominal duration plus the
// separation buffer. The buffer is applied to every appointment's window, so
// it acts as separation on both sides of any booking.
func (e *Engine) Window() time.Duration {
	return time.Duration(e.settings.ReturnDurationMinutes+e.settings.BufferMinutes) * time.Minute
}

// ParseClock resolves an HH:MM time-of-day to an absolute instant on date.
func ParseClock(date, clock string) (time.Time, error) {
	return time.Parse(clockLayout, date+" "+clock)
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Adjacent windows do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// ComputeAvailable returns the employees who can take a return at the
// requested slot, ordered by current load ascending (employee ID breaks
// ties). A missing date or time yields an empty list: the caller is in a
// "nothing selected yet" state, not an error state. An empty list with
// everything present means no one is schedulable, which is equally valid.
//
// Shifts must belong to the requested date; bookings must be the same date's
// bookings. Unassigned bookings never constrain availability. Records whose
// times fail to parse are skipped with a warning so one bad row cannot make
// the whole day look booked.
func (e *Engine) ComputeAvailable(date, clock string, shifts []models.ShiftEntry, bookings []models.BookingEntry) []models.Candidate {
	candidates := []models.Candidate{}
	if date == "" || clock == "" {
		return candidates
	}

	slotStart, err := ParseClock(date, clock)
	if err != nil {
		e.logger.Warn().Str("date", date).Str("time", clock).Msg("malformed requested slot")
		return candidates
	}
	window := e.Window()
	slotEnd := slotStart.Add(window)

	load := make(map[string]int)
	booked := make(map[string][]time.Time)
	for _, b := range bookings {
		if b.AssignedEmployeeID == nil {
			continue
		}
		id := *b.AssignedEmployeeID
		load[id]++
		if b.ScheduledTime == nil {
			// no recorded time, cannot conflict
			continue
		}
		exStart, err := ParseClock(date, *b.ScheduledTime)
		if err != nil {
			e.logger.Warn().Str("contract_id", b.ContractID).Str("time", *b.ScheduledTime).
				Msg("skipping booking with malformed time")
			continue
		}
		booked[id] = append(booked[id], exStart)
	}

	for _, sh := range shifts {
		if !sh.IsAvailable {
			continue
		}
		workStart, err := ParseClock(date, sh.StartTime)
		if err != nil {
			e.logger.Warn().Str("employee_id", sh.EmployeeID).Str("start", sh.StartTime).
				Msg("skipping shift with malformed start time")
			continue
		}
		workEnd, err := ParseClock(date, sh.EndTime)
		if err != nil {
			e.logger.Warn().Str("employee_id", sh.EmployeeID).Str("end", sh.EndTime).
				Msg("skipping shift with malformed end time")
			continue
		}

		// The widened slot must sit entirely inside the shift. Running past
		// the end of a shift, even by the buffer alone, disqualifies.
		if slotStart.Before(workStart) || slotEnd.After(workEnd) {
			continue
		}

		if e.hasConflict(slotStart, slotEnd, window, booked[sh.EmployeeID]) {
			continue
		}

		candidates = append(candidates, models.Candidate{
			EmployeeID:   sh.EmployeeID,
			EmployeeName: sh.EmployeeName,
			CurrentLoad:  load[sh.EmployeeID],
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CurrentLoad != candidates[j].CurrentLoad {
			return candidates[i].CurrentLoad < candidates[j].CurrentLoad
		}
		return candidates[i].EmployeeID < candidates[j].EmployeeID
	})

	return candidates
}

// hasConflict tests the requested widened slot against every widened window
// already booked for one employee.
func (e *Engine) hasConflict(slotStart, slotEnd time.Time, window time.Duration, existing []time.Time) bool {
	for _, exStart := range existing {
		// Guard against zero-duration windows: an exact start match is a
		// conflict even when the interval test would not catch it.
		if slotStart.Equal(exStart) {
			return true
		}
		if Overlaps(slotStart, slotEnd, exStart, exStart.Add(window)) {
			return true
		}
	}
	return false
}
