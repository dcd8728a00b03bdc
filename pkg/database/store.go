package database

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rentalops/backoffice-api-go/pkg/availability"
	"github.com/rentalops/backoffice-api-go/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrSlotConflict means the chosen employee is already booked in an
	// overlapping widened window on that date.
	ErrSlotConflict = errors.New("employee already booked in an overlapping window")
	// ErrCapacityReached means the requested slot would exceed the
	// configured maximum of concurrent returns across all employees.
	ErrCapacityReached = errors.New("maximum concurrent returns reached for this slot")
	// ErrCompletedImmutable means the booking already completed and may not
	// be modified.
	ErrCompletedImmutable = errors.New("completed bookings cannot be modified")
)

// Store wraps the gorm handle with the queries the availability engine and
// the booking lifecycle need. The engine itself never touches the database;
// the Store feeds it and owns the authoritative write-time checks.
type Store struct {
	DB *gorm.DB
}

// NewStore creates a Store over an initialized database
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// ShiftsForDate returns the available shift entries for a date, with
// employee names resolved
func (s *Store) ShiftsForDate(date string) ([]models.ShiftEntry, error) {
	var shifts []Shift
	if err := s.DB.Where("work_date = ? AND is_available = ?", date, true).Find(&shifts).Error; err != nil {
		return nil, fmt.Errorf("fetch shifts: %w", err)
	}

	ids := make([]string, 0, len(shifts))
	for _, sh := range shifts {
		ids = append(ids, sh.EmployeeID)
	}
	names := make(map[string]string, len(ids))
	if len(ids) > 0 {
		var employees []Employee
		if err := s.DB.Where("id IN ?", ids).Find(&employees).Error; err != nil {
			return nil, fmt.Errorf("fetch employees: %w", err)
		}
		for _, e := range employees {
			names[e.ID] = e.Name
		}
	}

	entries := make([]models.ShiftEntry, 0, len(shifts))
	for _, sh := range shifts {
		entries = append(entries, models.ShiftEntry{
			EmployeeID:   sh.EmployeeID,
			EmployeeName: names[sh.EmployeeID],
			WorkDate:     sh.WorkDate,
			StartTime:    sh.StartTime,
			EndTime:      sh.EndTime,
			IsAvailable:  sh.IsAvailable,
		})
	}
	return entries, nil
}

// AssignedBookingsForDate returns the bookings on a date that already have
// an employee; unassigned bookings never constrain availability
func (s *Store) AssignedBookingsForDate(date string) ([]models.BookingEntry, error) {
	var bookings []Booking
	if err := s.DB.Where("scheduled_date = ? AND assigned_employee_id IS NOT NULL", date).
		Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("fetch bookings: %w", err)
	}

	entries := make([]models.BookingEntry, 0, len(bookings))
	for _, b := range bookings {
		entries = append(entries, models.BookingEntry{
			ContractID:         strconv.FormatUint(uint64(b.ContractID), 10),
			AssignedEmployeeID: b.AssignedEmployeeID,
			ScheduledDate:      b.ScheduledDate,
			ScheduledTime:      b.ScheduledTime,
			Confirmed:          b.Confirmed,
			Completed:          b.Completed,
		})
	}
	return entries, nil
}

// LoadSettings returns the singleton settings row, falling back to the
// defaults when no row exists. An absent row is a defaulting policy, not an
// error.
func (s *Store) LoadSettings() (models.AvailabilitySettings, error) {
	var row Settings
	err := s.DB.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultAvailabilitySettings(), nil
	}
	if err != nil {
		return models.AvailabilitySettings{}, fmt.Errorf("fetch settings: %w", err)
	}

	settings := models.AvailabilitySettings{
		MaxConcurrentReturns:  row.MaxConcurrentReturns,
		ReturnDurationMinutes: row.ReturnDurationMinutes,
		BufferMinutes:         row.BufferMinutes,
	}
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
	return settings, nil
}

// SaveSettings upserts the singleton settings row
func (s *Store) SaveSettings(settings models.AvailabilitySettings) error {
	row := Settings{
		ID:                    1,
		MaxConcurrentReturns:  settings.MaxConcurrentReturns,
		ReturnDurationMinutes: settings.ReturnDurationMinutes,
		BufferMinutes:         settings.BufferMinutes,
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"max_concurrent_returns", "return_duration_minutes", "buffer_minutes",
		}),
	}).Create(&row).Error
}

// SeedSettings creates the settings row from configuration when the
// database has none yet. An existing row always wins over config.
func (s *Store) SeedSettings(settings models.AvailabilitySettings) error {
	var count int64
	if err := s.DB.Model(&Settings{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if settings.MaxConcurrentReturns <= 0 && settings.ReturnDurationMinutes <= 0 && settings.BufferMinutes <= 0 {
		return nil
	}
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
	return s.SaveSettings(settings)
}

// UpsertShifts writes a batch of shift entries keyed on (employee_id,
// work_date); resubmitting a day replaces that day's window
func (s *Store) UpsertShifts(entries []models.ShiftEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]Shift, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, Shift{
			EmployeeID:  e.EmployeeID,
			WorkDate:    e.WorkDate,
			StartTime:   e.StartTime,
			EndTime:     e.EndTime,
			IsAvailable: e.IsAvailable,
		})
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "employee_id"}, {Name: "work_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"start_time", "end_time", "is_available", "updated_at",
		}),
	}).Create(&rows).Error
}

// CreateBookingChecked commits a new booking inside a transaction that
// re-runs the conflict check for the chosen employee and enforces the
// concurrent-returns cap across all employees. The availability engine's
// output is only a recommendation; this is where conflict-freedom is
// actually guaranteed.
func (s *Store) CreateBookingChecked(b *Booking, settings models.AvailabilitySettings) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if b.ScheduledTime != nil {
			if err := checkSlot(tx, b.ScheduledDate, *b.ScheduledTime, b.AssignedEmployeeID, settings, 0); err != nil {
				return err
			}
		}
		return tx.Create(b).Error
	})
}

// AssignBooking sets or replaces the assigned employee on a booking,
// re-checking the slot inside the same transaction
func (s *Store) AssignBooking(id uint, employeeID string, settings models.AvailabilitySettings) (*Booking, error) {
	var b Booking
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&b, id).Error; err != nil {
			return err
		}
		if b.Completed {
			return ErrCompletedImmutable
		}
		if b.ScheduledTime != nil {
			if err := checkSlot(tx, b.ScheduledDate, *b.ScheduledTime, &employeeID, settings, b.ID); err != nil {
				return err
			}
		}
		b.AssignedEmployeeID = &employeeID
		return tx.Save(&b).Error
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ConfirmBooking marks a booking acknowledged by its employee
func (s *Store) ConfirmBooking(id uint) (*Booking, error) {
	return s.updateLifecycle(id, func(b *Booking) error {
		if b.Completed {
			return ErrCompletedImmutable
		}
		b.Confirmed = true
		return nil
	})
}

// CompleteBooking marks the physical handover done. Completed is terminal.
func (s *Store) CompleteBooking(id uint) (*Booking, error) {
	return s.updateLifecycle(id, func(b *Booking) error {
		b.Completed = true
		return nil
	})
}

func (s *Store) updateLifecycle(id uint, mutate func(*Booking) error) (*Booking, error) {
	var b Booking
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&b, id).Error; err != nil {
			return err
		}
		if err := mutate(&b); err != nil {
			return err
		}
		return tx.Save(&b).Error
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// checkSlot examines every timed booking on the date. A same-employee
// widened-window overlap is a hard conflict; independent of the employee,
// the number of overlapping returns across the whole fleet is capped by
// MaxConcurrentReturns.
func checkSlot(tx *gorm.DB, date, clock string, employeeID *string, settings models.AvailabilitySettings, excludeID uint) error {
	slotStart, err := availability.ParseClock(date, clock)
	if err != nil {
		return fmt.Errorf("invalid slot time %q: %w", clock, err)
	}
	window := time.Duration(settings.ReturnDurationMinutes+settings.BufferMinutes) * time.Minute
	slotEnd := slotStart.Add(window)

	q := tx.Where("scheduled_date = ? AND scheduled_time IS NOT NULL", date)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var sameDay []Booking
	if err := q.Find(&sameDay).Error; err != nil {
		return fmt.Errorf("fetch bookings: %w", err)
	}

	overlapping := 0
	for _, ex := range sameDay {
		exStart, err := availability.ParseClock(date, *ex.ScheduledTime)
		if err != nil {
			continue
		}
		if !availability.Overlaps(slotStart, slotEnd, exStart, exStart.Add(window)) {
			continue
		}
		overlapping++
		if employeeID != nil && ex.AssignedEmployeeID != nil && *ex.AssignedEmployeeID == *employeeID {
			return ErrSlotConflict
		}
	}
	if overlapping >= settings.MaxConcurrentReturns {
		return ErrCapacityReached
	}
	return nil
}
