package database

import (
	"testing"

	"github.com/rentalops/backoffice-api-go/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	Migrate(db)
	return NewStore(db)
}

func strPtr(s string) *string { return &s }

func TestUpsertShiftsKeyedOnEmployeeAndDate(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.UpsertShifts([]models.ShiftEntry{
		{EmployeeID: "e1", WorkDate: "2025-06-10", StartTime: "09:00", EndTime: "17:00", IsAvailable: true},
	}))
	require.NoError(t, s.UpsertShifts([]models.ShiftEntry{
		{EmployeeID: "e1", WorkDate: "2025-06-10", StartTime: "10:00", EndTime: "18:00", IsAvailable: true},
		{EmployeeID: "e1", WorkDate: "2025-06-11", StartTime: "09:00", EndTime: "17:00", IsAvailable: true},
	}))

	var count int64
	s.DB.Model(&Shift{}).Count(&count)
	assert.Equal(t, int64(2), count)

	shifts, err := s.ShiftsForDate("2025-06-10")
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, "10:00", shifts[0].StartTime)
	assert.Equal(t, "18:00", shifts[0].EndTime)
}

func TestShiftsForDateFiltersUnavailable(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.DB.Create(&Employee{ID: "e1", Name: "Ana"}).Error)

	require.NoError(t, s.UpsertShifts([]models.ShiftEntry{
		{EmployeeID: "e1", WorkDate: "2025-06-10", StartTime: "09:00", EndTime: "17:00", IsAvailable: true},
		{EmployeeID: "e2", WorkDate: "2025-06-10", StartTime: "09:00", EndTime: "17:00", IsAvailable: false},
	}))

	shifts, err := s.ShiftsForDate("2025-06-10")
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, "e1", shifts[0].EmployeeID)
	assert.Equal(t, "Ana", shifts[0].EmployeeName)
}

func TestLoadSettingsDefaultsWhenAbsent(t *testing.T) {
	s := testStore(t)

	settings, err := s.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAvailabilitySettings(), settings)

	require.NoError(t, s.SaveSettings(models.AvailabilitySettings{
		MaxConcurrentReturns:  5,
		ReturnDurationMinutes: 45,
		BufferMinutes:         10,
	}))
	settings, err = s.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 5, settings.MaxConcurrentReturns)
	assert.Equal(t, 45, settings.ReturnDurationMinutes)
	assert.Equal(t, 10, settings.BufferMinutes)

	// saving again keeps a single row
	require.NoError(t, s.SaveSettings(models.AvailabilitySettings{MaxConcurrentReturns: 2, ReturnDurationMinutes: 30, BufferMinutes: 15}))
	var count int64
	s.DB.Model(&Settings{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSeedSettingsDoesNotOverwrite(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.SeedSettings(models.AvailabilitySettings{ReturnDurationMinutes: 40}))
	settings, err := s.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 40, settings.ReturnDurationMinutes)
	// unset fields filled from defaults
	assert.Equal(t, 3, settings.MaxConcurrentReturns)

	// a second seed is a no-op once a row exists
	require.NoError(t, s.SeedSettings(models.AvailabilitySettings{ReturnDurationMinutes: 90}))
	settings, err = s.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 40, settings.ReturnDurationMinutes)
}

func TestCreateBookingCheckedRejectsEmployeeConflict(t *testing.T) {
	s := testStore(t)
	settings := models.DefaultAvailabilitySettings()

	first := &Booking{ContractID: 1, AssignedEmployeeID: strPtr("e1"), ScheduledDate: "2025-06-10", ScheduledTime: strPtr("10:00")}
	require.NoError(t, s.CreateBookingChecked(first, settings))

	// 10:30 widened overlaps 10:00's widened window for the same employee
	conflicting := &Booking{ContractID: 2, AssignedEmployeeID: strPtr("e1"), ScheduledDate: "2025-06-10", ScheduledTime: strPtr("10:30")}
	err := s.CreateBookingChecked(conflicting, settings)
	assert.ErrorIs(t, err, ErrSlotConflict)

	// a different employee in the same window is fine
	other := &Booking{ContractID: 3, AssignedEmployeeID: strPtr("e2"), ScheduledDate: "2025-06-10", ScheduledTime: strPtr("10:30")}
	require.NoError(t, s.CreateBookingChecked(other, settings))

	// adjacent windows do not conflict
	adjacent := &Booking{ContractID: 4, AssignedEmployeeID: strPtr("e1"), ScheduledDate: "2025-06-10", ScheduledTime: strPtr("10:45")}
	require.NoError(t, s.CreateBookingChecked(adjacent, settings))
}

func TestCreateBookingCheckedEnforcesConcurrentCap(t *testing.T) {
	s := testStore(t)
	settings := models.AvailabilitySettings{MaxConcurrentReturns: 2, ReturnDurationMinutes: 30, BufferMinutes: 15}

	for i, emp := range []string{"e1", "e2"} {
		b := &Booking{ContractID: uint(i + 1), AssignedEmployeeID: strPtr(emp), ScheduledDate: "2025-06-10", ScheduledTime: strPtr("10:00")}
		require.NoError(t, s.CreateBookingChecked(b, settings))
	}

	third := &Booking{ContractID: 3, AssignedEmployeeID: strPtr("e3"), ScheduledDate: "2025-06-10", ScheduledTime: strPtr("10:15")}
	err := s.CreateBookingChecked(third, settings)
	assert.ErrorIs(t, err, ErrCapacityReached)

	// the cap is per overlapping window, not per day
	later := &Booking{ContractID: 4, AssignedEmployeeID: strPtr("e3"), ScheduledDate: "2025-06-10", ScheduledTime: strPtr("15:00")}
	require.NoError(t, s.CreateBookingChecked(later, settings))
}

func TestBookingLifecycle(t *testing.T) {
	s := testStore(t)
	settings := models.DefaultAvailabilitySettings()

	b := &Booking{ContractID: 1, ScheduledDate: "2025-06-10", ScheduledTime: strPtr("10:00")}
	require.NoError(t, s.CreateBookingChecked(b, settings))

	assigned, err := s.AssignBooking(b.ID, "e1", settings)
	require.NoError(t, err)
	require.NotNil(t, assigned.AssignedEmployeeID)
	assert.Equal(t, "e1", *assigned.AssignedEmployeeID)

	confirmed, err := s.ConfirmBooking(b.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.Confirmed)

	completed, err := s.CompleteBooking(b.ID)
	require.NoError(t, err)
	assert.True(t, completed.Completed)

	// completed is terminal
	_, err = s.AssignBooking(b.ID, "e2", settings)
	assert.ErrorIs(t, err, ErrCompletedImmutable)
	_, err = s.ConfirmBooking(b.ID)
	assert.ErrorIs(t, err, ErrCompletedImmutable)
}

func TestAssignBookingRechecksSlot(t *testing.T) {
	s := testStore(t)
	settings := models.DefaultAvailabilitySettings()

	existing := &Booking{ContractID: 1, AssignedEmployeeID: strPtr("e1"), ScheduledDate: "2025-06-10", ScheduledTime: strPtr("10:00")}
	require.NoError(t, s.CreateBookingChecked(existing, settings))

	unassigned := &Booking{ContractID: 2, ScheduledDate: "2025-06-10", ScheduledTime: strPtr("10:30")}
	require.NoError(t, s.CreateBookingChecked(unassigned, settings))

	_, err := s.AssignBooking(unassigned.ID, "e1", settings)
	assert.ErrorIs(t, err, ErrSlotConflict)

	_, err = s.AssignBooking(unassigned.ID, "e2", settings)
	require.NoError(t, err)
}

func TestAssignedBookingsForDateSkipsUnassigned(t *testing.T) {
	s := testStore(t)
	settings := models.DefaultAvailabilitySettings()

	require.NoError(t, s.CreateBookingChecked(&Booking{ContractID: 1, AssignedEmployeeID: strPtr("e1"), ScheduledDate: "2025-06-10", ScheduledTime: strPtr("10:00")}, settings))
	require.NoError(t, s.CreateBookingChecked(&Booking{ContractID: 2, ScheduledDate: "2025-06-10", ScheduledTime: strPtr("11:00")}, settings))
	require.NoError(t, s.CreateBookingChecked(&Booking{ContractID: 3, AssignedEmployeeID: strPtr("e1"), ScheduledDate: "2025-06-11", ScheduledTime: strPtr("10:00")}, settings))

	entries, err := s.AssignedBookingsForDate("2025-06-10")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "1", entries[0].ContractID)
}
