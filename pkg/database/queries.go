package database

import "fmt"

// ContractsEndingOn returns the open contracts whose planned return date is
// the given day
func (s *Store) ContractsEndingOn(date string) ([]Contract, error) {
	var contracts []Contract
	if err := s.DB.Where("end_date = ? AND status = ?", date, "open").Find(&contracts).Error; err != nil {
		return nil, fmt.Errorf("fetch expiring contracts: %w", err)
	}
	return contracts, nil
}

// UnconfirmedBookingsOn returns bookings on a date that no employee has
// acknowledged yet
func (s *Store) UnconfirmedBookingsOn(date string) ([]Booking, error) {
	var bookings []Booking
	if err := s.DB.Where("scheduled_date = ? AND confirmed = ? AND completed = ?", date, false, false).
		Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("fetch unconfirmed bookings: %w", err)
	}
	return bookings, nil
}

// OverdueInvoices returns unpaid invoices whose due date lies before asOf
func (s *Store) OverdueInvoices(asOf string) ([]Invoice, error) {
	var invoices []Invoice
	if err := s.DB.Where("paid = ? AND due_date <> '' AND due_date < ?", false, asOf).
		Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("fetch overdue invoices: %w", err)
	}
	return invoices, nil
}

// DayReportRow is one line of the back-office day report
type DayReportRow struct {
	BookingID    uint
	Time         string
	ContractRef  string
	ClientName   string
	VehiclePlate string
	EmployeeName string
	Confirmed    bool
	Completed    bool
}

// DayReportRows returns the day's bookings joined with contract, client,
// vehicle and employee details, ordered by time
func (s *Store) DayReportRows(date string) ([]DayReportRow, error) {
	var rows []DayReportRow
	err := s.DB.Table("bookings").
		Select(`bookings.id as booking_id,
			coalesce(bookings.scheduled_time, '') as time,
			contracts.ref as contract_ref,
			clients.name as client_name,
			vehicles.plate as vehicle_plate,
			coalesce(employees.name, '') as employee_name,
			bookings.confirmed, bookings.completed`).
		Joins("join contracts on contracts.id = bookings.contract_id").
		Joins("join clients on clients.id = contracts.client_id").
		Joins("join vehicles on vehicles.id = contracts.vehicle_id").
		Joins("left join employees on employees.id = bookings.assigned_employee_id").
		Where("bookings.scheduled_date = ?", date).
		Order("time").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch day report: %w", err)
	}
	return rows, nil
}
