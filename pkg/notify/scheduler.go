package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rentalops/backoffice-api-go/pkg/database"
	"github.com/rentalops/backoffice-api-go/pkg/metrics"
	"github.com/rs/zerolog"
)

// Ledger is the data the scheduled jobs read. database.Store satisfies it.
type Ledger interface {
	ContractsEndingOn(date string) ([]database.Contract, error)
	UnconfirmedBookingsOn(date string) ([]database.Booking, error)
	OverdueInvoices(asOf string) ([]database.Invoice, error)
}

// SchedulerConfig holds configuration for the daily notification jobs.
type SchedulerConfig struct {
	// Timezone for scheduling (e.g., "Europe/Berlin")
	Timezone string
	// DailyHour is the hour (0-23) when jobs run.
	DailyHour int
	// DailyMinute is the minute (0-59) when jobs run.
	DailyMinute int
	// CheckInterval is how often to check if it's time to run.
	CheckInterval time.Duration
	// ContractNoticeDays is how many days ahead expiring contracts are announced.
	ContractNoticeDays int
}

// DefaultSchedulerConfig returns the default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Timezone:           "UTC",
		DailyHour:          8,
		DailyMinute:        0,
		CheckInterval:      1 * time.Minute,
		ContractNoticeDays: 3,
	}
}

// JobScheduler runs the daily notification jobs: expiring contracts,
// unconfirmed next-day bookings, and overdue invoices.
type JobScheduler struct {
	config      SchedulerConfig
	ledger      Ledger
	notifier    Notifier
	location    *time.Location
	logger      zerolog.Logger
	mu          sync.Mutex
	lastRunDate string // YYYY-MM-DD of last run
	running     bool
	stopCh      chan struct{}
}

// NewJobScheduler creates a scheduler over the given ledger and notifier.
func NewJobScheduler(config SchedulerConfig, ledger Ledger, notifier Notifier, logger zerolog.Logger) (*JobScheduler, error) {
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, err
	}
	return &JobScheduler{
		config:   config,
		ledger:   ledger,
		notifier: notifier,
		location: loc,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins the scheduler loop.
func (s *JobScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info().Str("timezone", s.config.Timezone).
		Int("hour", s.config.DailyHour).Int("minute", s.config.DailyMinute).
		Msg("notification job scheduler started")

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("job scheduler stopped by context")
			return
		case <-s.stopCh:
			s.logger.Info().Msg("job scheduler stopped")
			return
		case <-ticker.C:
			s.checkAndRun(ctx)
		}
	}
}

// Stop stops the scheduler.
func (s *JobScheduler) Stop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()
}

// IsRunning returns whether the scheduler loop is active.
func (s *JobScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow forces an immediate run of all jobs.
func (s *JobScheduler) RunNow(ctx context.Context) {
	s.logger.Info().Msg("manual job run triggered")
	s.runJobs(ctx, time.Now().In(s.location))
}

func (s *JobScheduler) checkAndRun(ctx context.Context) {
	now := time.Now().In(s.location)
	today := now.Format("2006-01-02")

	s.mu.Lock()
	alreadyRan := s.lastRunDate == today
	s.mu.Unlock()

	if alreadyRan {
		return
	}
	if now.Hour() != s.config.DailyHour || now.Minute() != s.config.DailyMinute {
		return
	}

	s.mu.Lock()
	s.lastRunDate = today
	s.mu.Unlock()

	s.runJobs(ctx, now)
}

func (s *JobScheduler) runJobs(ctx context.Context, now time.Time) {
	start := time.Now()
	s.expiringContracts(ctx, now)
	s.unconfirmedBookings(ctx, now)
	s.overdueInvoices(ctx, now)
	s.logger.Info().Dur("duration", time.Since(start)).Msg("daily jobs processed")
}

// expiringContracts announces contracts whose planned return date is
// ContractNoticeDays ahead.
func (s *JobScheduler) expiringContracts(ctx context.Context, now time.Time) {
	metrics.IncJobRun("expiring_contracts")
	target := now.AddDate(0, 0, s.config.ContractNoticeDays).Format("2006-01-02")

	contracts, err := s.ledger.ContractsEndingOn(target)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch expiring contracts")
		return
	}
	for _, c := range contracts {
		event := Event{
			Type:       "contract.expiring",
			OccurredAt: now,
			Payload: map[string]interface{}{
				"contract_id": c.ID,
				"ref":         c.Ref,
				"client_id":   c.ClientID,
				"vehicle_id":  c.VehicleID,
				"end_date":    c.EndDate,
			},
		}
		if err := s.notifier.Send(ctx, event); err != nil {
			s.logger.Error().Err(err).Uint("contract_id", c.ID).Msg("expiring-contract notification failed")
		}
	}
}

// unconfirmedBookings reminds about tomorrow's bookings that no employee
// has acknowledged yet.
func (s *JobScheduler) unconfirmedBookings(ctx context.Context, now time.Time) {
	metrics.IncJobRun("unconfirmed_bookings")
	tomorrow := now.AddDate(0, 0, 1).Format("2006-01-02")

	bookings, err := s.ledger.UnconfirmedBookingsOn(tomorrow)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch unconfirmed bookings")
		return
	}
	for _, b := range bookings {
		payload := map[string]interface{}{
			"booking_id":     b.ID,
			"contract_id":    b.ContractID,
			"scheduled_date": b.ScheduledDate,
		}
		if b.ScheduledTime != nil {
			payload["scheduled_time"] = *b.ScheduledTime
		}
		if b.AssignedEmployeeID != nil {
			payload["assigned_employee_id"] = *b.AssignedEmployeeID
		}
		event := Event{Type: "booking.unconfirmed", OccurredAt: now, Payload: payload}
		if err := s.notifier.Send(ctx, event); err != nil {
			s.logger.Error().Err(err).Uint("booking_id", b.ID).Msg("unconfirmed-booking notification failed")
		}
	}
}

// overdueInvoices announces unpaid invoices past their due date.
func (s *JobScheduler) overdueInvoices(ctx context.Context, now time.Time) {
	metrics.IncJobRun("overdue_invoices")
	asOf := now.Format("2006-01-02")

	invoices, err := s.ledger.OverdueInvoices(asOf)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch overdue invoices")
		return
	}
	for _, inv := range invoices {
		event := Event{
			Type:       "invoice.overdue",
			OccurredAt: now,
			Payload: map[string]interface{}{
				"invoice_id":   inv.ID,
				"ref":          inv.Ref,
				"contract_id":  inv.ContractID,
				"amount_cents": inv.AmountCents,
				"due_date":     inv.DueDate,
			},
		}
		if err := s.notifier.Send(ctx, event); err != nil {
			s.logger.Error().Err(err).Uint("invoice_id", inv.ID).Msg("overdue-invoice notification failed")
		}
	}
}
