package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rentalops/backoffice-api-go/pkg/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func senderConfig(url string) SenderConfig {
	cfg := DefaultSenderConfig(url, "token-123")
	cfg.RatePerSecond = 1000
	cfg.Burst = 1000
	cfg.RetryDelays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	return cfg
}

func TestSenderDeliversEvent(t *testing.T) {
	var got Event
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewWebhookSender(senderConfig(srv.URL), zerolog.Nop())
	err := s.Send(context.Background(), Event{
		Type:       "booking.unconfirmed",
		OccurredAt: time.Now(),
		Payload:    map[string]interface{}{"booking_id": 7},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer token-123", auth)
	assert.Equal(t, "booking.unconfirmed", got.Type)
}

func TestSenderRetriesOnServerError(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewWebhookSender(senderConfig(srv.URL), zerolog.Nop())
	err := s.Send(context.Background(), Event{Type: "contract.expiring"})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestSenderGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := senderConfig(srv.URL)
	cfg.MaxRetries = 2
	s := NewWebhookSender(cfg, zerolog.Nop())
	err := s.Send(context.Background(), Event{Type: "invoice.overdue"})
	assert.Error(t, err)
}

func TestSenderHonorsRetryAfter(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	var gap time.Duration
	var first time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			first = time.Now()
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		gap = time.Since(first)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewWebhookSender(senderConfig(srv.URL), zerolog.Nop())
	err := s.Send(context.Background(), Event{Type: "contract.expiring"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, gap, 900*time.Millisecond)
}

func TestSenderWithoutURLDropsSilently(t *testing.T) {
	s := NewWebhookSender(senderConfig(""), zerolog.Nop())
	assert.NoError(t, s.Send(context.Background(), Event{Type: "noop"}))
}

type stubLedger struct {
	contracts []database.Contract
	bookings  []database.Booking
	invoices  []database.Invoice
}

func (l *stubLedger) ContractsEndingOn(string) ([]database.Contract, error)   { return l.contracts, nil }
func (l *stubLedger) UnconfirmedBookingsOn(string) ([]database.Booking, error) { return l.bookings, nil }
func (l *stubLedger) OverdueInvoices(string) ([]database.Invoice, error)       { return l.invoices, nil }

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Send(_ context.Context, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func TestJobSchedulerRunNow(t *testing.T) {
	emp := "e1"
	clock := "10:00"
	ledger := &stubLedger{
		contracts: []database.Contract{{ID: 1, Ref: "C-001", ClientID: 2, VehicleID: 3, EndDate: "2025-06-13"}},
		bookings:  []database.Booking{{ID: 4, ContractID: 1, ScheduledDate: "2025-06-11", ScheduledTime: &clock, AssignedEmployeeID: &emp}},
		invoices:  []database.Invoice{{ID: 5, Ref: "I-001", ContractID: 1, AmountCents: 12500, DueDate: "2025-06-01"}},
	}
	notifier := &recordingNotifier{}

	sched, err := NewJobScheduler(DefaultSchedulerConfig(), ledger, notifier, zerolog.Nop())
	require.NoError(t, err)

	sched.RunNow(context.Background())

	require.Len(t, notifier.events, 3)
	types := []string{notifier.events[0].Type, notifier.events[1].Type, notifier.events[2].Type}
	assert.Equal(t, []string{"contract.expiring", "booking.unconfirmed", "invoice.overdue"}, types)
}

func TestJobSchedulerStartStop(t *testing.T) {
	sched, err := NewJobScheduler(SchedulerConfig{
		Timezone:      "UTC",
		DailyHour:     3,
		CheckInterval: 10 * time.Millisecond,
	}, &stubLedger{}, &recordingNotifier{}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()

	// wait for the loop to come up before stopping it
	require.Eventually(t, sched.IsRunning, time.Second, 5*time.Millisecond)
	sched.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, sched.IsRunning())
}

func TestNewJobSchedulerRejectsBadTimezone(t *testing.T) {
	_, err := NewJobScheduler(SchedulerConfig{Timezone: "Mars/Olympus"}, &stubLedger{}, &recordingNotifier{}, zerolog.Nop())
	assert.Error(t, err)
}
