package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	availabilityChecks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rental_backoffice",
			Name:      "availability_checks_total",
			Help:      "Count of availability computations served.",
		},
	)

	availabilityCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rental_backoffice",
			Name:      "availability_candidates",
			Help:      "Number of candidates returned per availability check.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental_backoffice",
			Name:      "booking_created_total",
			Help:      "Count of booking commit attempts by outcome.",
		},
		[]string{"outcome"},
	)

	webhooksSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental_backoffice",
			Name:      "webhooks_sent_total",
			Help:      "Count of webhook deliveries by event and status.",
		},
		[]string{"event", "status"},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental_backoffice",
			Name:      "job_runs_total",
			Help:      "Count of scheduled job executions by job name.",
		},
		[]string{"job"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental_backoffice",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			availabilityChecks, availabilityCandidates, bookingCreated,
			webhooksSent, jobRuns, httpRequests,
		)
	})
}

func IncAvailabilityCheck(candidates int) {
	availabilityChecks.Inc()
	availabilityCandidates.Observe(float64(candidates))
}

func IncBookingCreated(outcome string) {
	bookingCreated.WithLabelValues(outcome).Inc()
}

func IncWebhookSent(event, status string) {
	webhooksSent.WithLabelValues(event, status).Inc()
}

func IncJobRun(job string) {
	jobRuns.WithLabelValues(job).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
