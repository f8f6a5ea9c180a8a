package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "massagebook"

var (
	once sync.Once

	wizardTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wizard_transitions_total",
			Help:      "Count of wizard step changes.",
		},
		[]string{"from", "to"},
	)

	bookingSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_submissions_total",
			Help:      "Count of booking submissions by status.",
		},
		[]string{"status"},
	)

	slotFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_fetches_total",
			Help:      "Count of availability fetches by result.",
		},
		[]string{"result"},
	)

	slotFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_fetch_duration_seconds",
			Help:      "Latency of availability fetches.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	errorsLogged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_logged_total",
			Help:      "Count of error records by category.",
		},
		[]string{"category"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Count of requests rejected by the rate limiter.",
		},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live wizard sessions.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			wizardTransitions,
			bookingSubmissions,
			slotFetches,
			slotFetchDuration,
			errorsLogged,
			rateLimited,
			activeSessions,
		)
	})
}

func IncWizardTransition(from, to string) {
	wizardTransitions.WithLabelValues(from, to).Inc()
}

func IncBookingSubmission(status string) {
	bookingSubmissions.WithLabelValues(status).Inc()
}

func ObserveSlotFetch(result string, took time.Duration) {
	slotFetches.WithLabelValues(result).Inc()
	slotFetchDuration.Observe(took.Seconds())
}

func IncErrorLogged(category string) {
	errorsLogged.WithLabelValues(category).Inc()
}

func IncRateLimited() {
	rateLimited.Inc()
}

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
