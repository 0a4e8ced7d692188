package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "didauday",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "didauday",
			Name:      "bookings_created_total",
			Help:      "Carts accepted and turned into pending bookings.",
		},
	)

	bookingsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "didauday",
			Name:      "bookings_rejected_total",
			Help:      "Carts rejected, by item type that failed availability.",
		},
		[]string{"item_type"},
	)

	paymentsCaptured = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "didauday",
			Name:      "payments_captured_total",
			Help:      "Payment sessions captured.",
		},
	)

	payouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "didauday",
			Name:      "payouts_total",
			Help:      "Partner payouts by outcome.",
		},
		[]string{"outcome"}, // succeeded, retried, failed
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingsCreated, bookingsRejected, paymentsCaptured, payouts)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncBookingCreated() {
	bookingsCreated.Inc()
}

func IncBookingRejected(itemType string) {
	bookingsRejected.WithLabelValues(itemType).Inc()
}

func IncPaymentCaptured() {
	paymentsCaptured.Inc()
}

func IncPayout(outcome string) {
	payouts.WithLabelValues(outcome).Inc()
}
