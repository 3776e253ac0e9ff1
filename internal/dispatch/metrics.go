package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emergency_dispatch",
		Name:      "delivery_attempts_total",
		Help:      "Channel delivery attempts by outcome.",
	}, []string{"channel", "status"})

	deliveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "emergency_dispatch",
		Name:      "delivery_duration_seconds",
		Help:      "Duration of a single channel delivery attempt.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"channel"})

	assignmentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emergency_dispatch",
		Name:      "assignment_outcomes_total",
		Help:      "Aggregate notification status of assignments after dispatch.",
	}, []string{"status"})
)
