package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GeneratorRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "practice_generator_requests_total",
			Help: "Total number of language model requests",
		},
		[]string{"kind", "outcome"},
	)

	GeneratorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "practice_generator_duration_seconds",
			Help:    "Duration of language model requests",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"kind"},
	)

	SessionsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "practice_sessions_completed_total",
			Help: "Total number of daily sessions completed",
		},
	)

	VerificationMismatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "practice_verification_mismatches_total",
			Help: "Total number of failed transcription checks",
		},
	)
)

func init() {
	prometheus.MustRegister(GeneratorRequests, GeneratorDuration, SessionsCompleted, VerificationMismatches)
}

// ObserveGenerator records one generator call of the given kind
func ObserveGenerator(kind string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	GeneratorRequests.WithLabelValues(kind, outcome).Inc()
	GeneratorDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// Handler exposes the registered collectors
func Handler() http.Handler {
	return promhttp.Handler()
}
