package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dmehra2102/stock-inbox/internal/stock/domain"
)

type Metrics struct {
	outcomes    *prometheus.CounterVec
	duration    prometheus.Histogram
	retries     prometheus.Counter
	deadLetters *prometheus.CounterVec
}

// New registers the consumer metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_consumer_outcomes_total",
			Help: "Order events handled, by outcome",
		}, []string{"outcome"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "stock_consumer_processing_seconds",
			Help:    "Time taken to handle one order event",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}),
		retries: f.NewCounter(prometheus.CounterOpts{
			Name: "stock_consumer_retries_total",
			Help: "Redelivery attempts after technical failures",
		}),
		deadLetters: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_consumer_dead_letters_total",
			Help: "Messages moved to the dead-letter topic, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) ObserveOutcome(kind domain.OutcomeKind, elapsed time.Duration) {
	m.outcomes.WithLabelValues(string(kind)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) Retry() {
	m.retries.Inc()
}

func (m *Metrics) DeadLetter(reason string) {
	m.deadLetters.WithLabelValues(reason).Inc()
}
