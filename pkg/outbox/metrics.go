package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PromMetrics struct {
	dispatched prometheus.Counter
	failed     prometheus.Counter
}

func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	f := promauto.With(reg)
	return &PromMetrics{
		dispatched: f.NewCounter(prometheus.CounterOpts{
			Name: "outbox_events_dispatched_total",
			Help: "Outbox events published to Kafka.",
		}),
		failed: f.NewCounter(prometheus.CounterOpts{
			Name: "outbox_dispatch_failures_total",
			Help: "Outbox dispatch attempts that failed.",
		}),
	}
}

func (m *PromMetrics) Dispatched(n int) { m.dispatched.Add(float64(n)) }

func (m *PromMetrics) Failed() { m.failed.Inc() }
