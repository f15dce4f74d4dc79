package orm

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts repository operations per entity kind.
type Metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labcat",
			Subsystem: "orm",
			Name:      "operations_total",
			Help:      "Repository operations by entity, operation and result.",
		}, []string{"entity", "op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "labcat",
			Subsystem: "orm",
			Name:      "operation_duration_seconds",
			Help:      "Repository operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity", "op"}),
	}
	if reg != nil {
		reg.MustRegister(m.ops, m.duration)
	}
	return m
}

// Collectors returns the collectors so callers can register them elsewhere.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.ops, m.duration}
}

// OpsCounter returns the counter for one entity/op/result combination.
func (m *Metrics) OpsCounter(entity, op, result string) prometheus.Counter {
	return m.ops.WithLabelValues(entity, op, result)
}

func (m *Metrics) observe(entity, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(entity, op, resultLabel(err)).Inc()
	m.duration.WithLabelValues(entity, op).Observe(time.Since(start).Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrMissingField),
		errors.Is(err, ErrUnknownAssociation), errors.Is(err, ErrNoSelfJoin):
		return "invalid"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
