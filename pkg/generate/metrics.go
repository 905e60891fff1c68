package generate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts generated programs and failures.
type Metrics struct {
	programsTotal *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// NewMetrics creates the generator metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		programsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cncbits_programs_generated_total",
				Help: "Total number of G-code programs written",
			},
			[]string{"operation"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cncbits_generate_errors_total",
				Help: "Total number of failed generation requests",
			},
			[]string{"operation", "phase"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cncbits_generate_duration_seconds",
				Help:    "Time taken to resolve, render and write a program",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
			},
			[]string{"operation"},
		),
	}
	for _, c := range []prometheus.Collector{m.programsTotal, m.errorsTotal, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if err != nil {
		m.errorsTotal.WithLabelValues(operation, KindOf(err).Phase()).Inc()
		return
	}
	m.programsTotal.WithLabelValues(operation).Inc()
}
