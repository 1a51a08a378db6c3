package quota

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the enforcer's Prometheus instrumentation.
type metrics struct {
	decisions *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quotakit",
				Name:      "admission_decisions_total",
				Help:      "Admission decisions by operation and result (admitted, denial reason, or fault).",
			},
			[]string{"operation", "result"},
		),
	}
	reg.MustRegister(m.decisions)
	return m
}

// observe records one admission outcome. Safe to call without metrics
// configured.
func (e *Enforcer) observe(op Operation, result string) {
	if e.metrics == nil {
		return
	}
	e.metrics.decisions.WithLabelValues(string(op), result).Inc()
}
