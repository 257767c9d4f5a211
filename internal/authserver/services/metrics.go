package services

import (
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts lifecycle operations by outcome. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ops *prometheus.CounterVec
}

// NewMetrics registers the auth operation counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "operations_total",
			Help:      "Token lifecycle operations by operation and result code.",
		}, []string{"operation", "result"}),
	}
	reg.MustRegister(m.ops)
	return m
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = common.Code(err)
	}
	m.ops.WithLabelValues(op, result).Inc()
}
