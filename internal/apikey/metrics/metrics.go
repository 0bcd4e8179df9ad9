package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	KeysIssued     prometheus.Counter
	KeysRevoked    prometheus.Counter
	VerifyAccepted prometheus.Counter
	VerifyRejected prometheus.Counter
	VerifyDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		KeysIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keymint_api_keys_issued_total",
			Help: "Total number of API keys issued",
		}),
		KeysRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keymint_api_keys_revoked_total",
			Help: "Total number of API keys revoked",
		}),
		VerifyAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keymint_verifications_accepted_total",
			Help: "Total number of accepted verification attempts",
		}),
		VerifyRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keymint_verifications_rejected_total",
			Help: "Total number of rejected verification attempts",
		}),
		VerifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "keymint_verify_duration_seconds",
			Help:    "Duration of Verify operations (bcrypt dominates the cost)",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) IncrementIssued() {
	m.KeysIssued.Inc()
}

func (m *Metrics) IncrementRevoked() {
	m.KeysRevoked.Inc()
}

func (m *Metrics) ObserveVerify(start time.Time, accepted bool) {
	if accepted {
		m.VerifyAccepted.Inc()
	} else {
		m.VerifyRejected.Inc()
	}
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}
