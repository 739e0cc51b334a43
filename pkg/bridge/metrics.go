package bridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fastbridge/pkg/metrics"
)

const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeCanceled = "canceled"
)

// Metrics are the prometheus collectors of a Bridge. A nil *Metrics records
// nothing.
type Metrics struct {
	calls         *prometheus.CounterVec
	callDuration  prometheus.Histogram
	builds        prometheus.Counter
	buildErrors   prometheus.Counter
	responseBytes prometheus.Counter
}

// NewMetrics creates the bridge collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		calls: metrics.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "bridge",
			Name:      "calls_total",
			Help:      "Bridged calls by outcome (ok, error, canceled).",
		}, []string{"outcome"})),
		callDuration: metrics.Register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "bridge",
			Name:      "call_duration_seconds",
			Help:      "Time until the inner service produced its response head.",
			Buckets:   prometheus.DefBuckets,
		})),
		builds: metrics.Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "bridge",
			Name:      "builds_total",
			Help:      "Inner service instances built by the factory.",
		})),
		buildErrors: metrics.Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "bridge",
			Name:      "build_errors_total",
			Help:      "Factory invocations that failed.",
		})),
		responseBytes: metrics.Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "bridge",
			Name:      "response_bytes_total",
			Help:      "Response body bytes streamed to the server.",
		})),
	}
}

func (m *Metrics) observeCall(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(outcome).Inc()
	m.callDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeBuild(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.buildErrors.Inc()
		return
	}
	m.builds.Inc()
}

func (m *Metrics) addResponseBytes(n int) {
	if m == nil {
		return
	}
	m.responseBytes.Add(float64(n))
}
