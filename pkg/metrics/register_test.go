package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterReusesExisting(t *testing.T) {
	reg := prometheus.NewRegistry()
	opts := prometheus.CounterOpts{Namespace: Namespace, Name: "probe_total", Help: "probe"}

	first := Register(reg, prometheus.NewCounter(opts))
	second := Register(reg, prometheus.NewCounter(opts))
	if first != second {
		t.Fatalf("second registration did not return the existing collector")
	}
}

func TestRegisterNilRegisterer(t *testing.T) {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "unregistered_total", Help: "x"})
	if got := Register(nil, c); got != c {
		t.Fatalf("nil registerer should return the collector unchanged")
	}
}

func TestRegisterConflictPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg, prometheus.NewCounter(prometheus.CounterOpts{Name: "clash", Help: "a"}))
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on conflicting registration")
		}
	}()
	Register(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: "clash", Help: "b"}))
}
