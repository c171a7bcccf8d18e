package hubapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	reg              *prometheus.Registry
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	credentialTests  *prometheus.CounterVec
	installs         *prometheus.CounterVec
}

// Each App owns its registry so several can run in one process.
func newMetrics() *metrics {
	m := &metrics{
		reg: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_dispatch_total",
			Help: "Dispatched provider operations by outcome.",
		}, []string{"provider", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hub_dispatch_duration_seconds",
			Help:    "Provider call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		credentialTests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_credential_tests_total",
			Help: "Credential connection tests by final status.",
		}, []string{"integration", "status"}),
		installs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_installs_total",
			Help: "Install attempts by resulting status.",
		}, []string{"integration", "status"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.dispatches, m.dispatchDuration, m.credentialTests, m.installs,
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
