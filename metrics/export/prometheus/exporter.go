package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskforge/authrbac"
)

type metricsSource interface {
	MetricsSnapshot() authrbac.MetricsSnapshot
	AuditDropped() uint64
}

var counterHelp = map[authrbac.MetricID]string{
	authrbac.MetricRegisterSuccess:       "Successful registrations.",
	authrbac.MetricRegisterFailure:       "Failed registrations.",
	authrbac.MetricLoginSuccess:          "Successful login attempts.",
	authrbac.MetricLoginFailure:          "Failed login attempts.",
	authrbac.MetricLoginRateLimited:      "Rate-limited login attempts.",
	authrbac.MetricLogout:                "Logout operations.",
	authrbac.MetricRefreshSuccess:        "Successful token rotations.",
	authrbac.MetricRefreshInvalid:        "Rejected refresh attempts.",
	authrbac.MetricPasswordResetRequest:  "Password reset requests.",
	authrbac.MetricPasswordResetSuccess:  "Successful password resets.",
	authrbac.MetricPasswordResetFailure:  "Failed password resets.",
	authrbac.MetricPasswordChangeSuccess: "Successful password changes.",
	authrbac.MetricPasswordChangeFailure: "Failed password changes.",
	authrbac.MetricPasswordSetupSuccess:  "Successful password setups.",
	authrbac.MetricPasswordSetupFailure:  "Failed password setups.",
	authrbac.MetricPermissionGranted:     "Granted permission checks.",
	authrbac.MetricPermissionDenied:      "Denied permission checks.",
	authrbac.MetricTokenRejected:         "Rejected access tokens.",
}

// Collector implements prometheus.Collector over an engine's metrics
// snapshot. Collection is read-only; the engine counters stay the
// source of truth.
type Collector struct {
	source  metricsSource
	descs   map[authrbac.MetricID]*prometheus.Desc
	dropped *prometheus.Desc
}

// NewCollector creates a collector reading from the given [authrbac.Engine].
func NewCollector(engine *authrbac.Engine) *Collector {
	return NewCollectorFromSource(engine)
}

// NewCollectorFromSource is NewCollector over a custom snapshot source.
func NewCollectorFromSource(source metricsSource) *Collector {
	descs := make(map[authrbac.MetricID]*prometheus.Desc, len(counterHelp))
	for _, id := range authrbac.MetricIDs() {
		help := counterHelp[id]
		if help == "" {
			help = "authrbac counter."
		}
		descs[id] = prometheus.NewDesc(id.Name(), help, nil, nil)
	}
	return &Collector{
		source: source,
		descs:  descs,
		dropped: prometheus.NewDesc(
			"authrbac_audit_dropped_total",
			"Audit events dropped due to dispatcher backpressure.",
			nil, nil,
		),
	}
}

// Describe describes the describe operation and its observable behavior.
//
// Describe does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range c.descs {
		ch <- desc
	}
	ch <- c.dropped
}

// Collect describes the collect operation and its observable behavior.
//
// Collect does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.source == nil {
		return
	}

	snapshot := c.source.MetricsSnapshot()
	for id, desc := range c.descs {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(snapshot.Counters[id]))
	}
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(c.source.AuditDropped()))
}

// Handler mounts the collector on a private registry and serves it in
// Prometheus exposition format.
func Handler(engine *authrbac.Engine) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(engine))
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
