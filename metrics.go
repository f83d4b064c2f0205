package authrbac

import "sync/atomic"

// MetricID defines a public type used by authrbac APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricRegisterSuccess is an exported constant or variable used by the authentication engine.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterFailure is an exported constant or variable used by the authentication engine.
	MetricRegisterFailure
	// MetricLoginSuccess is an exported constant or variable used by the authentication engine.
	MetricLoginSuccess
	// MetricLoginFailure is an exported constant or variable used by the authentication engine.
	MetricLoginFailure
	// MetricLoginRateLimited is an exported constant or variable used by the authentication engine.
	MetricLoginRateLimited
	// MetricLogout is an exported constant or variable used by the authentication engine.
	MetricLogout
	// MetricRefreshSuccess is an exported constant or variable used by the authentication engine.
	MetricRefreshSuccess
	// MetricRefreshInvalid is an exported constant or variable used by the authentication engine.
	MetricRefreshInvalid
	// MetricPasswordResetRequest is an exported constant or variable used by the authentication engine.
	MetricPasswordResetRequest
	// MetricPasswordResetSuccess is an exported constant or variable used by the authentication engine.
	MetricPasswordResetSuccess
	// MetricPasswordResetFailure is an exported constant or variable used by the authentication engine.
	MetricPasswordResetFailure
	// MetricPasswordChangeSuccess is an exported constant or variable used by the authentication engine.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeFailure is an exported constant or variable used by the authentication engine.
	MetricPasswordChangeFailure
	// MetricPasswordSetupSuccess is an exported constant or variable used by the authentication engine.
	MetricPasswordSetupSuccess
	// MetricPasswordSetupFailure is an exported constant or variable used by the authentication engine.
	MetricPasswordSetupFailure
	// MetricPermissionGranted is an exported constant or variable used by the authentication engine.
	MetricPermissionGranted
	// MetricPermissionDenied is an exported constant or variable used by the authentication engine.
	MetricPermissionDenied
	// MetricTokenRejected is an exported constant or variable used by the authentication engine.
	MetricTokenRejected

	metricCount
)

var metricNames = [metricCount]string{
	MetricRegisterSuccess:       "authrbac_register_success_total",
	MetricRegisterFailure:       "authrbac_register_failure_total",
	MetricLoginSuccess:          "authrbac_login_success_total",
	MetricLoginFailure:          "authrbac_login_failure_total",
	MetricLoginRateLimited:      "authrbac_login_rate_limited_total",
	MetricLogout:                "authrbac_logout_total",
	MetricRefreshSuccess:        "authrbac_refresh_success_total",
	MetricRefreshInvalid:        "authrbac_refresh_invalid_total",
	MetricPasswordResetRequest:  "authrbac_password_reset_request_total",
	MetricPasswordResetSuccess:  "authrbac_password_reset_success_total",
	MetricPasswordResetFailure:  "authrbac_password_reset_failure_total",
	MetricPasswordChangeSuccess: "authrbac_password_change_success_total",
	MetricPasswordChangeFailure: "authrbac_password_change_failure_total",
	MetricPasswordSetupSuccess:  "authrbac_password_setup_success_total",
	MetricPasswordSetupFailure:  "authrbac_password_setup_failure_total",
	MetricPermissionGranted:     "authrbac_permission_granted_total",
	MetricPermissionDenied:      "authrbac_permission_denied_total",
	MetricTokenRejected:         "authrbac_token_rejected_total",
}

// Name describes the name operation and its observable behavior.
//
// Name does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (id MetricID) Name() string {
	if id >= metricCount {
		return "authrbac_unknown"
	}
	return metricNames[id]
}

// Metrics defines a public type used by authrbac APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled  bool
	counters [metricCount]atomic.Uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc describes the inc operation and its observable behavior.
//
// Inc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Get describes the get operation and its observable behavior.
//
// Get does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id >= metricCount {
		return 0
	}
	return m.counters[id].Load()
}

// MetricsSnapshot defines a public type used by authrbac APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Snapshot() MetricsSnapshot {
	out := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricCount)}
	if m == nil {
		return out
	}
	for id := MetricID(0); id < metricCount; id++ {
		out.Counters[id] = m.counters[id].Load()
	}
	return out
}

// MetricIDs describes the metricids operation and its observable behavior.
//
// MetricIDs does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func MetricIDs() []MetricID {
	out := make([]MetricID, 0, metricCount)
	for id := MetricID(0); id < metricCount; id++ {
		out = append(out, id)
	}
	return out
}
