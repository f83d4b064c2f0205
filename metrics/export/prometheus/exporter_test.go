package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskforge/authrbac"
)

type fakeSource struct {
	snapshot authrbac.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() authrbac.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func serveOnce(t *testing.T, source metricsSource) string {
	t.Helper()

	registry := promclient.NewRegistry()
	registry.MustRegister(NewCollectorFromSource(source))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	return rec.Body.String()
}

func TestCollectorExposesCounters(t *testing.T) {
	out := serveOnce(t, fakeSource{
		snapshot: authrbac.MetricsSnapshot{
			Counters: map[authrbac.MetricID]uint64{
				authrbac.MetricLoginSuccess:     7,
				authrbac.MetricPermissionDenied: 3,
			},
		},
		dropped: 2,
	})

	for _, want := range []string{
		"authrbac_login_success_total 7",
		"authrbac_permission_denied_total 3",
		"authrbac_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in exposition:\n%s", want, out)
		}
	}
}

func TestCollectorExposesZeroValues(t *testing.T) {
	out := serveOnce(t, fakeSource{
		snapshot: authrbac.MetricsSnapshot{Counters: map[authrbac.MetricID]uint64{}},
	})

	if !strings.Contains(out, "authrbac_register_success_total 0") {
		t.Fatalf("zero-valued counters must still be exposed:\n%s", out)
	}
}

func TestCollectorDescribeCoversAllMetrics(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{})

	descs := make(chan *promclient.Desc, 64)
	c.Describe(descs)
	close(descs)

	n := 0
	for range descs {
		n++
	}
	if want := len(authrbac.MetricIDs()) + 1; n != want {
		t.Fatalf("described %d metrics, want %d", n, want)
	}
}
