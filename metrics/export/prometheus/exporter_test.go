package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goTrust "github.com/MrEthical07/goTrust"
)

type fakeSource struct {
	snapshot goTrust.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goTrust.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goTrust.MetricsSnapshot{
			Counters:   map[goTrust.MetricID]uint64{},
			Histograms: map[goTrust.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersAndHistogram(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goTrust.MetricsSnapshot{
			Counters: map[goTrust.MetricID]uint64{
				goTrust.MetricLoginSuccess:      7,
				goTrust.MetricForceLogoutPushed: 2,
			},
			Histograms: map[goTrust.MetricID][]uint64{
				goTrust.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"gotrust_login_success_total 7",
		"gotrust_force_logout_pushed_total 2",
		"gotrust_ban_applied_total 0",
		"# TYPE gotrust_validate_latency_seconds histogram",
		`gotrust_validate_latency_seconds_bucket{le="0.005"} 1`,
		`gotrust_validate_latency_seconds_bucket{le="+Inf"} 36`,
		"gotrust_validate_latency_seconds_count 36",
		"gotrust_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderNilExporter(t *testing.T) {
	var exp *Exporter
	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goTrust.MetricsSnapshot{
			Counters:   map[goTrust.MetricID]uint64{goTrust.MetricLoginSuccess: 1},
			Histograms: map[goTrust.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
