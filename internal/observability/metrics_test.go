package observability

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ObserveValidation("manual", true, "deliverable", nil, time.Millisecond)
	m.IncAuditFailure()
	m.IncLockContention()
	m.IncHistoryUnavailable()
	m.ApiInflightInc()
	m.ApiInflightDec()
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil write: %v", err)
	}
	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("want=503 got=%d", rec.Code)
	}
}

func TestInitDisabledReturnsNil(t *testing.T) {
	if m := Init(nil, MetricsConfig{Enabled: false}); m != nil {
		t.Fatalf("expected nil metrics when disabled")
	}
}

func TestValidationMetricsExposition(t *testing.T) {
	m := newMetrics()
	m.ObserveValidation("ai_suggested", false, "blocked", []string{"user_confirmation_required", "rate_limit"}, 20*time.Millisecond)
	m.ObserveValidation("manual", true, "deliverable", nil, 5*time.Millisecond)
	m.IncAuditFailure()
	m.ObserveAPI("POST", "/api/bolus/validate", "503", 30*time.Millisecond)

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`dg_bolus_validations_total{source="ai_suggested",outcome="rejected",disposition="blocked"} 1.000000`,
		`dg_bolus_validations_total{source="manual",outcome="approved",disposition="deliverable"} 1.000000`,
		`dg_safety_check_failures_total{check_type="rate_limit"} 1.000000`,
		`dg_audit_persistence_failures_total 1.000000`,
		`dg_api_server_errors_total 1.000000`,
		`# TYPE dg_bolus_validation_duration_seconds histogram`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q\n%s", want, out)
		}
	}
}

func TestWithLe(t *testing.T) {
	cases := []struct{ in, want string }{
		{in: "", want: `{le="0.5"}`},
		{in: `{outcome="approved"}`, want: `{outcome="approved",le="0.5"}`},
	}
	for _, tc := range cases {
		if got := withLe(tc.in, "0.5"); got != tc.want {
			t.Fatalf("withLe(%q): want=%s got=%s", tc.in, tc.want, got)
		}
	}
}

func TestParseHeaders(t *testing.T) {
	got := parseHeaders("x-api-key=abc, bad ,=v,k=")
	if len(got) != 1 || got["x-api-key"] != "abc" {
		t.Fatalf("headers: %v", got)
	}
	if parseHeaders("  ") != nil {
		t.Fatalf("empty headers should be nil")
	}
}
