package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dosegate-backend/internal/observability"
	"github.com/yungbote/dosegate-backend/internal/platform/logger"
)

func TestMetricsLabelsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := observability.Init(logger.Nop(), observability.MetricsConfig{Enabled: true})
	if m == nil {
		t.Fatalf("metrics not initialized")
	}
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/bolus/validations/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/bolus/validations/abc", "/wp-login.php", "/.env"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`dg_api_requests_total{method="GET",route="/api/bolus/validations/:id",status="200"} 1.000000`,
		`dg_api_requests_total{method="GET",route="unmatched",status="404"} 2.000000`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "wp-login") {
		t.Fatalf("raw unmatched path leaked into labels:\n%s", out)
	}
}

func TestMetricsNilPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(nil))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("want=204 got=%d", rec.Code)
	}
}
