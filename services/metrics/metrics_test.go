package metricsvc

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edusource/core/checkout"
)

func TestMetrics_Transition(t *testing.T) {
	m := New()
	m.Transition(checkout.Idle, checkout.CreatingOrder)
	m.Transition(checkout.Idle, checkout.CreatingOrder)
	m.Transition(checkout.VerifyingPayment, checkout.VerificationFailed)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Transitions.WithLabelValues("idle", "creating_order")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Transitions.WithLabelValues("verifying_payment", "verification_failed")))
}

func TestMetrics_Middleware(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/courses/:id", func(ctx echo.Context) error { return ctx.NoContent(http.StatusNoContent) })
	e.GET("/boom", func(ctx echo.Context) error { return echo.NewHTTPError(http.StatusTeapot) })

	for _, path := range []string{"/courses/1", "/courses/2", "/boom"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Requests.WithLabelValues(http.MethodGet, "/courses/:id", "204")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Requests.WithLabelValues(http.MethodGet, "/boom", "418")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "edusource_http_request_duration_ms_bucket")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
