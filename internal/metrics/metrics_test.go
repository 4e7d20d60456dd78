package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()

	m.RecordForecast(OutcomeSuccess, 120*time.Millisecond, 2)
	m.RecordForecast(OutcomeFailure, time.Millisecond, 0)
	m.RecordSync(OutcomeSuccess, map[string]int{"invoices": 4, "bank_transactions": 7})
	m.RecordLedgerRequest("Invoices", 200, time.Millisecond)
	m.RecordReportCache(true)
	m.RecordReportCache(false)
	m.RecordHTTPRequest("/api/v1/forecast", http.MethodGet, 200, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ForecastRuns.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ForecastRuns.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ForecastCriticalAlerts))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.SyncRecords.WithLabelValues("bank_transactions")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerRequests.WithLabelValues("Invoices", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportCacheHits.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/v1/forecast", "GET", "200")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ForecastPersistFailures.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "bookkeeping_forecast_persist_failures_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNew_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
