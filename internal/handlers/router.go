package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"bookkeeping-service/internal/config"
	"bookkeeping-service/internal/logging"
	"bookkeeping-service/internal/metrics"
)

// Handlers groups the route handlers mounted under /api/v1.
type Handlers struct {
	Forecast       *ForecastHandler
	Data           *DataHandler
	Reconciliation *ReconciliationHandler
	Reports        *ReportHandler
}

func SetupRouter(h Handlers, cfg *config.Config, m *metrics.Metrics, logger logging.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(metricsMiddleware(m))

	router.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()

	api.Use(loggingMiddleware(logger))
	api.Use(authMiddleware(cfg.Server.APITokens))
	api.Use(jsonContentTypeMiddleware)

	api.HandleFunc("/forecast", h.Forecast.GetForecast).Methods(http.MethodGet)
	api.HandleFunc("/forecast", h.Forecast.RegenerateForecast).Methods(http.MethodPost)
	api.HandleFunc("/forecast/history", h.Forecast.GetHistory).Methods(http.MethodGet)

	api.HandleFunc("/sync", h.Data.TriggerSync).Methods(http.MethodPost)
	api.HandleFunc("/budgets", h.Data.ListBudgets).Methods(http.MethodGet)
	api.HandleFunc("/budgets", h.Data.UpsertBudget).Methods(http.MethodPost)
	api.HandleFunc("/tax-obligations", h.Data.ListTaxObligations).Methods(http.MethodGet)
	api.HandleFunc("/tax-obligations", h.Data.CreateTaxObligation).Methods(http.MethodPost)
	api.HandleFunc("/tax-obligations/{id:[0-9]+}/paid", h.Data.MarkTaxPaid).Methods(http.MethodPost)

	api.HandleFunc("/reconciliation", h.Reconciliation.StartReconciliation).Methods(http.MethodPost)
	api.HandleFunc("/reconciliation/unmatched", h.Reconciliation.GetUnmatchedRecords).Methods(http.MethodGet)

	api.HandleFunc("/reports/balance-sheet", h.Reports.BalanceSheet).Methods(http.MethodGet)
	api.HandleFunc("/reports/profit-loss", h.Reports.ProfitLoss).Methods(http.MethodGet)
	api.HandleFunc("/reports/tax-liability", h.Reports.TaxLiability).Methods(http.MethodGet)

	return router
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			fields := []logging.Field{
				logging.F(logging.FieldMethod, r.Method),
				logging.F(logging.FieldPath, r.URL.Path),
				logging.F(logging.FieldStatus, rec.status),
				logging.F(logging.FieldDuration, time.Since(start).Milliseconds()),
			}
			if rec.status >= http.StatusInternalServerError {
				logger.Warn("Request failed", fields...)
				return
			}
			logger.Info("Request handled", fields...)
		})
	}
}

func metricsMiddleware(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			m.RecordHTTPRequest(route, r.Method, rec.status, time.Since(start))
		})
	}
}

// authMiddleware requires a bearer token from tokens. An empty list disables
// authentication.
func authMiddleware(tokens []string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if len(tokens) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || !validToken(tokens, strings.TrimSpace(token)) {
				respondWithError(w, http.StatusUnauthorized, "Missing or invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validToken(tokens []string, token string) bool {
	if token == "" {
		return false
	}
	for _, t := range tokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			return true
		}
	}
	return false
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status": "healthy",
	}
	respondWithJSON(w, http.StatusOK, response)
}
