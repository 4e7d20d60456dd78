package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"bookkeeping-service/internal/forecast"
	"bookkeeping-service/internal/logging"
	"bookkeeping-service/internal/services"
)

// ForecastService is the forecast surface the handler drives.
type ForecastService interface {
	GenerateForecast(ctx context.Context, days int, scenarios bool) (*forecast.Result, error)
	Forecast(ctx context.Context, days int, scenarios, regenerate bool) (*forecast.Result, error)
	StoredForecast(ctx context.Context, from time.Time, days int) (*forecast.Result, error)
}

type ForecastHandler struct {
	service     ForecastService
	defaultDays int
	logger      logging.Logger
	now         func() time.Time
}

func NewForecastHandler(service ForecastService, defaultDays int, logger logging.Logger) *ForecastHandler {
	return &ForecastHandler{
		service:     service,
		defaultDays: defaultDays,
		logger:      logger.WithField(logging.FieldComponent, "forecast_handler"),
		now:         time.Now,
	}
}

// ForecastResponse is a forecast result plus any non-fatal warnings raised
// while producing it.
type ForecastResponse struct {
	*forecast.Result
	Warnings []string `json:"warnings,omitempty"`
}

type ForecastRequest struct {
	Days       *int `json:"days"`
	Regenerate bool `json:"regenerate"`
	Scenarios  bool `json:"scenarios"`
}

// GetForecast computes a fresh forecast: GET /forecast?days=&scenarios=
func (h *ForecastHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	days, err := parseDays(query.Get("days"), h.defaultDays)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	scenarios, err := parseBool(query.Get("scenarios"), "scenarios")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.GenerateForecast(r.Context(), days, scenarios)
	h.respond(w, result, err)
}

// RegenerateForecast serves a stored forecast or recomputes it:
// POST /forecast {days, regenerate, scenarios}
func (h *ForecastHandler) RegenerateForecast(w http.ResponseWriter, r *http.Request) {
	var request ForecastRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	days := h.defaultDays
	if request.Days != nil {
		days = *request.Days
	}

	result, err := h.service.Forecast(r.Context(), days, request.Scenarios, request.Regenerate)
	h.respond(w, result, err)
}

// GetHistory returns persisted forecast days: GET /forecast/history?from=&days=
func (h *ForecastHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, err := parseDate(query.Get("from"), "from", today(h.now()))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := parseDays(query.Get("days"), h.defaultDays)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.StoredForecast(r.Context(), from, days)
	h.respond(w, result, err)
}

func (h *ForecastHandler) respond(w http.ResponseWriter, result *forecast.Result, err error) {
	if err != nil && !(services.IsNotPersisted(err) && result != nil) {
		respondWithServiceError(w, h.logger, err)
		return
	}

	response := ForecastResponse{Result: result}
	if err != nil {
		response.Warnings = []string{err.Error()}
	}
	respondWithJSON(w, http.StatusOK, response)
}
