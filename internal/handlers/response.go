package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bookkeeping-service/internal/forecast"
	"bookkeeping-service/internal/lock"
	"bookkeeping-service/internal/logging"
	"bookkeeping-service/internal/models"
	"bookkeeping-service/internal/repositories"
	"bookkeeping-service/internal/services"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Error marshaling JSON response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var verr *forecast.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, lock.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondWithServiceError(w http.ResponseWriter, logger logging.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.WithError(err).Error("Request failed")
	}
	respondWithError(w, code, err.Error())
}

// parseDate reads a YYYY-MM-DD value. An empty value yields fallback.
func parseDate(value, field string, fallback time.Time) (time.Time, error) {
	if value == "" {
		if fallback.IsZero() {
			return time.Time{}, fmt.Errorf("%s is required", field)
		}
		return fallback, nil
	}
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("Invalid %s format. Use YYYY-MM-DD", field)
	}
	return t, nil
}

// parseDays reads an integer horizon. Range checks are left to the services.
func parseDays(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	days, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("days must be an integer, got %q", value)
	}
	return days, nil
}

func parseBool(value, field string) (bool, error) {
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false, got %q", field, value)
	}
	return b, nil
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
