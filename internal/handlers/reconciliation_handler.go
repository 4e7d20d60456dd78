package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"bookkeeping-service/internal/logging"
	"bookkeeping-service/internal/services"
)

// Reconciler matches bank lines against open invoices.
type Reconciler interface {
	Reconcile(ctx context.Context, from, to time.Time) (*services.ReconciliationResult, error)
	Unmatched(ctx context.Context, from, to time.Time) (*services.UnmatchedRecords, error)
}

// ReconciliationHandler leaves mutual exclusion per date range to the
// service's lock manager, which answers 409 through lock.ErrLocked.
type ReconciliationHandler struct {
	reconciler Reconciler
	logger     logging.Logger
}

func NewReconciliationHandler(reconciler Reconciler, logger logging.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconciler: reconciler,
		logger:     logger.WithField(logging.FieldComponent, "reconciliation_handler"),
	}
}

func (h *ReconciliationHandler) StartReconciliation(w http.ResponseWriter, r *http.Request) {
	var request struct {
		FromDate string `json:"from_date"`
		ToDate   string `json:"to_date"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	from, to, ok := parseRange(w, request.FromDate, request.ToDate)
	if !ok {
		return
	}

	result, err := h.reconciler.Reconcile(r.Context(), from, to)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ReconciliationHandler) GetUnmatchedRecords(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(w, r.URL.Query().Get("from_date"), r.URL.Query().Get("to_date"))
	if !ok {
		return
	}

	result, err := h.reconciler.Unmatched(r.Context(), from, to)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// parseRange validates a from_date/to_date pair and writes a 400 on failure.
func parseRange(w http.ResponseWriter, fromDate, toDate string) (time.Time, time.Time, bool) {
	if fromDate == "" || toDate == "" {
		respondWithError(w, http.StatusBadRequest, "Both from_date and to_date are required")
		return time.Time{}, time.Time{}, false
	}

	from, err := parseDate(fromDate, "from_date", time.Time{})
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return time.Time{}, time.Time{}, false
	}

	to, err := parseDate(toDate, "to_date", time.Time{})
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return time.Time{}, time.Time{}, false
	}

	return from, to, true
}
