package handlers

import (
	"context"
	"net/http"
	"time"

	"bookkeeping-service/internal/logging"
	"bookkeeping-service/internal/reports"
	"bookkeeping-service/internal/services"
)

// Reporter serves figures extracted from ledger reports.
type Reporter interface {
	BalanceSheet(ctx context.Context, date time.Time) (*reports.BalanceSheet, error)
	ProfitLoss(ctx context.Context, from, to time.Time) (*reports.ProfitLoss, error)
	TaxLiability(ctx context.Context, date time.Time) (*services.TaxLiability, error)
}

type ReportHandler struct {
	reporter Reporter
	logger   logging.Logger
	now      func() time.Time
}

func NewReportHandler(reporter Reporter, logger logging.Logger) *ReportHandler {
	return &ReportHandler{
		reporter: reporter,
		logger:   logger.WithField(logging.FieldComponent, "report_handler"),
		now:      time.Now,
	}
}

func (h *ReportHandler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"), "date", today(h.now()))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	bs, err := h.reporter.BalanceSheet(r.Context(), date)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, bs)
}

func (h *ReportHandler) ProfitLoss(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, err := parseDate(query.Get("from"), "from", time.Time{})
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDate(query.Get("to"), "to", time.Time{})
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	pl, err := h.reporter.ProfitLoss(r.Context(), from, to)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, pl)
}

func (h *ReportHandler) TaxLiability(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"), "date", today(h.now()))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	liability, err := h.reporter.TaxLiability(r.Context(), date)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, liability)
}
