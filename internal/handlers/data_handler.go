package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"bookkeeping-service/internal/logging"
	"bookkeeping-service/internal/models"
	"bookkeeping-service/internal/services"
)

// Syncer pulls ledger data into the local store.
type Syncer interface {
	Sync(ctx context.Context) (*services.SyncResult, error)
}

// Planner manages user-entered budgets and tax obligations.
type Planner interface {
	UpsertBudget(ctx context.Context, input services.BudgetInput) (*models.CashFlowBudget, error)
	ListBudgets(ctx context.Context, monthYear string) ([]models.CashFlowBudget, error)
	CreateTaxObligation(ctx context.Context, input services.TaxObligationInput) (*models.TaxObligation, error)
	ListTaxObligations(ctx context.Context, status string) ([]models.TaxObligation, error)
	MarkTaxPaid(ctx context.Context, id int64) (*models.TaxObligation, error)
}

// DataHandler covers the inputs of the forecast: ledger sync and planning data.
type DataHandler struct {
	syncer  Syncer
	planner Planner
	logger  logging.Logger
}

func NewDataHandler(syncer Syncer, planner Planner, logger logging.Logger) *DataHandler {
	return &DataHandler{
		syncer:  syncer,
		planner: planner,
		logger:  logger.WithField(logging.FieldComponent, "data_handler"),
	}
}

func (h *DataHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncer.Sync(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *DataHandler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.planner.ListBudgets(r.Context(), r.URL.Query().Get("month_year"))
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, budgets)
}

func (h *DataHandler) UpsertBudget(w http.ResponseWriter, r *http.Request) {
	var input services.BudgetInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	budget, err := h.planner.UpsertBudget(r.Context(), input)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, budget)
}

func (h *DataHandler) ListTaxObligations(w http.ResponseWriter, r *http.Request) {
	obligations, err := h.planner.ListTaxObligations(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, obligations)
}

func (h *DataHandler) CreateTaxObligation(w http.ResponseWriter, r *http.Request) {
	var input services.TaxObligationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	obligation, err := h.planner.CreateTaxObligation(r.Context(), input)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, obligation)
}

func (h *DataHandler) MarkTaxPaid(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid tax obligation id")
		return
	}

	obligation, err := h.planner.MarkTaxPaid(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, obligation)
}
