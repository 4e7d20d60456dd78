package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"bookkeeping-service/internal/cache"
	"bookkeeping-service/internal/ledger"
	"bookkeeping-service/internal/logging"
	"bookkeeping-service/internal/metrics"
	"bookkeeping-service/internal/models"
	"bookkeeping-service/internal/reports"
)

const reportCachePrefix = "report:"

// ReportSource fetches financial reports from the ledger.
type ReportSource interface {
	Report(ctx context.Context, name string, params url.Values) (*reports.Report, error)
}

// TaxLiability combines the liability reported by the ledger with the
// obligations recorded locally and still unpaid.
type TaxLiability struct {
	Date        string                 `json:"date"`
	Reported    decimal.Decimal        `json:"reported"`
	Pending     decimal.Decimal        `json:"pending"`
	Obligations []models.TaxObligation `json:"obligations"`
	Missing     []string               `json:"missing,omitempty"`
}

type ReportService struct {
	source    ReportSource
	cache     cache.Cache
	ttl       time.Duration
	extractor *reports.Extractor
	planning  PlanningStore
	metrics   *metrics.Metrics
	logger    logging.Logger
}

// PlanningStore is the subset of the planning repository reports read.
type PlanningStore interface {
	TaxObligations(ctx context.Context, status string) ([]models.TaxObligation, error)
}

func NewReportService(
	source ReportSource,
	c cache.Cache,
	ttl time.Duration,
	extractor *reports.Extractor,
	planning PlanningStore,
	m *metrics.Metrics,
	logger logging.Logger,
) *ReportService {
	return &ReportService{
		source:    source,
		cache:     c,
		ttl:       ttl,
		extractor: extractor,
		planning:  planning,
		metrics:   m,
		logger:    logger.WithField(logging.FieldComponent, "reports"),
	}
}

func (s *ReportService) BalanceSheet(ctx context.Context, date time.Time) (*reports.BalanceSheet, error) {
	report, err := s.report(ctx, ledger.ReportBalanceSheet, url.Values{
		"date": {date.Format(models.DateLayout)},
	})
	if err != nil {
		return nil, err
	}
	bs := s.extractor.BalanceSheet(report)
	return &bs, nil
}

func (s *ReportService) ProfitLoss(ctx context.Context, from, to time.Time) (*reports.ProfitLoss, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	report, err := s.report(ctx, ledger.ReportProfitAndLoss, url.Values{
		"fromDate": {from.Format(models.DateLayout)},
		"toDate":   {to.Format(models.DateLayout)},
	})
	if err != nil {
		return nil, err
	}
	pl := s.extractor.ProfitLoss(report)
	return &pl, nil
}

func (s *ReportService) TaxLiability(ctx context.Context, date time.Time) (*TaxLiability, error) {
	bs, err := s.BalanceSheet(ctx, date)
	if err != nil {
		return nil, err
	}
	pending, err := s.planning.TaxObligations(ctx, models.TaxStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending tax obligations: %w", err)
	}

	liability := &TaxLiability{
		Date:        date.Format(models.DateLayout),
		Reported:    bs.TaxLiability,
		Pending:     decimal.Zero,
		Obligations: []models.TaxObligation{},
	}
	for _, t := range pending {
		liability.Pending = liability.Pending.Add(t.Amount)
		liability.Obligations = append(liability.Obligations, t)
	}
	for _, m := range bs.Missing {
		if m == reports.MetricTaxLiability {
			liability.Missing = append(liability.Missing, m)
		}
	}
	return liability, nil
}

// report returns the named report from the cache, fetching and caching it on
// a miss. Cache failures degrade to a direct fetch.
func (s *ReportService) report(ctx context.Context, name string, params url.Values) (*reports.Report, error) {
	key := reportCachePrefix + name + ":" + params.Encode()

	var cached reports.Report
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.WithError(err).Warn("Report cache read failed", logging.F(logging.FieldResource, key))
	}
	s.metrics.RecordReportCache(found)
	if found {
		return &cached, nil
	}

	report, err := s.source.Report(ctx, name, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s report: %w", name, err)
	}
	if err := s.cache.Set(ctx, key, report, s.ttl); err != nil {
		s.logger.WithError(err).Warn("Report cache write failed", logging.F(logging.FieldResource, key))
	}
	return report, nil
}
