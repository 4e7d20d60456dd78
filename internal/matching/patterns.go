package matching

import (
	"sort"
	"time"

	"bookkeeping-service/internal/models"
)

// LearnPatterns derives per-counterparty payment behaviour from settled
// invoices. Days to pay is paid date minus due date, so early payers have a
// negative average. Invoices without a paid date are ignored.
func LearnPatterns(paid []models.Invoice) []models.PaymentPattern {
	type tally struct {
		totalDays int
		samples   int
		early     int
		onTime    int
		late      int
	}
	tallies := make(map[string]*tally)

	for _, inv := range paid {
		if inv.PaidDate == nil || inv.ContactID == "" {
			continue
		}
		t, ok := tallies[inv.ContactID]
		if !ok {
			t = &tally{}
			tallies[inv.ContactID] = t
		}

		days := signedDays(*inv.PaidDate, inv.DueDate)
		t.totalDays += days
		t.samples++
		switch {
		case days < 0:
			t.early++
		case days == 0:
			t.onTime++
		default:
			t.late++
		}
	}

	patterns := make([]models.PaymentPattern, 0, len(tallies))
	for contact, t := range tallies {
		n := float64(t.samples)
		patterns = append(patterns, models.PaymentPattern{
			ContactID:        contact,
			AverageDaysToPay: float64(t.totalDays) / n,
			EarlyRate:        float64(t.early) / n,
			OnTimeRate:       float64(t.onTime) / n,
			LateRate:         float64(t.late) / n,
			SampleSize:       t.samples,
		})
	}
	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].ContactID < patterns[j].ContactID
	})
	return patterns
}

func signedDays(paid, due time.Time) int {
	return int(calendarDay(paid).Sub(calendarDay(due)) / (24 * time.Hour))
}
