// Package carbon folds raw transactions into per-user carbon rollups.
//
// Aggregation is a pure function over the supplied collection: no state is
// retained across calls and one malformed record never aborts the batch.
package carbon

import (
	"cloud.google.com/go/civil"

	"github.com/ecotrace/ecotrace/internal/catalog"
	"github.com/ecotrace/ecotrace/internal/domain"
)

// LowImpactThreshold is the env_score at or below which a transaction marks
// its calendar day as a low-impact day.
const LowImpactThreshold = 4

// Aggregate rolls transactions up into one UserCarbonSummary per user.
//
// Per transaction: spend and CO2 (amount * category co2e) accumulate on the
// owning user, tx_count and env_score_sum always advance, and the date joins
// active_dates (plus low_impact_dates when the category's env_score is at or
// below the threshold). Transactions with a zero date were unparseable at
// the source; they still count toward spend, CO2 and tx_count but stay out
// of the date sets. Absent categories resolve to the neutral default and
// their spend lands in the shared uncategorized bucket.
func Aggregate(txs []domain.Transaction, cat *catalog.Catalog) map[string]*domain.UserCarbonSummary {
	out := make(map[string]*domain.UserCarbonSummary)

	for _, tx := range txs {
		userID := tx.UserID
		if userID == "" {
			userID = domain.DefaultUserID
		}

		s, ok := out[userID]
		if !ok {
			s = domain.NewUserCarbonSummary(userID)
			out[userID] = s
		}

		c := cat.Resolve(tx.CategoryID)

		s.TotalSpend += tx.Amount
		s.TotalCO2 += tx.Amount * c.CO2ePerDollar
		s.TxCount++
		s.EnvScoreSum += c.EnvScore

		catKey := tx.CategoryID
		if catKey == "" {
			catKey = domain.UncategorizedKey
		}
		s.CategorySpend[catKey] += tx.Amount

		if tx.Date.IsZero() {
			continue
		}
		day := civil.DateOf(tx.Date)
		s.ActiveDates[day] = struct{}{}
		if c.EnvScore <= LowImpactThreshold {
			s.LowImpactDates[day] = struct{}{}
		}
	}

	return out
}

// TotalCO2Values extracts every user's total CO2 in no particular order,
// forming the reference population for percentile ranking.
func TotalCO2Values(summaries map[string]*domain.UserCarbonSummary) []float64 {
	out := make([]float64, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, s.TotalCO2)
	}
	return out
}
