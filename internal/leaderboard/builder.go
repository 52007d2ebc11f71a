// Package leaderboard turns per-user carbon rollups into a ranked,
// badge- and trend-annotated leaderboard.
package leaderboard

import (
	"math"
	"sort"

	"cloud.google.com/go/civil"

	"github.com/ecotrace/ecotrace/internal/carbon"
	"github.com/ecotrace/ecotrace/internal/domain"
	"github.com/ecotrace/ecotrace/internal/rank"
)

// DefaultLimit caps the leaderboard when the caller does not ask for a size.
const DefaultLimit = 50

// trendThresholdPct is the cohort delta beyond which a user trends
// up (better) or down (worse) instead of steady.
const trendThresholdPct = 5

const maxCategoryMix = 3

// Options tunes a single Build call.
type Options struct {
	// Limit truncates the ranked result. Zero means DefaultLimit;
	// negative values are treated as zero entries requested.
	Limit int

	// Profiles optionally override computed defaults (display name, badge,
	// team) and introduce entries for users without any transactions.
	Profiles map[string]domain.UserProfile
}

// Build ranks all users by eco points.
//
// Eco points are 100 minus the user's CO2 percentile among all users
// (mean-rank, so heavy emitters rank high on percentile and low on points),
// rounded to two decimals and clamped to [0, 100]. Profile-only users carry
// nil eco points and sort last; ranks stay 1-based and contiguous.
func Build(summaries map[string]*domain.UserCarbonSummary, opts Options) []domain.LeaderboardEntry {
	population := carbon.TotalCO2Values(summaries)
	cohortAvg, cohortOK := cohortAverage(population)

	entries := make([]domain.LeaderboardEntry, 0, len(summaries)+len(opts.Profiles))
	for _, s := range summaries {
		entries = append(entries, buildEntry(s, population, cohortAvg, cohortOK))
	}

	// Profile-only users: present in the profile source, absent from the
	// transaction population. They get a row with nil eco points.
	for userID := range opts.Profiles {
		if _, ok := summaries[userID]; ok {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      userID,
			Badge:       domain.BadgeSprout,
			Trend:       domain.TrendSteady,
			CategoryMix: []domain.CategoryShare{},
		})
	}

	for i := range entries {
		applyProfile(&entries[i], opts.Profiles)
	}

	sortEntries(entries)
	for i := range entries {
		entries[i].Rank = i + 1
	}

	limit := opts.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 0 {
		limit = 0
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// EcoScore computes one user's relative score against the full population.
// A user with no transactions scores percentile of 0 CO2; with an empty
// population that is 0, hence a perfect 100 eco points.
func EcoScore(userID string, summaries map[string]*domain.UserCarbonSummary) domain.EcoScoreResult {
	var totalCO2 float64
	if s, ok := summaries[userID]; ok {
		totalCO2 = s.TotalCO2
	}
	population := carbon.TotalCO2Values(summaries)
	percentile := rank.PercentileOfValue(totalCO2, population)
	return domain.EcoScoreResult{
		UserID:             userID,
		TotalCO2:           totalCO2,
		EcoScorePercentile: percentile,
		EcoPoints:          ecoPoints(percentile),
	}
}

func buildEntry(s *domain.UserCarbonSummary, population []float64, cohortAvg float64, cohortOK bool) domain.LeaderboardEntry {
	percentile := rank.PercentileOfValue(s.TotalCO2, population)
	points := ecoPoints(percentile)

	var avgEnv *float64
	lowImpactRatio := 0.0
	if s.TxCount > 0 {
		v := float64(s.EnvScoreSum) / float64(s.TxCount)
		avgEnv = &v
		lowImpactRatio = float64(len(s.LowImpactDates)) / float64(s.TxCount)
	}

	mix := categoryMix(s)
	topCategory := ""
	if len(mix) > 0 {
		topCategory = mix[0].CategoryID
	}

	delta, trend := cohortDelta(s.TotalCO2, cohortAvg, cohortOK)

	return domain.LeaderboardEntry{
		UserID:         s.UserID,
		EcoPoints:      &points,
		Badge:          badgeFor(points, lowImpactRatio),
		Trend:          trend,
		StreakDays:     streakDays(s.LowImpactDates),
		CategoryMix:    mix,
		TopCategory:    topCategory,
		ImpactDeltaPct: delta,
		TotalCO2:       s.TotalCO2,
		AvgEnvScore:    avgEnv,
		LowImpactRatio: lowImpactRatio,
	}
}

func ecoPoints(percentile float64) float64 {
	return rank.Clamp(round2(100-percentile), 0, 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func cohortAverage(population []float64) (float64, bool) {
	if len(population) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range population {
		sum += v
	}
	return sum / float64(len(population)), true
}

// cohortDelta returns the signed percent distance from the cohort average
// and the trend it implies. A nil delta (no cohort, or zero average) always
// reads steady. Lower CO2 than the cohort trends "up": better.
func cohortDelta(totalCO2, cohortAvg float64, cohortOK bool) (*float64, string) {
	if !cohortOK || cohortAvg == 0 {
		return nil, domain.TrendSteady
	}
	delta := round2((totalCO2 - cohortAvg) / cohortAvg * 100)
	switch {
	case delta <= -trendThresholdPct:
		return &delta, domain.TrendUp
	case delta >= trendThresholdPct:
		return &delta, domain.TrendDown
	default:
		return &delta, domain.TrendSteady
	}
}

// badgeFor applies the ordered badge rules; the first match wins.
// Either a high eco-points score or a high low-impact ratio suffices
// for a tier.
func badgeFor(points, lowImpactRatio float64) string {
	switch {
	case points >= 90 || lowImpactRatio >= 0.7:
		return domain.BadgeGuardian
	case points >= 75 || lowImpactRatio >= 0.55:
		return domain.BadgeTrailblazer
	case points >= 60 || lowImpactRatio >= 0.4:
		return domain.BadgeEarthAlly
	default:
		return domain.BadgeSprout
	}
}

// streakDays walks backward one calendar day at a time from the most recent
// low-impact day, counting while each preceding day is also present.
func streakDays(dates map[civil.Date]struct{}) int {
	if len(dates) == 0 {
		return 0
	}
	var latest civil.Date
	first := true
	for d := range dates {
		if first || latest.Before(d) {
			latest = d
			first = false
		}
	}

	n := 1
	for d := latest.AddDays(-1); ; d = d.AddDays(-1) {
		if _, ok := dates[d]; !ok {
			break
		}
		n++
	}
	return n
}

// categoryMix returns the top categories by spend, shares relative to the
// user's total spend (0 when total spend is 0). Ties break on category id
// so output stays deterministic.
func categoryMix(s *domain.UserCarbonSummary) []domain.CategoryShare {
	mix := make([]domain.CategoryShare, 0, len(s.CategorySpend))
	for id, spend := range s.CategorySpend {
		share := 0.0
		if s.TotalSpend != 0 {
			share = spend / s.TotalSpend
		}
		mix = append(mix, domain.CategoryShare{CategoryID: id, Spend: spend, Share: share})
	}
	sort.Slice(mix, func(i, j int) bool {
		if mix[i].Spend != mix[j].Spend {
			return mix[i].Spend > mix[j].Spend
		}
		return mix[i].CategoryID < mix[j].CategoryID
	})
	if len(mix) > maxCategoryMix {
		mix = mix[:maxCategoryMix]
	}
	return mix
}

func applyProfile(e *domain.LeaderboardEntry, profiles map[string]domain.UserProfile) {
	p, ok := profiles[e.UserID]
	if !ok {
		return
	}
	if p.DisplayName != "" {
		e.DisplayName = p.DisplayName
	}
	if p.Team != "" {
		e.Team = p.Team
	}
	if p.BadgeOverride != "" {
		e.Badge = p.BadgeOverride
	}
}

// sortEntries orders by eco points descending with nil points last;
// ties break on user id for a stable total order.
func sortEntries(entries []domain.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		pi, pj := entries[i].EcoPoints, entries[j].EcoPoints
		switch {
		case pi == nil && pj == nil:
			return entries[i].UserID < entries[j].UserID
		case pi == nil:
			return false
		case pj == nil:
			return true
		case *pi != *pj:
			return *pi > *pj
		default:
			return entries[i].UserID < entries[j].UserID
		}
	})
}
