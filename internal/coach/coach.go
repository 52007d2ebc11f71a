// Package coach buckets a user's transactions into ISO weeks and turns
// category-level impact into ranked, templated suggestions.
package coach

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ecotrace/ecotrace/internal/catalog"
	"github.com/ecotrace/ecotrace/internal/domain"
)

const (
	// DefaultWindowWeeks is used when the caller asks for zero or fewer weeks.
	DefaultWindowWeeks = 4
	// MaxWindowWeeks is the hard cap on the weekly window.
	MaxWindowWeeks = 8

	maxTopCategories = 3
	maxSuggestions   = 3
)

// template drives one label-keyed coaching suggestion. The description
// expects the category name as its single argument.
type template struct {
	title         string
	description   string
	savingsFactor float64
}

var templates = map[string]template{
	domain.EnvLabelBad: {
		title:         "Shrink high-impact purchases",
		description:   "Cut one %s purchase this week or switch to a greener option to shave emissions quickly.",
		savingsFactor: 0.25,
	},
	domain.EnvLabelNeutral: {
		title:         "Nudge toward greener picks",
		description:   "Swap a %s spend for a lower-carbon alternative (local, seasonal, or thrifted).",
		savingsFactor: 0.15,
	},
	domain.EnvLabelGood: {
		title:         "Lock in the good habits",
		description:   "Keep %s spending steady and invite a friend to join. Momentum keeps carbon low!",
		savingsFactor: 0.05,
	},
}

// ClampWindow normalizes a requested week count to [1, MaxWindowWeeks],
// substituting the default for non-positive requests.
func ClampWindow(weeks int) int {
	if weeks <= 0 {
		weeks = DefaultWindowWeeks
	}
	if weeks > MaxWindowWeeks {
		weeks = MaxWindowWeeks
	}
	return weeks
}

type weekKey struct {
	year int
	week int
}

type weekBucket struct {
	totalSpend      float64
	totalCO2        float64
	categoryImpacts map[string]float64
}

// BuildWeeklyProfiles aggregates the user's transactions into ISO week
// summaries, most recent week first, capped to maxWeeks. Transactions with
// a zero date cannot be bucketed and are skipped.
func BuildWeeklyProfiles(userID string, txs []domain.Transaction, cat *catalog.Catalog, maxWeeks int) []domain.WeeklyProfile {
	maxWeeks = ClampWindow(maxWeeks)

	buckets := make(map[weekKey]*weekBucket)
	for _, tx := range txs {
		uid := tx.UserID
		if uid == "" {
			uid = domain.DefaultUserID
		}
		if uid != userID || tx.Date.IsZero() {
			continue
		}

		year, week := tx.Date.ISOWeek()
		key := weekKey{year: year, week: week}
		b, ok := buckets[key]
		if !ok {
			b = &weekBucket{categoryImpacts: make(map[string]float64)}
			buckets[key] = b
		}

		c := cat.Resolve(tx.CategoryID)
		impact := tx.Amount * c.CO2ePerDollar

		b.totalSpend += tx.Amount
		b.totalCO2 += impact
		catKey := tx.CategoryID
		if catKey == "" {
			catKey = domain.UncategorizedKey
		}
		b.categoryImpacts[catKey] += impact
	}

	keys := make([]weekKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year > keys[j].year
		}
		return keys[i].week > keys[j].week
	})

	profiles := make([]domain.WeeklyProfile, 0, maxWeeks)
	for _, k := range keys {
		if len(profiles) == maxWeeks {
			break
		}
		b := buckets[k]
		profiles = append(profiles, domain.WeeklyProfile{
			Year:          k.year,
			Week:          k.week,
			WeekStart:     isoWeekStart(k.year, k.week).Format("2006-01-02"),
			TotalSpend:    round2(b.totalSpend),
			TotalCO2:      round2(b.totalCO2),
			TopCategories: topCategories(b.categoryImpacts, cat),
		})
	}
	return profiles
}

// topCategories ranks a week's categories by CO2 impact descending,
// keeping at most three, each tagged with its env label.
func topCategories(impacts map[string]float64, cat *catalog.Catalog) []domain.CategoryImpact {
	out := make([]domain.CategoryImpact, 0, len(impacts))
	for id, total := range impacts {
		c := cat.Resolve(id)
		out = append(out, domain.CategoryImpact{
			CategoryID:   id,
			CategoryName: c.Name,
			TotalCO2:     round2(total),
			EnvScore:     c.EnvScore,
			EnvLabel:     domain.EnvLabelForScore(c.EnvScore),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCO2 != out[j].TotalCO2 {
			return out[i].TotalCO2 > out[j].TotalCO2
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	if len(out) > maxTopCategories {
		out = out[:maxTopCategories]
	}
	return out
}

// SuggestionsForProfile emits up to three templated suggestions for one
// weekly profile, one per top category. Suggestion ids are deterministic in
// (user, year, week, category, index) so regeneration is idempotent.
func SuggestionsForProfile(userID string, profile domain.WeeklyProfile) []domain.CoachingSuggestion {
	suggestions := make([]domain.CoachingSuggestion, 0, maxSuggestions)
	for idx, c := range profile.TopCategories {
		if idx == maxSuggestions {
			break
		}
		tpl, ok := templates[c.EnvLabel]
		if !ok {
			tpl = templates[domain.EnvLabelNeutral]
		}
		name := c.CategoryName
		if name == "" {
			name = "this category"
		}
		suggestions = append(suggestions, domain.CoachingSuggestion{
			SuggestionID:       fmt.Sprintf("%s-%dw%d-%s-%d", userID, profile.Year, profile.Week, c.CategoryID, idx),
			Title:              tpl.title,
			Description:        fmt.Sprintf(tpl.description, name),
			CategoryID:         c.CategoryID,
			CategoryName:       name,
			EstimatedSavingsKg: round2(c.TotalCO2 * tpl.savingsFactor),
			EnvLabel:           c.EnvLabel,
			Status:             domain.SuggestionStatusNew,
		})
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions, domain.CoachingSuggestion{
			SuggestionID:       fmt.Sprintf("%s-%dw%d-general", userID, profile.Year, profile.Week),
			Title:              "Log a low-carbon win",
			Description:        "No recent purchases yet. Plan one eco-friendly action (bike errand, veg meal) and log it to earn eco points.",
			EstimatedSavingsKg: 1.0,
			EnvLabel:           domain.EnvLabelNeutral,
			Status:             domain.SuggestionStatusNew,
		})
	}
	return suggestions
}

// StarterSuggestion prompts a user with no transactions in the window to
// log their first one.
func StarterSuggestion(userID string) domain.CoachingSuggestion {
	return domain.CoachingSuggestion{
		SuggestionID:       fmt.Sprintf("%s-starter", userID),
		Title:              "Add your first eco-positive transaction",
		Description:        "Log a recent sustainable purchase to unlock tailored coaching.",
		EstimatedSavingsKg: 1.0,
		EnvLabel:           domain.EnvLabelNeutral,
		Status:             domain.SuggestionStatusNew,
	}
}

// GeneratePayload builds the full coaching response: weekly profiles plus
// suggestions for the most recent non-empty week, or the starter suggestion
// when the window has no transactions at all.
func GeneratePayload(userID string, txs []domain.Transaction, cat *catalog.Catalog, weeks int, now time.Time) domain.CoachingPayload {
	profiles := BuildWeeklyProfiles(userID, txs, cat, weeks)

	var suggestions []domain.CoachingSuggestion
	if len(profiles) > 0 {
		suggestions = SuggestionsForProfile(userID, profiles[0])
	} else {
		suggestions = []domain.CoachingSuggestion{StarterSuggestion(userID)}
	}

	return domain.CoachingPayload{
		UserID:         userID,
		GeneratedAt:    now.UTC(),
		WeeklyProfiles: profiles,
		Suggestions:    suggestions,
	}
}

// ParseAckAction validates and normalizes an acknowledgement action.
// Only "accepted" and "dismissed" are recordable; anything else is a
// validation error and must not be recorded.
func ParseAckAction(action string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(action))
	switch normalized {
	case domain.AckActionAccepted, domain.AckActionDismissed:
		return normalized, nil
	default:
		return "", domain.NewValidationError("action", "must be accepted or dismissed")
	}
}

// isoWeekStart returns the Monday of the given ISO week.
// January 4th is always inside ISO week 1 of its year.
func isoWeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	monday := jan4.AddDate(0, 0, 1-weekday)
	return monday.AddDate(0, 0, (week-1)*7)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
