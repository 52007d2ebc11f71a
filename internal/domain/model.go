package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// DefaultUserID is assigned to transactions submitted without a user.
const DefaultUserID = "guest"

// UncategorizedKey buckets spend from transactions that carry no
// category id, in both the leaderboard mix and the weekly profiles.
const UncategorizedKey = "UNKNOWN"

// Transaction is one normalized spending record. Sources validate raw rows
// once at the ingestion boundary: a malformed amount becomes 0 (the record
// still counts), a malformed date becomes the zero time (the record is kept
// but excluded from date-based sets).
type Transaction struct {
	TransactionID string    `json:"transaction_id,omitempty"`
	UserID        string    `json:"user_id"`
	Merchant      string    `json:"merchant"`
	CategoryID    string    `json:"category_id"`
	Amount        float64   `json:"amount"`
	Date          time.Time `json:"date"`

	// EnvLabel is filled in by listing endpoints from the category catalog.
	EnvLabel string `json:"env_label,omitempty"`
}

// Category is one entry of the category catalog with its derived
// environmental score.
type Category struct {
	CategoryID    string  `json:"category_id"`
	Name          string  `json:"name"`
	CO2ePerDollar float64 `json:"co2e_per_dollar"`
	EnvScore      int     `json:"env_score"` // 1..10, 1 = lowest impact
}

// UserCarbonSummary is the per-user rollup produced by the carbon
// aggregator. Derived, never persisted; recomputed per request.
type UserCarbonSummary struct {
	UserID         string
	TotalSpend     float64
	TotalCO2       float64
	TxCount        int
	EnvScoreSum    int
	CategorySpend  map[string]float64
	ActiveDates    map[civil.Date]struct{}
	LowImpactDates map[civil.Date]struct{}
}

// NewUserCarbonSummary returns an empty summary with initialized maps.
func NewUserCarbonSummary(userID string) *UserCarbonSummary {
	return &UserCarbonSummary{
		UserID:         userID,
		CategorySpend:  make(map[string]float64),
		ActiveDates:    make(map[civil.Date]struct{}),
		LowImpactDates: make(map[civil.Date]struct{}),
	}
}

// CategoryShare is one slice of a user's spending mix.
type CategoryShare struct {
	CategoryID string  `json:"category_id"`
	Spend      float64 `json:"spend"`
	Share      float64 `json:"share"`
}

// Badge tiers, best first. Assignment is an ordered rule list; see the
// leaderboard builder.
const (
	BadgeGuardian    = "Guardian"
	BadgeTrailblazer = "Trailblazer"
	BadgeEarthAlly   = "Earth Ally"
	BadgeSprout      = "Sprout"
)

// Trend values relative to the cohort average.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendSteady = "steady"
)

// LeaderboardEntry is one ranked row of the leaderboard.
// EcoPoints and ImpactDeltaPct are nil when they cannot be computed
// (profile-only users, empty cohort).
type LeaderboardEntry struct {
	UserID         string          `json:"user_id"`
	DisplayName    string          `json:"display_name,omitempty"`
	Team           string          `json:"team,omitempty"`
	EcoPoints      *float64        `json:"eco_points"`
	Rank           int             `json:"rank"`
	Badge          string          `json:"badge"`
	Trend          string          `json:"trend"`
	StreakDays     int             `json:"streak_days"`
	CategoryMix    []CategoryShare `json:"category_mix"`
	TopCategory    string          `json:"top_category,omitempty"`
	ImpactDeltaPct *float64        `json:"impact_delta_pct"`
	TotalCO2       float64         `json:"total_co2"`
	AvgEnvScore    *float64        `json:"avg_env_score"`
	LowImpactRatio float64         `json:"low_impact_ratio"`
}

// EcoScoreResult is the per-user relative score.
type EcoScoreResult struct {
	UserID             string  `json:"user_id"`
	TotalCO2           float64 `json:"total_co2"`
	EcoScorePercentile float64 `json:"eco_score_percentile"`
	EcoPoints          float64 `json:"eco_points"`
}

// CategoryImpact is one top category inside a weekly profile.
type CategoryImpact struct {
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	TotalCO2     float64 `json:"total_co2"`
	EnvScore     int     `json:"env_score"`
	EnvLabel     string  `json:"env_label"`
}

// WeeklyProfile aggregates one ISO week of a user's transactions.
type WeeklyProfile struct {
	Year          int              `json:"year"`
	Week          int              `json:"week"`
	WeekStart     string           `json:"week_start,omitempty"` // YYYY-MM-DD of the ISO Monday
	TotalSpend    float64          `json:"total_spend"`
	TotalCO2      float64          `json:"total_co2"`
	TopCategories []CategoryImpact `json:"top_categories"`
}

// SuggestionStatusNew is the status of every freshly generated suggestion.
const SuggestionStatusNew = "new"

// CoachingSuggestion is one templated recommendation. SuggestionID is
// deterministic so repeated generation for the same week is idempotent.
type CoachingSuggestion struct {
	SuggestionID       string  `json:"suggestion_id"`
	Title              string  `json:"title"`
	Description        string  `json:"description"`
	CategoryID         string  `json:"category_id,omitempty"`
	CategoryName       string  `json:"category_name,omitempty"`
	EstimatedSavingsKg float64 `json:"estimated_savings_kg"`
	EnvLabel           string  `json:"env_label"`
	Status             string  `json:"status"`
}

// CoachingPayload is the full coaching response for one user.
type CoachingPayload struct {
	UserID         string               `json:"user_id"`
	GeneratedAt    time.Time            `json:"generated_at"`
	WeeklyProfiles []WeeklyProfile      `json:"weekly_profiles"`
	Suggestions    []CoachingSuggestion `json:"suggestions"`
}

// Acknowledgement actions a client may record for a suggestion.
const (
	AckActionAccepted  = "accepted"
	AckActionDismissed = "dismissed"
)

// Acknowledgement records a user's reaction to a coaching suggestion.
type Acknowledgement struct {
	UserID       string    `json:"user_id"`
	SuggestionID string    `json:"suggestion_id"`
	Action       string    `json:"action"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// AckResult is the response contract for a recorded acknowledgement.
type AckResult struct {
	Status       string `json:"status"`
	UserID       string `json:"user_id"`
	SuggestionID string `json:"suggestion_id"`
	Action       string `json:"action"`
}

// UserProfile carries optional presentation data that overrides computed
// leaderboard defaults where present.
type UserProfile struct {
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name,omitempty"`
	Persona       string `json:"persona,omitempty"`
	FocusArea     string `json:"focus_area,omitempty"`
	BadgeOverride string `json:"badge_override,omitempty"`
	Team          string `json:"team,omitempty"`
	Location      string `json:"location,omitempty"`
}

// Env labels summarize a category's env_score for display.
const (
	EnvLabelGood    = "good"
	EnvLabelNeutral = "neutral"
	EnvLabelBad     = "bad"
)

// EnvLabelForScore maps an env_score to its display label:
// scores 1-3 are "good", 4-7 "neutral", 8-10 "bad".
func EnvLabelForScore(score int) string {
	switch {
	case score <= 3:
		return EnvLabelGood
	case score <= 7:
		return EnvLabelNeutral
	default:
		return EnvLabelBad
	}
}
