package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	UserID   string `bigquery:"user_id"`  // NULLABLE, defaults to guest downstream
	Merchant string `bigquery:"merchant"` // REQUIRED

	CategoryID bigquery.NullString `bigquery:"category_id"` // NULLABLE

	Amount          float64           `bigquery:"amount"`           // REQUIRED FLOAT64
	TransactionDate bigquery.NullDate `bigquery:"transaction_date"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED (default CURRENT_TIMESTAMP)
}

type CategoryRow struct {
	CategoryID string `bigquery:"category_id"` // REQUIRED

	Group     bigquery.NullString `bigquery:"group_name"` // NULLABLE
	Hierarchy bigquery.NullString `bigquery:"hierarchy"`  // NULLABLE, comma separated, leaf last

	CO2ePerDollar bigquery.NullFloat64 `bigquery:"co2e_per_dollar"` // NULLABLE, missing reads as 0

	IsActive bigquery.NullBool `bigquery:"is_active"` // NULLABLE
}

type UserProfileRow struct {
	UserID string `bigquery:"user_id"` // REQUIRED

	DisplayName   bigquery.NullString `bigquery:"display_name"`   // NULLABLE
	Persona       bigquery.NullString `bigquery:"persona"`        // NULLABLE
	FocusArea     bigquery.NullString `bigquery:"focus_area"`     // NULLABLE
	BadgeOverride bigquery.NullString `bigquery:"badge_override"` // NULLABLE
	Team          bigquery.NullString `bigquery:"team"`           // NULLABLE
	Location      bigquery.NullString `bigquery:"location"`       // NULLABLE
}

// dateOrZero converts a nullable BigQuery date to a time. The zero time
// marks an absent date, matching how the CSV source degrades bad dates.
func dateOrZero(d bigquery.NullDate) time.Time {
	if !d.Valid {
		return time.Time{}
	}
	return d.Date.In(time.UTC)
}

// nullDateOf wraps a time into a nullable BigQuery date.
func nullDateOf(t time.Time) bigquery.NullDate {
	if t.IsZero() {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: civil.DateOf(t), Valid: true}
}

func toNullString(s string) bigquery.NullString {
	if s == "" {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: s, Valid: true}
}
