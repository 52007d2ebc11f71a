package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/ecotrace/ecotrace/internal/catalog"
)

// ListCategories returns active catalog records. The display name comes
// from the last hierarchy segment, then the group name, then the id, and
// a null or negative carbon factor reads as 0.
func (r *Repository) ListCategories(ctx context.Context) ([]catalog.Record, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			category_id,
			group_name,
			hierarchy,
			co2e_per_dollar,
			is_active
		FROM %s.%s
		WHERE is_active IS NULL OR is_active = TRUE
		ORDER BY category_id
	`, r.dataset, categoriesTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query read: %w", err)
	}

	var out []catalog.Record
	for {
		var row CategoryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategories: iter next: %w", err)
		}
		if row.CategoryID == "" {
			continue
		}
		out = append(out, categoryRecord(row))
	}
	return out, nil
}

func categoryRecord(row CategoryRow) catalog.Record {
	co2e := 0.0
	if row.CO2ePerDollar.Valid && row.CO2ePerDollar.Float64 > 0 {
		co2e = row.CO2ePerDollar.Float64
	}
	return catalog.Record{
		CategoryID:    row.CategoryID,
		Name:          categoryName(row),
		CO2ePerDollar: co2e,
	}
}

// InsertCategories streams catalog records into the categories table. The
// record name lands in the hierarchy column, so a later ListCategories
// derives the same display name back out.
func (r *Repository) InsertCategories(ctx context.Context, records []catalog.Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]*CategoryRow, 0, len(records))
	for _, rec := range records {
		if rec.CategoryID == "" {
			continue
		}
		rows = append(rows, &CategoryRow{
			CategoryID:    rec.CategoryID,
			Hierarchy:     toNullString(rec.Name),
			CO2ePerDollar: bigquery.NullFloat64{Float64: rec.CO2ePerDollar, Valid: true},
			IsActive:      bigquery.NullBool{Bool: true, Valid: true},
		})
	}
	if err := r.table(categoriesTable).Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertCategories: put: %w", err)
	}
	return nil
}

func categoryName(row CategoryRow) string {
	if row.Hierarchy.Valid {
		segments := strings.Split(row.Hierarchy.StringVal, ",")
		if name := strings.TrimSpace(segments[len(segments)-1]); name != "" {
			return name
		}
	}
	if row.Group.Valid {
		if group := strings.TrimSpace(row.Group.StringVal); group != "" {
			return group
		}
	}
	return row.CategoryID
}
