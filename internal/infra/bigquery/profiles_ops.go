package bigquery

import (
	"context"
	"fmt"

	"google.golang.org/api/iterator"

	"github.com/ecotrace/ecotrace/internal/domain"
)

// ListProfiles returns user profiles keyed by user id. Users present here
// but absent from the transaction population still get leaderboard rows.
func (r *Repository) ListProfiles(ctx context.Context) (map[string]domain.UserProfile, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			user_id,
			display_name,
			persona,
			focus_area,
			badge_override,
			team,
			location
		FROM %s.%s
	`, r.dataset, profilesTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListProfiles: query read: %w", err)
	}

	out := make(map[string]domain.UserProfile)
	for {
		var row UserProfileRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListProfiles: iter next: %w", err)
		}
		if row.UserID == "" {
			continue
		}
		out[row.UserID] = domain.UserProfile{
			UserID:        row.UserID,
			DisplayName:   row.DisplayName.StringVal,
			Persona:       row.Persona.StringVal,
			FocusArea:     row.FocusArea.StringVal,
			BadgeOverride: row.BadgeOverride.StringVal,
			Team:          row.Team.StringVal,
			Location:      row.Location.StringVal,
		}
	}
	return out, nil
}
