package notionsync

import (
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/ecotrace/ecotrace/internal/domain"
)

// LeaderboardEntryToNotionProperties converts a leaderboard entry to Notion
// properties for the digest database. The "User ID" title property keys the
// page for idempotent re-syncs.
func LeaderboardEntryToNotionProperties(entry domain.LeaderboardEntry, syncedAt time.Time) notionapi.Properties {
	props := notionapi.Properties{
		"User ID": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: entry.UserID,
					},
				},
			},
		},
		"Rank": notionapi.NumberProperty{
			Number: float64(entry.Rank),
		},
		"Badge": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: entry.Badge,
			},
		},
		"Trend": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: entry.Trend,
			},
		},
		"Streak Days": notionapi.NumberProperty{
			Number: float64(entry.StreakDays),
		},
		"Total CO2 (kg)": notionapi.NumberProperty{
			Number: entry.TotalCO2,
		},
		"Low Impact Ratio": notionapi.NumberProperty{
			Number: entry.LowImpactRatio,
		},
		"Synced At": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(syncedAt)
					return &d
				}(),
			},
		},
	}

	if entry.DisplayName != "" {
		props["Display Name"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: entry.DisplayName,
					},
				},
			},
		}
	}

	if entry.Team != "" {
		props["Team"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: entry.Team,
			},
		}
	}

	// Nil eco points (profile-only users) leave the column empty in Notion.
	if entry.EcoPoints != nil {
		props["Eco Points"] = notionapi.NumberProperty{
			Number: *entry.EcoPoints,
		}
	}

	if entry.ImpactDeltaPct != nil {
		props["Impact Delta %"] = notionapi.NumberProperty{
			Number: *entry.ImpactDeltaPct,
		}
	}

	if entry.TopCategory != "" {
		props["Top Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: entry.TopCategory,
			},
		}
	}

	if len(entry.CategoryMix) > 0 {
		var ids []string
		for _, share := range entry.CategoryMix {
			ids = append(ids, share.CategoryID)
		}
		props["Category Mix"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: strings.Join(ids, ", "),
					},
				},
			},
		}
	}

	return props
}

// extractUserID extracts the user id from a digest page's title property.
// Returns empty string if not found.
func extractUserID(page notionapi.Page) string {
	if prop, ok := page.Properties["User ID"]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
