// Package notionsync mirrors the computed leaderboard into a Notion
// database so the digest is browsable outside the API. The sync is a full
// reconciliation: stale pages are archived, known users are updated in
// place, new users get fresh pages.
package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/ecotrace/ecotrace/internal/domain"
	"github.com/ecotrace/ecotrace/internal/logger"
)

// SyncLeaderboard reconciles the Notion digest database with the given
// leaderboard entries. Pages whose user id no longer appears on the
// leaderboard are archived. With dryRun set, every mutation is logged but
// not executed.
func SyncLeaderboard(ctx context.Context, notionClient NotionService, notionDBID string, entries []domain.LeaderboardEntry, dryRun bool) error {
	log := logger.FromContext(ctx)

	log.Info().
		Bool("dry_run", dryRun).
		Int("entry_count", len(entries)).
		Msg("Starting leaderboard sync to Notion")

	validUserIDs := make(map[string]bool)
	for _, entry := range entries {
		validUserIDs[entry.UserID] = true
	}

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return fmt.Errorf("SyncLeaderboard: failed to query Notion pages: %w", err)
	}

	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	// Map existing user ids to their page ids for in-place updates.
	existingPages := make(map[string]string)

	var deleted int
	for _, page := range notionPages {
		userID := extractUserID(page)

		// Pages without a user id (from an old schema) or for users no
		// longer on the board are stale.
		if userID != "" && validUserIDs[userID] {
			existingPages[userID] = string(page.ID)
			continue
		}

		if dryRun {
			log.Info().
				Str("user_id", userID).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would delete stale Notion page")
			deleted++
			continue
		}

		if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("user_id", userID).
				Str("page_id", string(page.ID)).
				Msg("Failed to delete stale Notion page")
			continue
		}
		log.Info().
			Str("user_id", userID).
			Str("page_id", string(page.ID)).
			Msg("Deleted stale Notion page")
		deleted++
	}

	syncedAt := time.Now().UTC()

	var created, updated int
	for _, entry := range entries {
		pageID, exists := existingPages[entry.UserID]

		if dryRun {
			if exists {
				log.Info().
					Str("user_id", entry.UserID).
					Str("page_id", pageID).
					Msg("[DRY RUN] Would update Notion page")
				updated++
			} else {
				log.Info().
					Str("user_id", entry.UserID).
					Msg("[DRY RUN] Would create Notion page")
				created++
			}
			continue
		}

		props := LeaderboardEntryToNotionProperties(entry, syncedAt)

		if exists {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().
					Err(err).
					Str("user_id", entry.UserID).
					Str("page_id", pageID).
					Msg("Failed to update Notion page")
				continue
			}
			updated++
		} else {
			page, err := notionClient.CreatePage(ctx, notionDBID, props)
			if err != nil {
				log.Warn().
					Err(err).
					Str("user_id", entry.UserID).
					Msg("Failed to create Notion page")
				continue
			}
			log.Info().
				Str("user_id", entry.UserID).
				Str("page_id", string(page.ID)).
				Msg("Created Notion page")
			created++
		}
	}

	log.Info().
		Int("deleted", deleted).
		Int("created", created).
		Int("updated", updated).
		Int("total", len(entries)).
		Msg("Leaderboard sync completed")

	return nil
}

// queryAllNotionPages queries all pages from a Notion database.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
