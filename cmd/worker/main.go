// The worker pushes the leaderboard digest to Notion on a fixed interval,
// independent of the API process. Useful when the API runs without a
// Notion token or when the digest should refresh even on quiet days. It
// can also drop a JSON snapshot of the board into GCS.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecotrace/ecotrace/internal/csvdata"
	"github.com/ecotrace/ecotrace/internal/gcsdata"
	infraBQ "github.com/ecotrace/ecotrace/internal/infra/bigquery"
	"github.com/ecotrace/ecotrace/internal/insights"
	"github.com/ecotrace/ecotrace/internal/logger"
	"github.com/ecotrace/ecotrace/internal/notionsync"
)

func main() {
	var (
		source   = flag.String("source", "csv", "Data source: csv or bigquery")
		txPath   = flag.String("transactions", "data/transactions.csv", "Transactions CSV path (csv source)")
		catPath  = flag.String("categories", "data/categories.csv", "Categories CSV path (csv source)")
		project  = flag.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "GCP project id (bigquery source)")
		dataset  = flag.String("dataset", infraBQ.DefaultDatasetID, "BigQuery dataset id (bigquery source)")
		notionDB = flag.String("notion-db", os.Getenv("NOTION_DIGEST_DB"), "Notion database id for the leaderboard digest")
		snapshot = flag.String("snapshot", "", "gs:// URI to write a JSON leaderboard snapshot to after each sync")
		interval = flag.Duration("interval", 15*time.Minute, "Time between digest syncs")
		dryRun   = flag.Bool("dry-run", false, "Log Notion mutations without executing them")
		once     = flag.Bool("once", false, "Sync once and exit")
	)
	flag.Parse()

	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	notionToken := os.Getenv("NOTION_TOKEN")
	notionReady := notionToken != "" && *notionDB != ""
	if !notionReady && *snapshot == "" {
		log.Fatal().Msg("NOTION_TOKEN with a Notion database id, or -snapshot, is required")
	}

	svcCfg := insights.Config{Logger: log}
	switch *source {
	case "csv":
		svcCfg.Transactions = csvdata.NewTransactionStore(*txPath, log)
		svcCfg.Categories = csvdata.NewCategoryFile(*catPath, log)
	case "bigquery":
		repo, err := infraBQ.NewRepository(ctx, *project, *dataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer repo.Close()
		svcCfg.Transactions = repo
		svcCfg.Categories = repo
		svcCfg.Profiles = repo
	default:
		log.Fatal().Str("source", *source).Msg("Unknown source, want csv or bigquery")
	}

	svc := insights.NewService(svcCfg)

	var notionClient *notionsync.NotionClient
	if notionReady {
		notionClient = notionsync.NewNotionClient(notionToken)
	}

	sync := func() {
		syncCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		entries, err := svc.Leaderboard(syncCtx, 0)
		if err != nil {
			log.Error().Err(err).Msg("Failed to build leaderboard")
			return
		}
		if notionClient != nil {
			if err := notionsync.SyncLeaderboard(syncCtx, notionClient, *notionDB, entries, *dryRun); err != nil {
				log.Error().Err(err).Msg("Digest sync failed")
			}
		}
		if *snapshot != "" {
			data, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				log.Error().Err(err).Msg("Failed to encode leaderboard snapshot")
				return
			}
			if err := gcsdata.Upload(syncCtx, *snapshot, data); err != nil {
				log.Error().Err(err).Msg("Failed to upload leaderboard snapshot")
				return
			}
			log.Info().Str("uri", *snapshot).Int("entries", len(entries)).Msg("Leaderboard snapshot uploaded")
		}
	}

	log.Info().Dur("interval", *interval).Bool("dry_run", *dryRun).Msg("Starting digest worker")
	sync()
	if *once {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			sync()
		case <-quit:
			log.Info().Msg("Digest worker exited")
			return
		}
	}
}
