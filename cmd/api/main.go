package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	acksinmemory "github.com/ecotrace/ecotrace/internal/acks/inmemory"
	"github.com/ecotrace/ecotrace/internal/api/handlers"
	"github.com/ecotrace/ecotrace/internal/api/middleware"
	"github.com/ecotrace/ecotrace/internal/catalog"
	"github.com/ecotrace/ecotrace/internal/classifier"
	"github.com/ecotrace/ecotrace/internal/csvdata"
	"github.com/ecotrace/ecotrace/internal/domain"
	"github.com/ecotrace/ecotrace/internal/gcsdata"
	infraBQ "github.com/ecotrace/ecotrace/internal/infra/bigquery"
	"github.com/ecotrace/ecotrace/internal/insights"
	"github.com/ecotrace/ecotrace/internal/jobs"
	"github.com/ecotrace/ecotrace/internal/jobs/inmemory"
	"github.com/ecotrace/ecotrace/internal/logger"
	"github.com/ecotrace/ecotrace/internal/notionsync"
)

func main() {
	var (
		port       = flag.String("port", "8080", "HTTP server port")
		source     = flag.String("source", "csv", "Data source: csv or bigquery")
		txPath     = flag.String("transactions", "data/transactions.csv", "Transactions CSV path or gs:// URI (csv source)")
		catPath    = flag.String("categories", "data/categories.csv", "Categories CSV path or gs:// URI (csv source)")
		project    = flag.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "GCP project id (bigquery source, or set GOOGLE_CLOUD_PROJECT)")
		dataset    = flag.String("dataset", infraBQ.DefaultDatasetID, "BigQuery dataset id (bigquery source)")
		model      = flag.String("model", classifier.DefaultModelName, "Gemini model for merchant classification")
		notionDB   = flag.String("notion-db", os.Getenv("NOTION_DIGEST_DB"), "Notion database id for the leaderboard digest (or set NOTION_DIGEST_DB)")
		notionDry  = flag.Bool("notion-dry-run", false, "Log Notion digest mutations without executing them")
		noClassify = flag.Bool("no-classify", false, "Disable merchant auto-classification")
	)
	flag.Parse()

	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	svcCfg := insights.Config{
		Acks:   acksinmemory.NewStore(),
		Logger: log,
	}

	switch *source {
	case "csv":
		txLocal, err := localize(ctx, *txPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *txPath).Msg("Failed to fetch transactions file")
		}
		catLocal, err := localize(ctx, *catPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *catPath).Msg("Failed to fetch categories file")
		}
		svcCfg.Transactions = csvdata.NewTransactionStore(txLocal, log)
		svcCfg.Categories = csvdata.NewCategoryFile(catLocal, log)
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

	// Job infrastructure for the Notion digest.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)
	svcCfg.Publisher = jobQueue

	if !*noClassify {
		cat, err := loadCatalog(ctx, svcCfg.Categories)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load category catalog")
		}
		svcCfg.Classifier = classifier.NewGeminiClassifier(cat, *model)
	}

	svc := insights.NewService(svcCfg)

	notionToken := os.Getenv("NOTION_TOKEN")
	var notionClient notionsync.NotionService
	if notionToken != "" && *notionDB != "" {
		notionClient = notionsync.NewNotionClient(notionToken)
	} else {
		log.Warn().Msg("Notion token or database not configured - digest sync jobs will be skipped")
	}

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		syncJob, ok := job.(*jobs.SyncDigestJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", syncJob.JobID).
			Str("trigger", syncJob.Trigger).
			Msg("Processing digest sync job")

		if notionClient == nil {
			log.Info().Str("job_id", syncJob.JobID).Msg("Notion not configured, skipping digest sync")
			return nil
		}

		entries, err := svc.Leaderboard(ctx, 0)
		if err != nil {
			return fmt.Errorf("digest sync: %w", err)
		}
		return notionsync.SyncLeaderboard(ctx, notionClient, *notionDB, entries, *notionDry)
	}

	go func() {
		log.Info().Msg("Starting digest sync worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Digest sync worker stopped with error")
		}
	}()

	transactionsHandler := handlers.NewTransactionsHandler(svc, log)
	categoriesHandler := handlers.NewCategoriesHandler(svc, log)
	leaderboardHandler := handlers.NewLeaderboardHandler(svc, jobQueue, log)
	coachingHandler := handlers.NewCoachingHandler(svc, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			transactionsHandler.ListTransactions(w, r)
		case http.MethodPost:
			transactionsHandler.CreateTransaction(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/classify", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			transactionsHandler.Classify(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			categoriesHandler.ListCategories(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/categories/reload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			categoriesHandler.ReloadCatalog(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			leaderboardHandler.GetLeaderboard(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/leaderboard/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			leaderboardHandler.EnqueueSync(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/ecoscore", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			leaderboardHandler.GetEcoScore(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/coaching/suggestions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			coachingHandler.GetSuggestions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/coaching/suggestions/ack", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			coachingHandler.AcknowledgeSuggestion(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Str("source", *source).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

// loadCatalog builds the classifier's category catalog once at startup.
// A missing source yields an empty catalog, which disables prediction
// filtering but keeps the server running.
func loadCatalog(ctx context.Context, src insights.CategorySource) (*catalog.Catalog, error) {
	records, err := src.ListCategories(ctx)
	if err != nil && !errors.Is(err, domain.ErrSourceMissing) {
		return nil, err
	}
	return catalog.Load(records), nil
}

// localize downloads a gs:// data file into the OS temp dir so the CSV
// stores can read it; plain paths pass through untouched.
func localize(ctx context.Context, path string) (string, error) {
	if !gcsdata.IsGCSURI(path) {
		return path, nil
	}
	data, err := gcsdata.Fetch(ctx, path)
	if err != nil {
		return "", err
	}
	local := filepath.Join(os.TempDir(), gcsdata.Filename(path))
	if err := os.WriteFile(local, data, 0o644); err != nil {
		return "", fmt.Errorf("localize: write %q: %w", local, err)
	}
	return local, nil
}
