package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ecotrace/ecotrace/internal/catalog"
	"github.com/ecotrace/ecotrace/internal/classifier"
	"github.com/ecotrace/ecotrace/internal/csvdata"
	"github.com/ecotrace/ecotrace/internal/domain"
	infraBQ "github.com/ecotrace/ecotrace/internal/infra/bigquery"
	"github.com/ecotrace/ecotrace/internal/insights"
	"github.com/ecotrace/ecotrace/internal/logger"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "leaderboard":
		runLeaderboard(log)
	case "ecoscore":
		runEcoScore(log)
	case "coach":
		runCoach(log)
	case "classify":
		runClassify(log)
	case "add":
		runAdd(log)
	case "seed":
		runSeed(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("EcoTrace CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  leaderboard  Print the eco-points leaderboard")
	fmt.Println("  ecoscore     Print one user's eco score")
	fmt.Println("  coach        Print weekly coaching suggestions for a user")
	fmt.Println("  classify     Classify a merchant name into categories")
	fmt.Println("  add          Record a new transaction")
	fmt.Println("  seed         Load the CSV seed files into BigQuery")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// sourceFlags registers the shared data-source flags on a flag set.
type sourceFlags struct {
	source  *string
	txPath  *string
	catPath *string
	project *string
	dataset *string
}

func addSourceFlags(fs *flag.FlagSet) sourceFlags {
	return sourceFlags{
		source:  fs.String("source", "csv", "Data source: csv or bigquery"),
		txPath:  fs.String("transactions", "data/transactions.csv", "Transactions CSV path (csv source)"),
		catPath: fs.String("categories", "data/categories.csv", "Categories CSV path (csv source)"),
		project: fs.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "GCP project id (bigquery source)"),
		dataset: fs.String("dataset", infraBQ.DefaultDatasetID, "BigQuery dataset id (bigquery source)"),
	}
}

// buildService wires an insights service for one CLI invocation. The
// returned cleanup closes any underlying clients.
func buildService(ctx context.Context, sf sourceFlags, log zerolog.Logger) (*insights.Service, func(), error) {
	cfg := insights.Config{Logger: log}
	cleanup := func() {}

	switch *sf.source {
	case "csv":
		cfg.Transactions = csvdata.NewTransactionStore(*sf.txPath, log)
		cfg.Categories = csvdata.NewCategoryFile(*sf.catPath, log)
	case "bigquery":
		repo, err := infraBQ.NewRepository(ctx, *sf.project, *sf.dataset)
		if err != nil {
			return nil, nil, fmt.Errorf("buildService: %w", err)
		}
		cfg.Transactions = repo
		cfg.Categories = repo
		cfg.Profiles = repo
		cleanup = func() { repo.Close() }
	default:
		return nil, nil, fmt.Errorf("buildService: unknown source %q", *sf.source)
	}

	return insights.NewService(cfg), cleanup, nil
}

func runLeaderboard(log zerolog.Logger) {
	fs := flag.NewFlagSet("leaderboard", flag.ExitOnError)
	sf := addSourceFlags(fs)
	limit := fs.Int("limit", 0, "Maximum entries to print (0 = default)")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)
	svc, cleanup, err := buildService(ctx, sf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build service")
	}
	defer cleanup()

	entries, err := svc.Leaderboard(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build leaderboard")
	}

	fmt.Printf("%-4s %-16s %-8s %-12s %-7s %s\n", "RANK", "USER", "POINTS", "BADGE", "STREAK", "TREND")
	for _, e := range entries {
		points := "-"
		if e.EcoPoints != nil {
			points = fmt.Sprintf("%.2f", *e.EcoPoints)
		}
		name := e.UserID
		if e.DisplayName != "" {
			name = e.DisplayName
		}
		fmt.Printf("%-4d %-16s %-8s %-12s %-7d %s\n", e.Rank, name, points, e.Badge, e.StreakDays, e.Trend)
	}
}

func runEcoScore(log zerolog.Logger) {
	fs := flag.NewFlagSet("ecoscore", flag.ExitOnError)
	sf := addSourceFlags(fs)
	userID := fs.String("user", "", "User id to score")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	ctx := logger.WithContext(context.Background(), log)
	svc, cleanup, err := buildService(ctx, sf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build service")
	}
	defer cleanup()

	result, err := svc.EcoScore(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute eco score")
	}

	fmt.Printf("User:       %s\n", result.UserID)
	fmt.Printf("Total CO2:  %.2f kg\n", result.TotalCO2)
	fmt.Printf("Percentile: %.2f\n", result.EcoScorePercentile)
	fmt.Printf("Eco points: %.2f\n", result.EcoPoints)
}

func runCoach(log zerolog.Logger) {
	fs := flag.NewFlagSet("coach", flag.ExitOnError)
	sf := addSourceFlags(fs)
	userID := fs.String("user", "", "User id to coach")
	weeks := fs.Int("weeks", 0, "Weeks of history to consider (0 = default)")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	ctx := logger.WithContext(context.Background(), log)
	svc, cleanup, err := buildService(ctx, sf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build service")
	}
	defer cleanup()

	payload, err := svc.Coaching(ctx, *userID, *weeks)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build coaching payload")
	}

	fmt.Printf("Coaching for %s\n", payload.UserID)
	for _, p := range payload.WeeklyProfiles {
		fmt.Printf("\nWeek %d/%d (from %s): spend %.2f, CO2 %.2f kg\n",
			p.Year, p.Week, p.WeekStart, p.TotalSpend, p.TotalCO2)
		for _, c := range p.TopCategories {
			fmt.Printf("  %-20s %8.2f kg  [%s]\n", c.CategoryName, c.TotalCO2, c.EnvLabel)
		}
	}
	fmt.Println("\nSuggestions:")
	for _, s := range payload.Suggestions {
		fmt.Printf("  - %s\n    %s\n    (save ~%.2f kg, id %s)\n",
			s.Title, s.Description, s.EstimatedSavingsKg, s.SuggestionID)
	}
}

func runClassify(log zerolog.Logger) {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	sf := addSourceFlags(fs)
	merchant := fs.String("merchant", "", "Merchant name to classify")
	model := fs.String("model", classifier.DefaultModelName, "Gemini model")
	fs.Parse(os.Args[2:])

	if *merchant == "" {
		log.Fatal().Msg("Error: --merchant is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var catSrc insights.CategorySource
	switch *sf.source {
	case "csv":
		catSrc = csvdata.NewCategoryFile(*sf.catPath, log)
	case "bigquery":
		repo, err := infraBQ.NewRepository(ctx, *sf.project, *sf.dataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer repo.Close()
		catSrc = repo
	default:
		log.Fatal().Str("source", *sf.source).Msg("Unknown source")
	}

	records, err := catSrc.ListCategories(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load categories")
	}

	cls := classifier.NewGeminiClassifier(catalog.Load(records), *model)
	predictions, err := cls.Predict(ctx, *merchant)
	if err != nil {
		log.Fatal().Err(err).Msg("Classification failed")
	}

	if len(predictions) == 0 {
		fmt.Println("No prediction.")
		return
	}
	for _, p := range predictions {
		fmt.Printf("  %-12s %.2f\n", p.CategoryID, p.Confidence)
	}
}

func runAdd(log zerolog.Logger) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	sf := addSourceFlags(fs)
	merchant := fs.String("merchant", "", "Merchant name")
	category := fs.String("category", "", "Category id (blank = uncategorized)")
	amount := fs.Float64("amount", 0, "Amount spent")
	date := fs.String("date", time.Now().Format("2006-01-02"), "Transaction date (YYYY-MM-DD)")
	user := fs.String("user", "", "User id (blank = guest)")
	fs.Parse(os.Args[2:])

	if *merchant == "" {
		log.Fatal().Msg("Error: --merchant is required")
	}

	parsed, err := time.Parse("2006-01-02", *date)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid --date, want YYYY-MM-DD")
	}

	ctx := logger.WithContext(context.Background(), log)
	svc, cleanup, err := buildService(ctx, sf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build service")
	}
	defer cleanup()

	tx, err := svc.AddTransaction(ctx, domain.Transaction{
		Merchant:   *merchant,
		CategoryID: *category,
		Amount:     *amount,
		Date:       parsed,
		UserID:     *user,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add transaction")
	}

	fmt.Printf("Recorded %s: %s %.2f (%s) for %s\n",
		tx.TransactionID, tx.Merchant, tx.Amount, tx.CategoryID, tx.UserID)
}

func runSeed(log zerolog.Logger) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	txPath := fs.String("transactions", "data/transactions.csv", "Transactions CSV to load")
	catPath := fs.String("categories", "data/categories.csv", "Categories CSV to load")
	project := fs.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "GCP project id")
	dataset := fs.String("dataset", infraBQ.DefaultDatasetID, "BigQuery dataset id")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewRepository(ctx, *project, *dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	catFile, err := os.Open(*catPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *catPath).Msg("Failed to open categories file")
	}
	records := csvdata.ParseCategories(catFile, log)
	catFile.Close()

	if err := repo.InsertCategories(ctx, records); err != nil {
		log.Fatal().Err(err).Msg("Failed to insert categories")
	}

	txFile, err := os.Open(*txPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *txPath).Msg("Failed to open transactions file")
	}
	txs := csvdata.ParseTransactions(txFile, log)
	txFile.Close()

	for _, tx := range txs {
		if tx.TransactionID == "" {
			tx.TransactionID = uuid.New().String()
		}
		if err := repo.AppendTransaction(ctx, tx); err != nil {
			log.Fatal().Err(err).Str("transaction_id", tx.TransactionID).Msg("Failed to append transaction")
		}
	}

	fmt.Printf("Seeded %d categories and %d transactions into %s.%s\n",
		len(records), len(txs), *project, *dataset)
}
