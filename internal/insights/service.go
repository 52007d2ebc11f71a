// Package insights composes the sources, the catalog and the pure ranking
// packages into the operations the API and CLI expose. All derived numbers
// (summaries, leaderboard, coaching) are recomputed per request from the
// current transaction population; only the catalog is cached.
package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ecotrace/ecotrace/internal/carbon"
	"github.com/ecotrace/ecotrace/internal/catalog"
	"github.com/ecotrace/ecotrace/internal/classifier"
	"github.com/ecotrace/ecotrace/internal/coach"
	"github.com/ecotrace/ecotrace/internal/domain"
	"github.com/ecotrace/ecotrace/internal/jobs"
	"github.com/ecotrace/ecotrace/internal/leaderboard"
)

// Service wires the transaction, category and profile sources together.
// Profiles, the classifier, the ack store and the job publisher are all
// optional: a nil collaborator disables the corresponding feature.
type Service struct {
	txs        TransactionSource
	categories CategorySource
	profiles   ProfileSource
	acks       AckStore
	classifier classifier.Classifier
	publisher  jobs.Publisher
	log        zerolog.Logger

	mu  sync.RWMutex
	cat *catalog.Catalog
}

// Config carries the service collaborators.
type Config struct {
	Transactions TransactionSource
	Categories   CategorySource
	Profiles     ProfileSource
	Acks         AckStore
	Classifier   classifier.Classifier
	Publisher    jobs.Publisher
	Logger       zerolog.Logger
}

// NewService builds a service. The catalog is loaded lazily on first use.
func NewService(cfg Config) *Service {
	return &Service{
		txs:        cfg.Transactions,
		categories: cfg.Categories,
		profiles:   cfg.Profiles,
		acks:       cfg.Acks,
		classifier: cfg.Classifier,
		publisher:  cfg.Publisher,
		log:        cfg.Logger,
	}
}

// catalogFor returns the cached catalog, loading it on first use. A missing
// category source degrades to an empty catalog: every category then scores
// neutral.
func (s *Service) catalogFor(ctx context.Context) (*catalog.Catalog, error) {
	s.mu.RLock()
	cat := s.cat
	s.mu.RUnlock()
	if cat != nil {
		return cat, nil
	}
	return s.reload(ctx)
}

// ReloadCatalog rebuilds the catalog from the category source, swapping it
// in atomically.
func (s *Service) ReloadCatalog(ctx context.Context) error {
	_, err := s.reload(ctx)
	return err
}

func (s *Service) reload(ctx context.Context) (*catalog.Catalog, error) {
	var records []catalog.Record
	if s.categories != nil {
		var err error
		records, err = s.categories.ListCategories(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrSourceMissing) {
				return nil, fmt.Errorf("reload: %w", err)
			}
			s.log.Warn().Err(err).Msg("Category source missing, using empty catalog")
		}
	}
	cat := catalog.Load(records)

	s.mu.Lock()
	s.cat = cat
	s.mu.Unlock()

	s.log.Info().Int("categories", cat.Len()).Msg("Catalog loaded")
	return cat, nil
}

// listTransactions reads the population, degrading a missing source to an
// empty slice.
func (s *Service) listTransactions(ctx context.Context) ([]domain.Transaction, error) {
	txs, err := s.txs.ListTransactions(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSourceMissing) {
			s.log.Warn().Err(err).Msg("Transaction source missing, using empty population")
			return nil, nil
		}
		return nil, err
	}
	return txs, nil
}

// summaries aggregates the full population once per request.
func (s *Service) summaries(ctx context.Context) (map[string]*domain.UserCarbonSummary, *catalog.Catalog, error) {
	cat, err := s.catalogFor(ctx)
	if err != nil {
		return nil, nil, err
	}
	txs, err := s.listTransactions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("summaries: %w", err)
	}
	return carbon.Aggregate(txs, cat), cat, nil
}

// Leaderboard ranks all users by eco points, capped to limit entries.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	summaries, _, err := s.summaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("Leaderboard: %w", err)
	}

	var profiles map[string]domain.UserProfile
	if s.profiles != nil {
		profiles, err = s.profiles.ListProfiles(ctx)
		if err != nil {
			// Profiles are presentation-only; the board still ranks without them.
			s.log.Warn().Err(err).Msg("Profile source unavailable, building leaderboard without overrides")
			profiles = nil
		}
	}

	return leaderboard.Build(summaries, leaderboard.Options{Limit: limit, Profiles: profiles}), nil
}

// EcoScore computes one user's percentile and eco points against the full
// population.
func (s *Service) EcoScore(ctx context.Context, userID string) (domain.EcoScoreResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.EcoScoreResult{}, domain.NewValidationError("user_id", "is required")
	}

	summaries, _, err := s.summaries(ctx)
	if err != nil {
		return domain.EcoScoreResult{}, fmt.Errorf("EcoScore: %w", err)
	}
	return leaderboard.EcoScore(userID, summaries), nil
}

// Coaching builds the weekly profiles and suggestions for one user.
// Previously acknowledged suggestions come back with their recorded action
// as status instead of "new".
func (s *Service) Coaching(ctx context.Context, userID string, weeks int) (domain.CoachingPayload, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CoachingPayload{}, domain.NewValidationError("user_id", "is required")
	}

	cat, err := s.catalogFor(ctx)
	if err != nil {
		return domain.CoachingPayload{}, fmt.Errorf("Coaching: %w", err)
	}
	txs, err := s.listTransactions(ctx)
	if err != nil {
		return domain.CoachingPayload{}, fmt.Errorf("Coaching: %w", err)
	}

	payload := coach.GeneratePayload(userID, txs, cat, weeks, time.Now())

	if s.acks != nil {
		acked, err := s.acks.List(ctx, userID)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("Ack store unavailable, suggestions stay new")
		} else {
			for i := range payload.Suggestions {
				if ack, ok := acked[payload.Suggestions[i].SuggestionID]; ok {
					payload.Suggestions[i].Status = ack.Action
				}
			}
		}
	}

	return payload, nil
}

// Acknowledge records a user's reaction to a suggestion. Only "accepted"
// and "dismissed" are valid actions; anything else is rejected without
// recording.
func (s *Service) Acknowledge(ctx context.Context, userID, suggestionID, action string) (domain.AckResult, error) {
	userID = strings.TrimSpace(userID)
	suggestionID = strings.TrimSpace(suggestionID)
	if userID == "" {
		return domain.AckResult{}, domain.NewValidationError("user_id", "is required")
	}
	if suggestionID == "" {
		return domain.AckResult{}, domain.NewValidationError("suggestion_id", "is required")
	}

	normalized, err := coach.ParseAckAction(action)
	if err != nil {
		return domain.AckResult{}, err
	}

	if s.acks != nil {
		ack := domain.Acknowledgement{
			UserID:       userID,
			SuggestionID: suggestionID,
			Action:       normalized,
			RecordedAt:   time.Now().UTC(),
		}
		if err := s.acks.Record(ctx, ack); err != nil {
			return domain.AckResult{}, fmt.Errorf("Acknowledge: %w", err)
		}
	}

	return domain.AckResult{
		Status:       "recorded",
		UserID:       userID,
		SuggestionID: suggestionID,
		Action:       normalized,
	}, nil
}

// ListTransactions returns the population annotated with env labels,
// optionally filtered to one user.
func (s *Service) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	cat, err := s.catalogFor(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	txs, err := s.listTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}

	userID = strings.TrimSpace(userID)
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if userID != "" && tx.UserID != userID {
			continue
		}
		tx.EnvLabel = domain.EnvLabelForScore(cat.Resolve(tx.CategoryID).EnvScore)
		out = append(out, tx)
	}
	return out, nil
}

// AddTransaction validates and stores a new transaction. Merchant and date
// are required. A missing user defaults to guest, a missing id gets a fresh
// UUID, and a missing category is auto-classified from the merchant name
// when a classifier is wired. A successful append schedules a digest sync.
func (s *Service) AddTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	tx.Merchant = strings.TrimSpace(tx.Merchant)
	if tx.Merchant == "" {
		return domain.Transaction{}, domain.NewValidationError("merchant", "is required")
	}
	if tx.Amount < 0 {
		return domain.Transaction{}, domain.NewValidationError("amount", "must not be negative")
	}
	if tx.Date.IsZero() {
		return domain.Transaction{}, domain.NewValidationError("date", "is required")
	}

	tx.UserID = strings.TrimSpace(tx.UserID)
	if tx.UserID == "" {
		tx.UserID = domain.DefaultUserID
	}
	if tx.TransactionID == "" {
		tx.TransactionID = uuid.New().String()
	}

	tx.CategoryID = strings.TrimSpace(tx.CategoryID)
	if tx.CategoryID == "" && s.classifier != nil {
		predictions, err := s.classifier.Predict(ctx, tx.Merchant)
		if err != nil {
			s.log.Warn().Err(err).Str("merchant", tx.Merchant).Msg("Classification failed, storing uncategorized")
		} else if len(predictions) > 0 {
			tx.CategoryID = predictions[0].CategoryID
			s.log.Info().
				Str("merchant", tx.Merchant).
				Str("category_id", tx.CategoryID).
				Float64("confidence", predictions[0].Confidence).
				Msg("Auto-classified transaction")
		}
	}

	if err := s.txs.AppendTransaction(ctx, tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("AddTransaction: %w", err)
	}

	if s.publisher != nil {
		job := &jobs.SyncDigestJob{UserID: tx.UserID, Trigger: "transaction"}
		if err := s.publisher.PublishSyncDigest(ctx, job); err != nil {
			s.log.Warn().Err(err).Msg("Failed to schedule digest sync")
		}
	}

	cat, err := s.catalogFor(ctx)
	if err == nil {
		tx.EnvLabel = domain.EnvLabelForScore(cat.Resolve(tx.CategoryID).EnvScore)
	}
	return tx, nil
}

// Classify runs the merchant classifier without storing anything.
func (s *Service) Classify(ctx context.Context, merchant string) ([]classifier.Prediction, error) {
	merchant = strings.TrimSpace(merchant)
	if merchant == "" {
		return nil, domain.NewValidationError("merchant", "is required")
	}
	if s.classifier == nil {
		return nil, fmt.Errorf("Classify: no classifier configured")
	}
	predictions, err := s.classifier.Predict(ctx, merchant)
	if err != nil {
		return nil, fmt.Errorf("Classify: %w", err)
	}
	return predictions, nil
}

// Categories returns the loaded catalog with derived env scores, sorted by
// category id.
func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	cat, err := s.catalogFor(ctx)
	if err != nil {
		return nil, fmt.Errorf("Categories: %w", err)
	}
	return cat.Categories(), nil
}
