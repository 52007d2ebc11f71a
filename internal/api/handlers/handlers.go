package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecotrace/ecotrace/internal/api/middleware"
	"github.com/ecotrace/ecotrace/internal/classifier"
	"github.com/ecotrace/ecotrace/internal/domain"
	"github.com/ecotrace/ecotrace/internal/jobs"
)

// dateFormat is the wire format for transaction dates.
const dateFormat = "2006-01-02"

// InsightsService is the slice of the insights service the handlers use.
type InsightsService interface {
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	EcoScore(ctx context.Context, userID string) (domain.EcoScoreResult, error)
	Coaching(ctx context.Context, userID string, weeks int) (domain.CoachingPayload, error)
	Acknowledge(ctx context.Context, userID, suggestionID, action string) (domain.AckResult, error)
	ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error)
	AddTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error)
	Classify(ctx context.Context, merchant string) ([]classifier.Prediction, error)
	Categories(ctx context.Context) ([]domain.Category, error)
	ReloadCatalog(ctx context.Context) error
}

// writeServiceError maps service errors onto HTTP statuses: validation
// failures are the client's fault, everything else is a 500.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	if domain.IsValidation(err) {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Error().Err(err).Msg(msg)
	middleware.WriteError(w, http.StatusInternalServerError, msg)
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	svc InsightsService
	log zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc InsightsService, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{svc: svc, log: log}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.svc.ListTransactions(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list transactions")
		return
	}

	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Merchant   string  `json:"merchant"`
		CategoryID string  `json:"category_id"`
		Amount     float64 `json:"amount"`
		Date       string  `json:"date"`
		UserID     string  `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var date time.Time
	if strings.TrimSpace(req.Date) != "" {
		var err error
		date, err = time.Parse(dateFormat, strings.TrimSpace(req.Date))
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
			return
		}
	}

	tx, err := h.svc.AddTransaction(r.Context(), domain.Transaction{
		Merchant:   req.Merchant,
		CategoryID: req.CategoryID,
		Amount:     req.Amount,
		Date:       date,
		UserID:     req.UserID,
	})
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create transaction")
		return
	}

	h.log.Info().
		Str("transaction_id", tx.TransactionID).
		Str("user_id", tx.UserID).
		Msg("Transaction created")

	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// Classify handles POST /api/transactions/classify
func (h *TransactionsHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Merchant string `json:"merchant"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	predictions, err := h.svc.Classify(r.Context(), req.Merchant)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to classify merchant")
		return
	}

	if predictions == nil {
		predictions = []classifier.Prediction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"merchant":    strings.TrimSpace(req.Merchant),
		"predictions": predictions,
	})
}

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct {
	svc InsightsService
	log zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(svc InsightsService, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{svc: svc, log: log}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.Categories(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list categories")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// ReloadCatalog handles POST /api/categories/reload
func (h *CategoriesHandler) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ReloadCatalog(r.Context()); err != nil {
		writeServiceError(w, h.log, err, "Failed to reload catalog")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// LeaderboardHandler handles leaderboard and eco-score endpoints.
type LeaderboardHandler struct {
	svc       InsightsService
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler. The publisher is
// optional; without it the sync endpoint reports that syncing is disabled.
func NewLeaderboardHandler(svc InsightsService, publisher jobs.Publisher, log zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{svc: svc, publisher: publisher, log: log}
}

// GetLeaderboard handles GET /api/leaderboard
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = v
	}

	entries, err := h.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to build leaderboard")
		return
	}

	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"leaderboard": entries,
		"count":       len(entries),
	})
}

// GetEcoScore handles GET /api/ecoscore
func (h *LeaderboardHandler) GetEcoScore(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.EcoScore(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to compute eco score")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// EnqueueSync handles POST /api/leaderboard/sync
func (h *LeaderboardHandler) EnqueueSync(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Digest sync is not configured")
		return
	}

	job := &jobs.SyncDigestJob{Trigger: "manual"}
	if err := h.publisher.PublishSyncDigest(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue digest sync")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue digest sync")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Msg("Digest sync enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// CoachingHandler handles coaching endpoints.
type CoachingHandler struct {
	svc InsightsService
	log zerolog.Logger
}

// NewCoachingHandler creates a new coaching handler.
func NewCoachingHandler(svc InsightsService, log zerolog.Logger) *CoachingHandler {
	return &CoachingHandler{svc: svc, log: log}
}

// GetSuggestions handles GET /api/coaching/suggestions
func (h *CoachingHandler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	weeks := 0
	if weeksStr := query.Get("weeks"); weeksStr != "" {
		v, err := strconv.Atoi(weeksStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "weeks must be an integer")
			return
		}
		weeks = v
	}

	payload, err := h.svc.Coaching(r.Context(), query.Get("user_id"), weeks)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to build coaching payload")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, payload)
}

// AcknowledgeSuggestion handles POST /api/coaching/suggestions/ack
func (h *CoachingHandler) AcknowledgeSuggestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string `json:"user_id"`
		SuggestionID string `json:"suggestion_id"`
		Action       string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.svc.Acknowledge(r.Context(), req.UserID, req.SuggestionID, req.Action)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to record acknowledgement")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: query.Get("user_id"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
