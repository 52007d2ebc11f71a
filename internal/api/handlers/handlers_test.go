package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ecotrace/ecotrace/internal/classifier"
	"github.com/ecotrace/ecotrace/internal/domain"
)

type fakeService struct {
	leaderboard []domain.LeaderboardEntry
	ecoScore    domain.EcoScoreResult
	coaching    domain.CoachingPayload
	ackResult   domain.AckResult
	txs         []domain.Transaction
	added       domain.Transaction
	addErr      error
	ackErr      error
	ecoErr      error
	predictions []classifier.Prediction
	categories  []domain.Category
	reloaded    bool
}

func (f *fakeService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	return f.leaderboard, nil
}

func (f *fakeService) EcoScore(ctx context.Context, userID string) (domain.EcoScoreResult, error) {
	return f.ecoScore, f.ecoErr
}

func (f *fakeService) Coaching(ctx context.Context, userID string, weeks int) (domain.CoachingPayload, error) {
	return f.coaching, nil
}

func (f *fakeService) Acknowledge(ctx context.Context, userID, suggestionID, action string) (domain.AckResult, error) {
	return f.ackResult, f.ackErr
}

func (f *fakeService) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	return f.txs, nil
}

func (f *fakeService) AddTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	if f.addErr != nil {
		return domain.Transaction{}, f.addErr
	}
	f.added = tx
	tx.TransactionID = "tx-1"
	return tx, nil
}

func (f *fakeService) Classify(ctx context.Context, merchant string) ([]classifier.Prediction, error) {
	return f.predictions, nil
}

func (f *fakeService) Categories(ctx context.Context) ([]domain.Category, error) {
	return f.categories, nil
}

func (f *fakeService) ReloadCatalog(ctx context.Context) error {
	f.reloaded = true
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestGetLeaderboard(t *testing.T) {
	pts := 75.0
	h := NewLeaderboardHandler(&fakeService{
		leaderboard: []domain.LeaderboardEntry{{UserID: "alice", EcoPoints: &pts, Rank: 1}},
	}, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?limit=10", nil)
	rec := httptest.NewRecorder()
	h.GetLeaderboard(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"].(float64) != 1 {
		t.Errorf("count = %v, want 1", body["count"])
	}
}

func TestGetLeaderboard_BadLimit(t *testing.T) {
	h := NewLeaderboardHandler(&fakeService{}, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?limit=abc", nil)
	rec := httptest.NewRecorder()
	h.GetLeaderboard(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetEcoScore_ValidationMapsTo400(t *testing.T) {
	h := NewLeaderboardHandler(&fakeService{
		ecoErr: domain.NewValidationError("user_id", "is required"),
	}, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/ecoscore", nil)
	rec := httptest.NewRecorder()
	h.GetEcoScore(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestEnqueueSync_Unconfigured(t *testing.T) {
	h := NewLeaderboardHandler(&fakeService{}, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/leaderboard/sync", nil)
	rec := httptest.NewRecorder()
	h.EnqueueSync(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestCreateTransaction(t *testing.T) {
	svc := &fakeService{}
	h := NewTransactionsHandler(svc, zerolog.Nop())

	body := `{"merchant":"Corner Shop","amount":12.5,"date":"2025-11-03","user_id":"alice"}`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateTransaction(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if svc.added.Merchant != "Corner Shop" || svc.added.UserID != "alice" {
		t.Errorf("service saw %+v", svc.added)
	}
	if svc.added.Date.Format("2006-01-02") != "2025-11-03" {
		t.Errorf("date = %v", svc.added.Date)
	}
}

func TestCreateTransaction_BadDate(t *testing.T) {
	h := NewTransactionsHandler(&fakeService{}, zerolog.Nop())

	body := `{"merchant":"Shop","amount":1,"date":"03/11/2025"}`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateTransaction(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateTransaction_ValidationFromService(t *testing.T) {
	h := NewTransactionsHandler(&fakeService{
		addErr: domain.NewValidationError("merchant", "is required"),
	}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(`{"amount":1}`))
	rec := httptest.NewRecorder()
	h.CreateTransaction(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListTransactions_EmptyIsArray(t *testing.T) {
	h := NewTransactionsHandler(&fakeService{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	rec := httptest.NewRecorder()
	h.ListTransactions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if _, ok := body["transactions"].([]interface{}); !ok {
		t.Errorf("transactions = %T, want JSON array", body["transactions"])
	}
}

func TestClassify(t *testing.T) {
	h := NewTransactionsHandler(&fakeService{
		predictions: []classifier.Prediction{{CategoryID: "GROC", Confidence: 0.9}},
	}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/transactions/classify", strings.NewReader(`{"merchant":"Corner Shop"}`))
	rec := httptest.NewRecorder()
	h.Classify(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	preds := body["predictions"].([]interface{})
	if len(preds) != 1 {
		t.Errorf("predictions = %v", preds)
	}
}

func TestAcknowledgeSuggestion(t *testing.T) {
	h := NewCoachingHandler(&fakeService{
		ackResult: domain.AckResult{Status: "recorded", UserID: "alice", SuggestionID: "s1", Action: "accepted"},
	}, zerolog.Nop())

	body := `{"user_id":"alice","suggestion_id":"s1","action":"accepted"}`
	req := httptest.NewRequest(http.MethodPost, "/api/coaching/suggestions/ack", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.AcknowledgeSuggestion(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	got := decodeBody(t, rec)
	if got["status"] != "recorded" {
		t.Errorf("status = %v", got["status"])
	}
}

func TestAcknowledgeSuggestion_InvalidAction(t *testing.T) {
	h := NewCoachingHandler(&fakeService{
		ackErr: domain.NewValidationError("action", "must be accepted or dismissed"),
	}, zerolog.Nop())

	body := `{"user_id":"alice","suggestion_id":"s1","action":"maybe"}`
	req := httptest.NewRequest(http.MethodPost, "/api/coaching/suggestions/ack", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.AcknowledgeSuggestion(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestReloadCatalog(t *testing.T) {
	svc := &fakeService{}
	h := NewCategoriesHandler(svc, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/categories/reload", nil)
	rec := httptest.NewRecorder()
	h.ReloadCatalog(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !svc.reloaded {
		t.Error("service reload was not called")
	}
}
