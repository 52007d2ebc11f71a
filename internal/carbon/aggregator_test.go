package carbon

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/ecotrace/ecotrace/internal/catalog"
	"github.com/ecotrace/ecotrace/internal/domain"
)

func testCatalog() *catalog.Catalog {
	return catalog.Load([]catalog.Record{
		{CategoryID: "GROC", Name: "Groceries", CO2ePerDollar: 0.5},
		{CategoryID: "TRANS", Name: "Transit", CO2ePerDollar: 2.0},
		{CategoryID: "RENEW", Name: "Renewables", CO2ePerDollar: 0},
	})
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAggregate_PerUserRollup(t *testing.T) {
	cat := testCatalog()
	txs := []domain.Transaction{
		{UserID: "alice", CategoryID: "GROC", Amount: 20, Date: day("2025-11-02")},
		{UserID: "alice", CategoryID: "TRANS", Amount: 10, Date: day("2025-11-03")},
		{UserID: "bob", CategoryID: "TRANS", Amount: 12, Date: day("2025-11-01")},
	}

	got := Aggregate(txs, cat)
	if len(got) != 2 {
		t.Fatalf("got %d users, want 2", len(got))
	}

	alice := got["alice"]
	if alice.TotalSpend != 30 {
		t.Errorf("alice TotalSpend = %v, want 30", alice.TotalSpend)
	}
	// 20*0.5 + 10*2.0
	if alice.TotalCO2 != 30 {
		t.Errorf("alice TotalCO2 = %v, want 30", alice.TotalCO2)
	}
	if alice.TxCount != 2 {
		t.Errorf("alice TxCount = %d, want 2", alice.TxCount)
	}
	if alice.CategorySpend["GROC"] != 20 || alice.CategorySpend["TRANS"] != 10 {
		t.Errorf("alice CategorySpend = %v", alice.CategorySpend)
	}
	if len(alice.ActiveDates) != 2 {
		t.Errorf("alice ActiveDates = %v, want 2 days", alice.ActiveDates)
	}

	bob := got["bob"]
	if bob.TotalCO2 != 24 {
		t.Errorf("bob TotalCO2 = %v, want 24", bob.TotalCO2)
	}
}

func TestAggregate_LowImpactDates(t *testing.T) {
	cat := testCatalog()
	// GROC scores low (env_score <= 4), TRANS scores high.
	txs := []domain.Transaction{
		{UserID: "u", CategoryID: "GROC", Amount: 5, Date: day("2025-11-02")},
		{UserID: "u", CategoryID: "TRANS", Amount: 5, Date: day("2025-11-03")},
	}

	s := Aggregate(txs, cat)["u"]
	if _, ok := s.LowImpactDates[civil.Date{Year: 2025, Month: 11, Day: 2}]; !ok {
		t.Error("expected 2025-11-02 in low impact dates")
	}
	if _, ok := s.LowImpactDates[civil.Date{Year: 2025, Month: 11, Day: 3}]; ok {
		t.Error("2025-11-03 should not be a low impact day")
	}
	if len(s.ActiveDates) != 2 {
		t.Errorf("ActiveDates = %v, want both days", s.ActiveDates)
	}
}

func TestAggregate_UnknownCategoryIsNeutral(t *testing.T) {
	cat := testCatalog()
	txs := []domain.Transaction{
		{UserID: "u", CategoryID: "NOPE", Amount: 40, Date: day("2025-11-02")},
	}

	s := Aggregate(txs, cat)["u"]
	if s.TotalCO2 != 0 {
		t.Errorf("TotalCO2 = %v, want 0 for unknown category", s.TotalCO2)
	}
	if s.EnvScoreSum != catalog.NeutralEnvScore {
		t.Errorf("EnvScoreSum = %d, want %d", s.EnvScoreSum, catalog.NeutralEnvScore)
	}
	if len(s.LowImpactDates) != 0 {
		t.Errorf("neutral score must not mark low-impact days: %v", s.LowImpactDates)
	}
}

func TestAggregate_ZeroDateStillCounts(t *testing.T) {
	cat := testCatalog()
	txs := []domain.Transaction{
		{UserID: "u", CategoryID: "GROC", Amount: 10}, // unparseable date at the source
	}

	s := Aggregate(txs, cat)["u"]
	if s.TxCount != 1 || s.TotalSpend != 10 || s.TotalCO2 != 5 {
		t.Errorf("totals = {count %d, spend %v, co2 %v}, want {1, 10, 5}", s.TxCount, s.TotalSpend, s.TotalCO2)
	}
	if len(s.ActiveDates) != 0 || len(s.LowImpactDates) != 0 {
		t.Error("zero date must stay out of date sets")
	}
}

func TestAggregate_UncategorizedSpendBucket(t *testing.T) {
	cat := testCatalog()
	txs := []domain.Transaction{
		{UserID: "u", Amount: 15, Date: day("2025-11-02")},
		{UserID: "u", Amount: 5, Date: day("2025-11-03")},
	}

	s := Aggregate(txs, cat)["u"]
	if s.CategorySpend[domain.UncategorizedKey] != 20 {
		t.Errorf("CategorySpend[%q] = %v, want 20", domain.UncategorizedKey, s.CategorySpend)
	}
	if _, ok := s.CategorySpend[""]; ok {
		t.Error("uncategorized spend must not be keyed by the empty string")
	}
}

func TestAggregate_MissingUserDefaultsToGuest(t *testing.T) {
	cat := testCatalog()
	txs := []domain.Transaction{{CategoryID: "GROC", Amount: 1, Date: day("2025-11-02")}}

	got := Aggregate(txs, cat)
	if _, ok := got[domain.DefaultUserID]; !ok {
		t.Fatalf("expected %q bucket, got %v", domain.DefaultUserID, got)
	}
}

func TestTotalCO2Values(t *testing.T) {
	cat := testCatalog()
	txs := []domain.Transaction{
		{UserID: "a", CategoryID: "TRANS", Amount: 1, Date: day("2025-11-02")},
		{UserID: "b", CategoryID: "GROC", Amount: 2, Date: day("2025-11-02")},
	}
	values := TotalCO2Values(Aggregate(txs, cat))
	if len(values) != 2 {
		t.Fatalf("got %d values, want 2", len(values))
	}
	sum := values[0] + values[1]
	if sum != 3 {
		t.Errorf("sum of CO2 values = %v, want 3", sum)
	}
}
