package leaderboard

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/ecotrace/ecotrace/internal/carbon"
	"github.com/ecotrace/ecotrace/internal/catalog"
	"github.com/ecotrace/ecotrace/internal/domain"
)

func testCatalog() *catalog.Catalog {
	return catalog.Load([]catalog.Record{
		{CategoryID: "GROC", Name: "Groceries", CO2ePerDollar: 0.5},
		{CategoryID: "TRANS", Name: "Transit", CO2ePerDollar: 2.0},
	})
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBuild_LowerCO2RanksFirst(t *testing.T) {
	txs := []domain.Transaction{
		{UserID: "alice", CategoryID: "GROC", Amount: 20, Date: day("2025-11-02")},
		{UserID: "bob", CategoryID: "TRANS", Amount: 12, Date: day("2025-11-01")},
	}
	summaries := carbon.Aggregate(txs, testCatalog())

	entries := Build(summaries, Options{})
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].UserID != "alice" || entries[1].UserID != "bob" {
		t.Fatalf("order = [%s, %s], want [alice, bob]", entries[0].UserID, entries[1].UserID)
	}
	if entries[0].Rank != 1 || entries[1].Rank != 2 {
		t.Errorf("ranks = [%d, %d], want [1, 2]", entries[0].Rank, entries[1].Rank)
	}
	if *entries[0].EcoPoints <= *entries[1].EcoPoints {
		t.Errorf("alice points %v not above bob points %v", *entries[0].EcoPoints, *entries[1].EcoPoints)
	}
	// Mean-rank with two distinct values: percentiles 25 and 75.
	if *entries[0].EcoPoints != 75 || *entries[1].EcoPoints != 25 {
		t.Errorf("points = [%v, %v], want [75, 25]", *entries[0].EcoPoints, *entries[1].EcoPoints)
	}
}

func TestBuild_EmptyPopulation(t *testing.T) {
	entries := Build(map[string]*domain.UserCarbonSummary{}, Options{})
	if len(entries) != 0 {
		t.Fatalf("got %d entries, want none", len(entries))
	}
}

func TestEcoScore_EmptyPopulationIsPerfect(t *testing.T) {
	got := EcoScore("anyone", map[string]*domain.UserCarbonSummary{})
	if got.TotalCO2 != 0 {
		t.Errorf("TotalCO2 = %v, want 0", got.TotalCO2)
	}
	if got.EcoPoints != 100 {
		t.Errorf("EcoPoints = %v, want 100", got.EcoPoints)
	}
}

func TestEcoScore_StrictlyDecreasingInCO2(t *testing.T) {
	base := map[string]*domain.UserCarbonSummary{
		"x": {UserID: "x", TotalCO2: 10},
		"y": {UserID: "y", TotalCO2: 20},
	}
	prev := 200.0
	for _, co2 := range []float64{5, 12, 25} {
		base["me"] = &domain.UserCarbonSummary{UserID: "me", TotalCO2: co2}
		got := EcoScore("me", base).EcoPoints
		if got >= prev {
			t.Fatalf("EcoPoints not strictly decreasing: co2=%v points=%v prev=%v", co2, got, prev)
		}
		prev = got
	}
}

func TestBadgeFor_OrderedRules(t *testing.T) {
	tests := []struct {
		name   string
		points float64
		ratio  float64
		want   string
	}{
		{name: "points alone reach guardian", points: 92, ratio: 0.1, want: domain.BadgeGuardian},
		{name: "ratio alone reaches guardian", points: 10, ratio: 0.75, want: domain.BadgeGuardian},
		{name: "trailblazer by points", points: 80, ratio: 0, want: domain.BadgeTrailblazer},
		{name: "trailblazer by ratio", points: 10, ratio: 0.6, want: domain.BadgeTrailblazer},
		{name: "earth ally by points", points: 61, ratio: 0, want: domain.BadgeEarthAlly},
		{name: "earth ally by ratio", points: 0, ratio: 0.45, want: domain.BadgeEarthAlly},
		{name: "sprout otherwise", points: 30, ratio: 0.2, want: domain.BadgeSprout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := badgeFor(tt.points, tt.ratio); got != tt.want {
				t.Errorf("badgeFor(%v, %v) = %q, want %q", tt.points, tt.ratio, got, tt.want)
			}
		})
	}
}

func TestStreakDays(t *testing.T) {
	d := func(y int, m time.Month, dd int) civil.Date { return civil.Date{Year: y, Month: m, Day: dd} }

	tests := []struct {
		name  string
		dates []civil.Date
		want  int
	}{
		{name: "empty", dates: nil, want: 0},
		{name: "single day", dates: []civil.Date{d(2025, 11, 3)}, want: 1},
		{
			name:  "run ending at latest",
			dates: []civil.Date{d(2025, 11, 1), d(2025, 11, 2), d(2025, 11, 3)},
			want:  3,
		},
		{
			name:  "gap resets the walk",
			dates: []civil.Date{d(2025, 10, 28), d(2025, 11, 2), d(2025, 11, 3)},
			want:  2,
		},
		{
			name:  "run crosses month boundary",
			dates: []civil.Date{d(2025, 10, 31), d(2025, 11, 1)},
			want:  2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := make(map[civil.Date]struct{}, len(tt.dates))
			for _, dd := range tt.dates {
				set[dd] = struct{}{}
			}
			if got := streakDays(set); got != tt.want {
				t.Errorf("streakDays = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBuild_CategoryMix(t *testing.T) {
	txs := []domain.Transaction{
		{UserID: "u", CategoryID: "GROC", Amount: 60, Date: day("2025-11-01")},
		{UserID: "u", CategoryID: "TRANS", Amount: 30, Date: day("2025-11-01")},
		{UserID: "u", CategoryID: "MISC1", Amount: 6, Date: day("2025-11-01")},
		{UserID: "u", CategoryID: "MISC2", Amount: 4, Date: day("2025-11-01")},
	}
	entries := Build(carbon.Aggregate(txs, testCatalog()), Options{})
	mix := entries[0].CategoryMix

	if len(mix) != 3 {
		t.Fatalf("mix has %d entries, want 3", len(mix))
	}
	if mix[0].CategoryID != "GROC" || mix[1].CategoryID != "TRANS" || mix[2].CategoryID != "MISC1" {
		t.Errorf("mix order = %v", mix)
	}
	var sum float64
	for i, m := range mix {
		if i > 0 && m.Spend > mix[i-1].Spend {
			t.Errorf("mix not sorted desc by spend: %v", mix)
		}
		sum += m.Share
	}
	if sum > 1.0+1e-9 {
		t.Errorf("shares sum to %v, want <= 1", sum)
	}
	if entries[0].TopCategory != "GROC" {
		t.Errorf("TopCategory = %q, want GROC", entries[0].TopCategory)
	}
}

func TestBuild_TrendAgainstCohort(t *testing.T) {
	summaries := map[string]*domain.UserCarbonSummary{
		"low":  {UserID: "low", TotalCO2: 10, TxCount: 1},
		"mid":  {UserID: "mid", TotalCO2: 100, TxCount: 1},
		"high": {UserID: "high", TotalCO2: 190, TxCount: 1},
	}
	entries := Build(summaries, Options{})

	byUser := map[string]domain.LeaderboardEntry{}
	for _, e := range entries {
		byUser[e.UserID] = e
	}

	if byUser["low"].Trend != domain.TrendUp {
		t.Errorf("low trend = %q, want up", byUser["low"].Trend)
	}
	if byUser["mid"].Trend != domain.TrendSteady {
		t.Errorf("mid trend = %q, want steady", byUser["mid"].Trend)
	}
	if byUser["high"].Trend != domain.TrendDown {
		t.Errorf("high trend = %q, want down", byUser["high"].Trend)
	}
	if byUser["low"].ImpactDeltaPct == nil || *byUser["low"].ImpactDeltaPct != -90 {
		t.Errorf("low delta = %v, want -90", byUser["low"].ImpactDeltaPct)
	}
}

func TestBuild_ZeroCohortAverageMeansSteady(t *testing.T) {
	summaries := map[string]*domain.UserCarbonSummary{
		"a": {UserID: "a", TotalCO2: 0, TxCount: 1},
		"b": {UserID: "b", TotalCO2: 0, TxCount: 1},
	}
	for _, e := range Build(summaries, Options{}) {
		if e.Trend != domain.TrendSteady {
			t.Errorf("trend = %q, want steady when cohort average is 0", e.Trend)
		}
		if e.ImpactDeltaPct != nil {
			t.Errorf("delta = %v, want nil when cohort average is 0", *e.ImpactDeltaPct)
		}
	}
}

func TestBuild_ProfileOnlyUsersSortLast(t *testing.T) {
	txs := []domain.Transaction{
		{UserID: "alice", CategoryID: "GROC", Amount: 20, Date: day("2025-11-02")},
	}
	profiles := map[string]domain.UserProfile{
		"carol": {UserID: "carol", DisplayName: "Carol"},
		"alice": {UserID: "alice", DisplayName: "Alice K", Team: "green"},
	}
	entries := Build(carbon.Aggregate(txs, testCatalog()), Options{Profiles: profiles})

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].UserID != "alice" || entries[0].DisplayName != "Alice K" || entries[0].Team != "green" {
		t.Errorf("first entry = %+v", entries[0])
	}
	last := entries[1]
	if last.UserID != "carol" || last.EcoPoints != nil {
		t.Errorf("profile-only entry = %+v, want carol with nil points", last)
	}
	if last.Rank != 2 {
		t.Errorf("rank = %d, want contiguous 2", last.Rank)
	}
}

func TestBuild_BadgeOverride(t *testing.T) {
	summaries := map[string]*domain.UserCarbonSummary{
		"u": {UserID: "u", TotalCO2: 50, TxCount: 1},
	}
	profiles := map[string]domain.UserProfile{
		"u": {UserID: "u", BadgeOverride: "Founder"},
	}
	entries := Build(summaries, Options{Profiles: profiles})
	if entries[0].Badge != "Founder" {
		t.Errorf("Badge = %q, want override applied", entries[0].Badge)
	}
}

func TestBuild_LimitHandling(t *testing.T) {
	summaries := map[string]*domain.UserCarbonSummary{}
	for _, id := range []string{"a", "b", "c", "d"} {
		summaries[id] = &domain.UserCarbonSummary{UserID: id, TotalCO2: float64(len(id))}
	}

	if got := Build(summaries, Options{Limit: 2}); len(got) != 2 {
		t.Errorf("Limit 2: got %d entries", len(got))
	}
	if got := Build(summaries, Options{Limit: -7}); len(got) != 0 {
		t.Errorf("negative limit: got %d entries, want 0", len(got))
	}
	if got := Build(summaries, Options{}); len(got) != 4 {
		t.Errorf("default limit: got %d entries, want all 4", len(got))
	}
}
