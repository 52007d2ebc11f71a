package catalog

import "testing"

func TestLoad_EnvScoreScaling(t *testing.T) {
	c := Load([]Record{
		{CategoryID: "RENEW", Name: "Renewable Energy", CO2ePerDollar: 0},
		{CategoryID: "GROC", Name: "Groceries", CO2ePerDollar: 0.5},
		{CategoryID: "FLIGHT", Name: "Air Travel", CO2ePerDollar: 2.0},
	})

	tests := []struct {
		id   string
		want int
	}{
		{id: "RENEW", want: 1},   // min scales to 1
		{id: "FLIGHT", want: 10}, // max scales to 10
		{id: "GROC", want: 3},    // 0.5/2.0 * 9 = 2.25 -> round 2 -> +1
	}
	for _, tt := range tests {
		cat, ok := c.Lookup(tt.id)
		if !ok {
			t.Fatalf("Lookup(%q): not found", tt.id)
		}
		if cat.EnvScore != tt.want {
			t.Errorf("EnvScore(%s) = %d, want %d", tt.id, cat.EnvScore, tt.want)
		}
	}
}

func TestLoad_NoVarianceScoresNeutral(t *testing.T) {
	c := Load([]Record{
		{CategoryID: "A", CO2ePerDollar: 1.5},
		{CategoryID: "B", CO2ePerDollar: 1.5},
	})
	for _, id := range []string{"A", "B"} {
		cat, _ := c.Lookup(id)
		if cat.EnvScore != NeutralEnvScore {
			t.Errorf("EnvScore(%s) = %d, want %d", id, cat.EnvScore, NeutralEnvScore)
		}
	}
}

func TestLoad_EmptyIsUsable(t *testing.T) {
	c := Load(nil)
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", c.Len())
	}
	got := c.Resolve("MISSING")
	if got.EnvScore != NeutralEnvScore || got.CO2ePerDollar != 0 {
		t.Errorf("Resolve on empty catalog = %+v, want neutral default", got)
	}
	if c.ScoreFor(3.2) != NeutralEnvScore {
		t.Errorf("ScoreFor on empty catalog = %d, want %d", c.ScoreFor(3.2), NeutralEnvScore)
	}
}

func TestResolve_AbsentCategoryDefaults(t *testing.T) {
	c := Load([]Record{{CategoryID: "GROC", CO2ePerDollar: 0.5}})

	got := c.Resolve("UNKNOWN")
	if got.CategoryID != "UNKNOWN" {
		t.Errorf("Resolve kept id %q, want UNKNOWN", got.CategoryID)
	}
	if got.EnvScore != NeutralEnvScore {
		t.Errorf("EnvScore = %d, want %d", got.EnvScore, NeutralEnvScore)
	}
	if got.CO2ePerDollar != 0 {
		t.Errorf("CO2ePerDollar = %v, want 0", got.CO2ePerDollar)
	}
}

func TestLoad_BlankIDSkippedAndNameDefaults(t *testing.T) {
	c := Load([]Record{
		{CategoryID: "", CO2ePerDollar: 1},
		{CategoryID: "TRANS", CO2ePerDollar: 2},
	})
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
	cat, _ := c.Lookup("TRANS")
	if cat.Name != "TRANS" {
		t.Errorf("Name = %q, want fallback to id", cat.Name)
	}
}

func TestCategories_SortedByID(t *testing.T) {
	c := Load([]Record{
		{CategoryID: "Z", CO2ePerDollar: 1},
		{CategoryID: "A", CO2ePerDollar: 2},
		{CategoryID: "M", CO2ePerDollar: 3},
	})
	got := c.Categories()
	if len(got) != 3 || got[0].CategoryID != "A" || got[1].CategoryID != "M" || got[2].CategoryID != "Z" {
		t.Errorf("Categories() order = %v", got)
	}
}
