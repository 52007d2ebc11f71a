package classifier

import (
	"testing"

	"github.com/ecotrace/ecotrace/internal/catalog"
)

func testCatalog() *catalog.Catalog {
	return catalog.Load([]catalog.Record{
		{CategoryID: "GROC", Name: "Groceries", CO2ePerDollar: 0.5},
		{CategoryID: "TRANS", Name: "Transit", CO2ePerDollar: 2.0},
	})
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "already clean",
			raw:  `[{"category_id":"GROC","confidence":0.9}]`,
			want: `[{"category_id":"GROC","confidence":0.9}]`,
		},
		{
			name: "json fences",
			raw:  "```json\n[{\"category_id\":\"GROC\",\"confidence\":0.9}]\n```",
			want: `[{"category_id":"GROC","confidence":0.9}]`,
		},
		{
			name: "prose around the array",
			raw:  "Here you go:\n[{\"category_id\":\"GROC\",\"confidence\":0.9}]\nHope that helps!",
			want: `[{"category_id":"GROC","confidence":0.9}]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilterPredictions(t *testing.T) {
	cat := testCatalog()
	in := []Prediction{
		{CategoryID: "UNKNOWN", Confidence: 0.99},
		{CategoryID: "GROC", Confidence: 0.4},
		{CategoryID: "TRANS", Confidence: 1.7},
		{CategoryID: "GROC", Confidence: -0.3},
	}

	got := FilterPredictions(in, cat, 2)
	if len(got) != 2 {
		t.Fatalf("got %d predictions, want 2", len(got))
	}
	if got[0].CategoryID != "TRANS" || got[0].Confidence != 1 {
		t.Errorf("top prediction = %+v, want TRANS clamped to 1", got[0])
	}
	if got[1].CategoryID != "GROC" || got[1].Confidence != 0.4 {
		t.Errorf("second prediction = %+v", got[1])
	}
}

func TestFilterPredictions_Empty(t *testing.T) {
	if got := FilterPredictions(nil, testCatalog(), 3); len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}
