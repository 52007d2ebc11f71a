// Package classifier predicts a transaction category from a merchant name.
//
// The concrete implementation asks Gemini to rank the catalog's category
// ids. It is consumed only when a newly submitted transaction lacks a
// category; a failing or empty prediction means the caller must supply an
// explicit category.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genai"

	"github.com/ecotrace/ecotrace/internal/catalog"
)

// DefaultModelName is the Gemini model used for merchant classification.
const DefaultModelName = "gemini-2.5-flash"

// defaultTopK bounds how many predictions one call returns.
const defaultTopK = 3

// Prediction is one ranked category guess.
type Prediction struct {
	CategoryID string  `json:"category_id"`
	Confidence float64 `json:"confidence"`
}

// Classifier predicts categories for merchant names.
type Classifier interface {
	// Predict returns predictions ordered by descending confidence.
	// An empty slice means no usable prediction.
	Predict(ctx context.Context, merchant string) ([]Prediction, error)
}

// GeminiClassifier implements Classifier against the Gemini API.
type GeminiClassifier struct {
	catalog *catalog.Catalog
	model   string
}

// NewGeminiClassifier builds a classifier constrained to the ids of the
// given catalog.
func NewGeminiClassifier(cat *catalog.Catalog, model string) *GeminiClassifier {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiClassifier{catalog: cat, model: model}
}

// Predict asks the model to rank catalog categories for the merchant name.
// The response must be a strict JSON array of {category_id, confidence};
// fenced or padded output is cleaned up before decoding. Ids outside the
// catalog are discarded.
func (g *GeminiClassifier) Predict(ctx context.Context, merchant string) ([]Prediction, error) {
	merchant = strings.TrimSpace(merchant)
	if merchant == "" {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("Predict: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: g.buildPrompt(merchant)},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("Predict: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("Predict: empty response from model")
	}

	var predictions []Prediction
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &predictions); err != nil {
		return nil, fmt.Errorf("Predict: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	return FilterPredictions(predictions, g.catalog, defaultTopK), nil
}

func (g *GeminiClassifier) buildPrompt(merchant string) string {
	var ids []string
	for _, c := range g.catalog.Categories() {
		ids = append(ids, fmt.Sprintf("- %s (%s)", c.CategoryID, c.Name))
	}

	return "You are a merchant category classifier for a personal carbon tracker.\n\n" +
		"Task:\n" +
		"- Classify the merchant name below into the most likely spending categories.\n" +
		"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
		"- Output a JSON array of at most " + fmt.Sprint(defaultTopK) + " objects, best guess first.\n\n" +
		"Each object must have these fields:\n" +
		"- \"category_id\": string, one of the predefined ids below\n" +
		"- \"confidence\": number between 0 and 1\n\n" +
		"Predefined categories:\n" + strings.Join(ids, "\n") + "\n\n" +
		"Merchant name: " + merchant + "\n\n" +
		"Return ONLY valid raw JSON.\n" +
		"Do NOT wrap the response in code fences.\n" +
		"Output must begin with \"[\" and end with \"]\".\n"
}

// FilterPredictions drops predictions for unknown category ids, clamps
// confidences into [0, 1], re-sorts by descending confidence and truncates
// to topK. Exported for reuse by alternative classifier backends.
func FilterPredictions(predictions []Prediction, cat *catalog.Catalog, topK int) []Prediction {
	out := make([]Prediction, 0, len(predictions))
	for _, p := range predictions {
		if _, ok := cat.Lookup(p.CategoryID); !ok {
			continue
		}
		if p.Confidence < 0 {
			p.Confidence = 0
		}
		if p.Confidence > 1 {
			p.Confidence = 1
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// cleanModelJSON strips Markdown fences and stray text around the JSON
// array when the model ignores formatting instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
