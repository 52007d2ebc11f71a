// Package catalog loads category metadata and derives a normalized 1-10
// environmental score per category.
//
// The catalog is built once at startup and is read-only afterwards;
// concurrent readers need no locking. Reloading is an explicit operation
// on the owning service, which swaps in a freshly built catalog.
package catalog

import (
	"math"
	"sort"

	"github.com/ecotrace/ecotrace/internal/domain"
)

// NeutralEnvScore is assigned when a category is unknown or when the loaded
// catalog has no co2e variance to scale against.
const NeutralEnvScore = 5

// Record is one raw category row as delivered by a category source.
// Sources default CO2ePerDollar to 0 when the underlying value is missing
// or unparseable; it is never negative.
type Record struct {
	CategoryID    string
	Name          string
	CO2ePerDollar float64
}

// Catalog is an immutable category lookup with derived env scores.
type Catalog struct {
	categories map[string]domain.Category
}

// Load builds a catalog from raw records. A nil or empty record set yields
// an empty, usable catalog; loading never fails.
//
// Env scores are a linear min-max scaling of co2e_per_dollar across all
// loaded categories onto the integers 1..10. When every category carries
// the same co2e (including a single-entry catalog), all score neutral.
func Load(records []Record) *Catalog {
	c := &Catalog{categories: make(map[string]domain.Category, len(records))}
	if len(records) == 0 {
		return c
	}

	min, max := records[0].CO2ePerDollar, records[0].CO2ePerDollar
	for _, r := range records[1:] {
		if r.CO2ePerDollar < min {
			min = r.CO2ePerDollar
		}
		if r.CO2ePerDollar > max {
			max = r.CO2ePerDollar
		}
	}

	for _, r := range records {
		if r.CategoryID == "" {
			continue
		}
		name := r.Name
		if name == "" {
			name = r.CategoryID
		}
		c.categories[r.CategoryID] = domain.Category{
			CategoryID:    r.CategoryID,
			Name:          name,
			CO2ePerDollar: r.CO2ePerDollar,
			EnvScore:      scaleScore(r.CO2ePerDollar, min, max),
		}
	}
	return c
}

// scaleScore maps v in [min, max] onto 1..10.
func scaleScore(v, min, max float64) int {
	if min == max {
		return NeutralEnvScore
	}
	score := 1 + int(math.Round((v-min)/(max-min)*9))
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}

// Lookup returns the category for id and whether it is present.
func (c *Catalog) Lookup(id string) (domain.Category, bool) {
	cat, ok := c.categories[id]
	return cat, ok
}

// Resolve returns the category for id, falling back to a neutral default
// (env_score 5, co2e 0) for absent categories. The fallback keeps the
// category id so downstream rollups stay keyed consistently.
func (c *Catalog) Resolve(id string) domain.Category {
	if cat, ok := c.categories[id]; ok {
		return cat
	}
	return domain.Category{
		CategoryID: id,
		Name:       id,
		EnvScore:   NeutralEnvScore,
	}
}

// ScoreFor rescales a co2e_per_dollar value against the loaded population,
// clamped to 1..10. Useful for scoring hypothetical categories.
func (c *Catalog) ScoreFor(co2ePerDollar float64) int {
	if len(c.categories) == 0 {
		return NeutralEnvScore
	}
	first := true
	var min, max float64
	for _, cat := range c.categories {
		if first {
			min, max = cat.CO2ePerDollar, cat.CO2ePerDollar
			first = false
			continue
		}
		if cat.CO2ePerDollar < min {
			min = cat.CO2ePerDollar
		}
		if cat.CO2ePerDollar > max {
			max = cat.CO2ePerDollar
		}
	}
	return scaleScore(co2ePerDollar, min, max)
}

// Categories returns all loaded categories sorted by id.
func (c *Catalog) Categories() []domain.Category {
	out := make([]domain.Category, 0, len(c.categories))
	for _, cat := range c.categories {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out
}

// Len returns the number of loaded categories.
func (c *Catalog) Len() int {
	return len(c.categories)
}
