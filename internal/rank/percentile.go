// Package rank computes tie-aware percentile ranks.
//
// The mean-rank convention is used throughout: values strictly below count
// fully, ties count half. This keeps the result identical for every equal
// occurrence of a value and monotonic non-decreasing in the value.
package rank

// PercentileOfValue returns the percentile rank of v within population,
// in [0, 100]. An empty population yields 0 (no comparison possible).
//
// Definition: (count(x < v) + 0.5 * count(x == v)) / len(population) * 100.
// Implemented as a single linear scan; no sorting, no numeric library.
func PercentileOfValue(v float64, population []float64) float64 {
	if len(population) == 0 {
		return 0
	}

	var below, equal int
	for _, x := range population {
		switch {
		case x < v:
			below++
		case x == v:
			equal++
		}
	}

	p := (float64(below) + 0.5*float64(equal)) / float64(len(population)) * 100
	return Clamp(p, 0, 100)
}

// Clamp limits v to the inclusive range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
