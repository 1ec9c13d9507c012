package stats

import (
	"math"
	"sort"
)

// describe computes the descriptive summary of a value slice. Returns false
// when there is nothing to summarize.
func describe(values []float64) (Descriptive, bool) {
	if len(values) == 0 {
		return Descriptive{}, false
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	// Welford accumulation.
	var mean, m2 float64
	for i, v := range values {
		delta := v - mean
		mean += delta / float64(i+1)
		m2 += delta * (v - mean)
	}
	variance := 0.0
	if len(values) > 1 {
		variance = m2 / float64(len(values)-1)
	}

	d := Descriptive{
		Count:    len(values),
		Mean:     mean,
		Median:   quantile(sorted, 0.5),
		Mode:     modes(values),
		Variance: variance,
		Std:      math.Sqrt(variance),
		Min:      sorted[0],
		Max:      sorted[len(sorted)-1],
		Q25:      quantile(sorted, 0.25),
		Q50:      quantile(sorted, 0.5),
		Q75:      quantile(sorted, 0.75),
	}
	d.Range = d.Max - d.Min
	return d, true
}

// quantile returns the q-th quantile of a sorted slice using linear
// interpolation between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// modes returns the most frequent values, ascending. Returns nil when every
// value is unique.
func modes(values []float64) []float64 {
	counts := map[float64]int{}
	best := 0
	for _, v := range values {
		counts[v]++
		if counts[v] > best {
			best = counts[v]
		}
	}
	if best <= 1 && len(counts) > 1 {
		return nil
	}
	var out []float64
	for v, c := range counts {
		if c == best {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}
