package stats

import (
	"math"
	"sort"

	"github.com/tablescope/tablescope/internal/classify"
)

const topValues = 10

// frequency tabulates value counts for a categorical column.
func frequency(values []string) Frequency {
	counts := map[string]int{}
	total := 0
	for _, v := range values {
		if classify.IsNull(v) {
			continue
		}
		counts[v]++
		total++
	}
	f := Frequency{
		UniqueCount: len(counts),
		TotalCount:  total,
		Counts:      counts,
	}
	f.Top = topCounts(counts, topValues)
	return f
}

// topCounts returns the n most frequent entries, count descending with value
// as tiebreak.
func topCounts(counts map[string]int, n int) []ValueCount {
	out := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].Value < out[b].Value
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// groupBy summarizes each numeric column per distinct value of the group
// column. groups[i] aligns with the numeric series rows.
func groupBy(groupCol string, groups []string, numericNames []string, series [][]float64) Grouped {
	g := Grouped{
		GroupColumn: groupCol,
		GroupSizes:  map[string]int{},
		Metrics:     map[string]map[string]GroupSummary{},
	}
	byGroup := map[string][]int{}
	for row, key := range groups {
		if classify.IsNull(key) {
			continue
		}
		byGroup[key] = append(byGroup[key], row)
		g.GroupSizes[key]++
	}
	g.UniqueGroups = len(byGroup)

	for i, name := range numericNames {
		perGroup := map[string]GroupSummary{}
		for key, rows := range byGroup {
			var vals []float64
			for _, row := range rows {
				if row < len(series[i]) && !math.IsNaN(series[i][row]) {
					vals = append(vals, series[i][row])
				}
			}
			d, ok := describe(vals)
			if !ok {
				continue
			}
			perGroup[key] = GroupSummary{
				Count:  d.Count,
				Mean:   d.Mean,
				Median: d.Median,
				Std:    d.Std,
				Min:    d.Min,
				Max:    d.Max,
			}
		}
		if len(perGroup) > 0 {
			g.Metrics[name] = perGroup
		}
	}
	return g
}
