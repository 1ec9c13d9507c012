package reduce

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablescope/tablescope/internal/classify"
	"github.com/tablescope/tablescope/internal/source"
	"github.com/tablescope/tablescope/internal/stats"
)

func manyPairs(n int) []stats.Pair {
	pairs := make([]stats.Pair, n)
	for i := range pairs {
		pairs[i] = stats.Pair{
			ColumnA: fmt.Sprintf("a%02d", i),
			ColumnB: fmt.Sprintf("b%02d", i),
			R:       0.99 - float64(i)*0.001,
		}
	}
	return pairs
}

func bigBundle() *stats.Bundle {
	counts := map[string]int{}
	var top []stats.ValueCount
	for i := 0; i < 40; i++ {
		v := fmt.Sprintf("value-%02d", i)
		counts[v] = 100 - i
		top = append(top, stats.ValueCount{Value: v, Count: 100 - i})
	}
	b := stats.NewBundle()
	b.Add(&stats.SheetStats{
		Sheet:    "sales",
		RowCount: 500,
		Descriptive: map[string]stats.Descriptive{
			"revenue": {Count: 500, Mean: 42},
		},
		Correlation: &stats.Correlation{
			Columns:  []string{"a", "b"},
			Matrix:   [][]float64{{1, 0.5}, {0.5, 1}},
			Strong:   manyPairs(30),
			Moderate: manyPairs(25),
		},
		Frequency: map[string]stats.Frequency{
			"region": {UniqueCount: 40, TotalCount: 500, Counts: counts, Top: top},
		},
	})
	return b
}

func TestReduceCapsAndBoundary(t *testing.T) {
	set, err := Reduce(bigBundle(), DefaultLimits())
	require.NoError(t, err)

	sh := set.Sheet("sales")
	require.NotNil(t, sh)
	assert.Len(t, sh.Strong, 20)
	assert.Len(t, sh.Moderate, 20)
	require.Contains(t, sh.Frequency, "region")
	assert.Len(t, sh.Frequency["region"].Top, 10)
	assert.Equal(t, 40, sh.Frequency["region"].UniqueCount)

	b, err := Marshal(set)
	require.NoError(t, err)
	assert.Empty(t, ForbiddenKeys(b))
	assert.NotContains(t, string(b), "correlation_matrix")
}

func TestReduceIdempotent(t *testing.T) {
	lim := DefaultLimits()
	set, err := Reduce(bigBundle(), lim)
	require.NoError(t, err)
	once, err := Marshal(set)
	require.NoError(t, err)

	Clamp(set, lim)
	set, err = enforceCeiling(set, lim)
	require.NoError(t, err)
	twice, err := Marshal(set)
	require.NoError(t, err)

	assert.JSONEq(t, string(once), string(twice))
}

func TestReduceCeilingDropsLowPriorityFirst(t *testing.T) {
	b := bigBundle()
	sh := b.Sheet("sales")
	sh.Grouped = []stats.Grouped{{
		GroupColumn: "region",
		Metrics: map[string]map[string]stats.GroupSummary{
			"revenue": func() map[string]stats.GroupSummary {
				m := map[string]stats.GroupSummary{}
				for i := 0; i < 200; i++ {
					m[fmt.Sprintf("group-%03d", i)] = stats.GroupSummary{Count: i, Mean: float64(i)}
				}
				return m
			}(),
		},
	}}

	lim := DefaultLimits()
	lim.MaxBytes = 4096
	set, err := Reduce(b, lim)
	require.NoError(t, err)

	out, err := Marshal(set)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), lim.MaxBytes)
	assert.Nil(t, set.Sheet("sales").Grouped)
	// Descriptive statistics survive every drop round.
	assert.Contains(t, set.Sheet("sales").Descriptive, "revenue")
}

func TestReduceKeepsDescriptiveUnderTinyCeiling(t *testing.T) {
	lim := DefaultLimits()
	lim.MaxBytes = 10
	set, err := Reduce(bigBundle(), lim)
	require.NoError(t, err)
	sh := set.Sheet("sales")
	assert.Nil(t, sh.Grouped)
	assert.Nil(t, sh.Trends)
	assert.Nil(t, sh.Frequency)
	assert.Nil(t, sh.Strong)
	assert.Nil(t, sh.Moderate)
	assert.Contains(t, sh.Descriptive, "revenue")
}

func TestReduceStrongPairScenario(t *testing.T) {
	// Three numeric columns, 100 rows, one pair near 0.91.
	sh := &source.Sheet{Name: "data", Columns: []string{"x", "y", "z"}}
	for i := 0; i < 100; i++ {
		x := float64(i)
		// y tracks x with alternating noise strong enough to land around 0.91.
		noise := float64(1 - 2*(i%2)) * 12
		y := x + noise
		z := float64((i * 37) % 100)
		sh.Rows = append(sh.Rows, []string{
			fmt.Sprintf("%g", x), fmt.Sprintf("%g", y), fmt.Sprintf("%g", z),
		})
	}
	schema := classify.Sheet(sh, classify.DefaultRules())
	st := stats.ComputeSheet(sh, schema, stats.DefaultPlan(schema), stats.DefaultOptions())
	require.NotNil(t, st.Correlation)

	b := stats.NewBundle()
	b.Add(st)
	set, err := Reduce(b, DefaultLimits())
	require.NoError(t, err)

	reduced := set.Sheet("data")
	require.NotEmpty(t, reduced.Strong)
	top := reduced.Strong[0]
	assert.Equal(t, "x", top.ColumnA)
	assert.Equal(t, "y", top.ColumnB)
	assert.Greater(t, top.R, 0.85)

	out, err := Marshal(set)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "correlation_matrix")
}

func TestScrubForbidden(t *testing.T) {
	raw := []byte(`{"sheets":[{"sheet":"s","correlation_matrix":{"a":{"b":1}},"frequency":{"x":3},"frequency_summary":{"col":{"unique_count":1}}}]}`)
	require.ElementsMatch(t, []string{"correlation_matrix", "frequency"}, ForbiddenKeys(raw))

	out, err := scrubForbidden(raw)
	require.NoError(t, err)
	s := string(out)
	assert.NotContains(t, s, "correlation_matrix")
	assert.False(t, strings.Contains(s, `"frequency":`))
	assert.Contains(t, s, "frequency_summary")
	assert.Empty(t, ForbiddenKeys(out))
}
