package stats

import (
	"math"
	"time"

	"github.com/tablescope/tablescope/internal/classify"
	"github.com/tablescope/tablescope/internal/source"
)

// Options carry the correlation thresholds.
type Options struct {
	Strong   float64
	Moderate float64
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{Strong: 0.7, Moderate: 0.4}
}

// ComputeSheet runs every planned analysis kind over one sheet. Kinds that
// cannot run record an error in Errs; nothing raises.
func ComputeSheet(sh *source.Sheet, schema *classify.Schema, plan Plan, opt Options) *SheetStats {
	out := &SheetStats{Sheet: sh.Name, RowCount: sh.RowCount()}

	// A sheet with no data rows always reports a descriptive error, even
	// when the plan is empty because nothing classified as numeric.
	if out.RowCount == 0 {
		out.fail(KindDescriptive, "sheet has no data rows")
	}

	numericNames := schema.ColumnsOfType(classify.Numeric)
	series := make([][]float64, len(numericNames))
	for i, name := range numericNames {
		series[i] = numericSeries(sh.Column(name))
	}

	if plan.Has(KindDescriptive) {
		desc := map[string]Descriptive{}
		for i, name := range numericNames {
			if d, ok := describe(compact(series[i])); ok {
				desc[name] = d
			}
		}
		if len(desc) > 0 {
			out.Descriptive = desc
		} else {
			out.fail(KindDescriptive, "no numeric values to summarize")
		}
	}

	if plan.Has(KindCorrelation) {
		if corr := correlate(numericNames, series, opt.Strong, opt.Moderate); corr != nil {
			out.Correlation = corr
		} else {
			out.fail(KindCorrelation, "fewer than two numeric columns")
		}
	}

	categoricalNames := schema.ColumnsOfType(classify.Categorical)
	if plan.Has(KindFrequency) {
		freq := map[string]Frequency{}
		for _, name := range categoricalNames {
			f := frequency(sh.Column(name))
			if f.TotalCount > 0 {
				freq[name] = f
			}
		}
		if len(freq) > 0 {
			out.Frequency = freq
		} else {
			out.fail(KindFrequency, "no categorical values to count")
		}
	}

	if plan.Has(KindGrouped) {
		for _, name := range categoricalNames {
			g := groupBy(name, sh.Column(name), numericNames, series)
			if len(g.Metrics) > 0 {
				out.Grouped = append(out.Grouped, g)
			}
		}
		if len(out.Grouped) == 0 {
			out.fail(KindGrouped, "no groupable categorical and numeric columns")
		}
	}

	if plan.Has(KindTrend) {
		trends := map[string]map[string]Trend{}
		for _, tcol := range schema.ColumnsOfType(classify.Temporal) {
			times := temporalSeries(sh.Column(tcol))
			perNumeric := map[string]Trend{}
			for i, name := range numericNames {
				if tr, ok := trendOver(times, series[i]); ok {
					perNumeric[name] = tr
				}
			}
			if len(perNumeric) > 0 {
				trends[tcol] = perNumeric
			}
		}
		if len(trends) > 0 {
			out.Trends = trends
		} else {
			out.fail(KindTrend, "not enough points for a trend")
		}
	}

	return out
}

// Compute runs the per-sheet plans over every sheet of a table.
func Compute(tbl *source.Table, schemas map[string]*classify.Schema, plans map[string]Plan, opt Options) *Bundle {
	b := NewBundle()
	for el := tbl.Sheets.Front(); el != nil; el = el.Next() {
		sh := el.Value
		schema, ok := schemas[sh.Name]
		if !ok {
			continue
		}
		plan, ok := plans[sh.Name]
		if !ok {
			plan = DefaultPlan(schema)
		}
		b.Add(ComputeSheet(sh, schema, plan, opt))
	}
	return b
}

// numericSeries parses a raw column into floats, NaN marking missing cells so
// row alignment survives for pairwise work.
func numericSeries(values []string) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if f, ok := classify.ParseNumeric(v); ok && !classify.IsNull(v) {
			out[i] = f
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// temporalSeries parses a raw column into timestamps, the zero time marking
// missing cells.
func temporalSeries(values []string) []time.Time {
	out := make([]time.Time, len(values))
	for i, v := range values {
		if t, ok := classify.ParseTime(v); ok {
			out[i] = t
		}
	}
	return out
}

// compact strips NaN entries.
func compact(series []float64) []float64 {
	out := make([]float64, 0, len(series))
	for _, v := range series {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
