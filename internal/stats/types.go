// Package stats computes per-sheet statistics over classified columns.
//
// A run is driven by a Plan listing the analysis kinds to perform. Kinds that
// cannot be computed for a sheet record an error scoped to that kind instead
// of failing the whole sheet.
package stats

import (
	"github.com/elliotchance/orderedmap/v2"
)

// Kind names one analysis family.
type Kind string

const (
	KindDescriptive Kind = "descriptive"
	KindCorrelation Kind = "correlation"
	KindFrequency   Kind = "frequency"
	KindGrouped     Kind = "grouped"
	KindTrend       Kind = "trend"
)

// Descriptive summarizes one numeric column.
type Descriptive struct {
	Count    int       `json:"count"`
	Mean     float64   `json:"mean"`
	Median   float64   `json:"median"`
	Mode     []float64 `json:"mode,omitempty"`
	Variance float64   `json:"variance"`
	Std      float64   `json:"std"`
	Min      float64   `json:"min"`
	Max      float64   `json:"max"`
	Q25      float64   `json:"q25"`
	Q50      float64   `json:"q50"`
	Q75      float64   `json:"q75"`
	Range    float64   `json:"range"`
}

// Pair is one correlation between two columns.
type Pair struct {
	ColumnA string  `json:"column_a"`
	ColumnB string  `json:"column_b"`
	R       float64 `json:"correlation"`
}

// Correlation holds the full Pearson matrix plus thresholded pair lists.
// The matrix never leaves the statistics engine unreduced.
type Correlation struct {
	Columns  []string    `json:"columns"`
	Matrix   [][]float64 `json:"correlation_matrix"`
	Strong   []Pair      `json:"strong_correlations"`
	Moderate []Pair      `json:"moderate_correlations"`
}

// ValueCount is one frequency-table entry.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Frequency summarizes a categorical column.
type Frequency struct {
	UniqueCount int            `json:"unique_count"`
	TotalCount  int            `json:"total_count"`
	Counts      map[string]int `json:"frequency"`
	Top         []ValueCount   `json:"top_10"`
}

// GroupSummary is the numeric summary of one group.
type GroupSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Grouped holds per-group numeric summaries keyed by a categorical column.
type Grouped struct {
	GroupColumn  string                             `json:"group_column"`
	UniqueGroups int                                `json:"unique_groups"`
	GroupSizes   map[string]int                     `json:"group_sizes"`
	Metrics      map[string]map[string]GroupSummary `json:"metrics"`
}

// Trend describes how a numeric column moves along a temporal one.
type Trend struct {
	Direction  string  `json:"trend"`
	ChangeRate float64 `json:"change_rate"`
	First      float64 `json:"first_value"`
	Last       float64 `json:"last_value"`
}

// SheetStats is everything computed for one sheet. Errs maps an analysis kind
// to the reason it could not run; kinds absent from both the result fields
// and Errs were not planned.
type SheetStats struct {
	Sheet       string                      `json:"sheet"`
	RowCount    int                         `json:"row_count"`
	Descriptive map[string]Descriptive      `json:"descriptive,omitempty"`
	Correlation *Correlation                `json:"correlation,omitempty"`
	Frequency   map[string]Frequency        `json:"frequency,omitempty"`
	Grouped     []Grouped                   `json:"grouped,omitempty"`
	Trends      map[string]map[string]Trend `json:"trends,omitempty"`
	Errs        map[Kind]string             `json:"errors,omitempty"`
}

func (s *SheetStats) fail(k Kind, msg string) {
	if s.Errs == nil {
		s.Errs = map[Kind]string{}
	}
	s.Errs[k] = msg
}

// Bundle collects per-sheet results in workbook order.
type Bundle struct {
	Sheets *orderedmap.OrderedMap[string, *SheetStats]
}

// NewBundle creates an empty Bundle.
func NewBundle() *Bundle {
	return &Bundle{Sheets: orderedmap.NewOrderedMap[string, *SheetStats]()}
}

// Add registers a sheet's stats.
func (b *Bundle) Add(s *SheetStats) {
	b.Sheets.Set(s.Sheet, s)
}

// Sheet returns the stats for the named sheet, or nil.
func (b *Bundle) Sheet(name string) *SheetStats {
	s, ok := b.Sheets.Get(name)
	if !ok {
		return nil
	}
	return s
}

// SheetNames returns sheet names in insertion order.
func (b *Bundle) SheetNames() []string {
	names := make([]string, 0, b.Sheets.Len())
	for el := b.Sheets.Front(); el != nil; el = el.Next() {
		names = append(names, el.Key)
	}
	return names
}
