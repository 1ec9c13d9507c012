// Package reduce projects full statistics into bounded indicator sets.
//
// Nothing whose size scales with input cardinality may leave this package:
// full correlation matrices and complete frequency tables are dropped at
// construction, correlation lists are capped, and the serialized form is both
// scanned for forbidden structures and shrunk under a byte ceiling.
package reduce

import (
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/tablescope/tablescope/internal/stats"
)

// Limits bound what a reduced set may carry.
type Limits struct {
	// MaxCorrelations caps each correlation pair list.
	MaxCorrelations int
	// MaxTopValues caps each frequency top-value list.
	MaxTopValues int
	// MaxBytes is the serialized-size ceiling.
	MaxBytes int
}

// DefaultLimits returns the standard bounds.
func DefaultLimits() Limits {
	return Limits{MaxCorrelations: 20, MaxTopValues: 10, MaxBytes: 100 * 1024}
}

// Frequency is the bounded form of a frequency table: counts survive, the
// complete value map does not.
type Frequency struct {
	UniqueCount int                `json:"unique_count"`
	TotalCount  int                `json:"total_count"`
	Top         []stats.ValueCount `json:"top_values"`
}

// SheetIndicators is the reduced view of one sheet.
type SheetIndicators struct {
	Sheet       string                            `json:"sheet"`
	RowCount    int                               `json:"row_count"`
	Descriptive map[string]stats.Descriptive      `json:"descriptive,omitempty"`
	Strong      []stats.Pair                      `json:"strong_correlations"`
	Moderate    []stats.Pair                      `json:"moderate_correlations"`
	Frequency   map[string]Frequency              `json:"frequency_summary,omitempty"`
	Grouped     []stats.Grouped                   `json:"grouped,omitempty"`
	Trends      map[string]map[string]stats.Trend `json:"trends,omitempty"`
	Errs        map[stats.Kind]string             `json:"errors,omitempty"`
}

// IndicatorSet is the reduced bundle for a whole table, sheets in source
// order.
type IndicatorSet struct {
	Sheets []SheetIndicators `json:"sheets"`
}

// Sheet returns the indicators for the named sheet, or nil.
func (s *IndicatorSet) Sheet(name string) *SheetIndicators {
	for i := range s.Sheets {
		if s.Sheets[i].Sheet == name {
			return &s.Sheets[i]
		}
	}
	return nil
}

// Marshal serializes an IndicatorSet.
func Marshal(s *IndicatorSet) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "marshal indicators")
	}
	return b, nil
}

// Reduce projects a statistics bundle into a bounded IndicatorSet. It is a
// pure projection: applying the clamp a second time changes nothing.
func Reduce(b *stats.Bundle, lim Limits) (*IndicatorSet, error) {
	set := &IndicatorSet{}
	for _, name := range b.SheetNames() {
		sheet := b.Sheet(name)
		set.Sheets = append(set.Sheets, projectSheet(sheet))
	}
	Clamp(set, lim)
	return enforceCeiling(set, lim)
}

// projectSheet copies the bounded parts of a sheet's stats and drops the
// unbounded ones. The full matrix and complete frequency maps stay behind.
func projectSheet(s *stats.SheetStats) SheetIndicators {
	out := SheetIndicators{
		Sheet:       s.Sheet,
		RowCount:    s.RowCount,
		Descriptive: s.Descriptive,
		Grouped:     s.Grouped,
		Trends:      s.Trends,
		Errs:        s.Errs,
	}
	if s.Correlation != nil {
		out.Strong = append(out.Strong, s.Correlation.Strong...)
		out.Moderate = append(out.Moderate, s.Correlation.Moderate...)
	}
	if len(s.Frequency) > 0 {
		out.Frequency = map[string]Frequency{}
		for col, f := range s.Frequency {
			out.Frequency[col] = Frequency{
				UniqueCount: f.UniqueCount,
				TotalCount:  f.TotalCount,
				Top:         f.Top,
			}
		}
	}
	return out
}

// Clamp enforces the list caps in place. Safe to apply repeatedly.
func Clamp(set *IndicatorSet, lim Limits) {
	for i := range set.Sheets {
		sh := &set.Sheets[i]
		if len(sh.Strong) > lim.MaxCorrelations {
			sh.Strong = sh.Strong[:lim.MaxCorrelations]
		}
		if len(sh.Moderate) > lim.MaxCorrelations {
			sh.Moderate = sh.Moderate[:lim.MaxCorrelations]
		}
		for col, f := range sh.Frequency {
			if len(f.Top) > lim.MaxTopValues {
				f.Top = f.Top[:lim.MaxTopValues]
				sh.Frequency[col] = f
			}
		}
	}
}

// enforceCeiling shrinks the set until its serialized form fits under the
// byte ceiling, dropping sections lowest-priority first: grouped, then
// trends, then frequency, then moderate and strong correlations. Descriptive
// statistics are never dropped.
func enforceCeiling(set *IndicatorSet, lim Limits) (*IndicatorSet, error) {
	drops := []func(*SheetIndicators){
		func(s *SheetIndicators) { s.Grouped = nil },
		func(s *SheetIndicators) { s.Trends = nil },
		func(s *SheetIndicators) { s.Frequency = nil },
		func(s *SheetIndicators) { s.Moderate = nil },
		func(s *SheetIndicators) { s.Strong = nil },
	}

	b, err := Marshal(set)
	if err != nil {
		return nil, err
	}
	b, err = scrubForbidden(b)
	if err != nil {
		return nil, err
	}
	for _, drop := range drops {
		if len(b) <= lim.MaxBytes {
			break
		}
		for i := range set.Sheets {
			drop(&set.Sheets[i])
		}
		if b, err = Marshal(set); err != nil {
			return nil, err
		}
	}
	return set, nil
}
