// Package classify assigns a data type to every column of a sheet.
//
// Classification looks only at raw cell strings. The decision order is
// numeric, temporal, categorical, text; a column where every cell is missing
// falls through to text.
package classify

import (
	"github.com/tablescope/tablescope/internal/source"
)

// ColumnType is the inferred type of a column.
type ColumnType string

const (
	Numeric     ColumnType = "numeric"
	Temporal    ColumnType = "temporal"
	Categorical ColumnType = "categorical"
	Text        ColumnType = "text"
)

// Rules are the classification thresholds.
type Rules struct {
	// NumericThreshold is the minimum share of non-null cells that must
	// parse as numbers for a numeric column.
	NumericThreshold float64
	// CategoricalRatio is the exclusive upper bound on unique/non-null for
	// a categorical column.
	CategoricalRatio float64
	// CategoricalMax is the exclusive upper bound on distinct values for a
	// categorical column.
	CategoricalMax int
}

// DefaultRules returns the standard thresholds.
func DefaultRules() Rules {
	return Rules{NumericThreshold: 0.9, CategoricalRatio: 0.5, CategoricalMax: 50}
}

// Profile describes one classified column.
type Profile struct {
	Name        string     `json:"name"`
	Type        ColumnType `json:"type"`
	TotalCount  int        `json:"total_count"`
	NullCount   int        `json:"null_count"`
	UniqueCount int        `json:"unique_count"`
	Samples     []string   `json:"samples,omitempty"`
}

// NonNull returns the number of cells carrying a value.
func (p Profile) NonNull() int { return p.TotalCount - p.NullCount }

// Schema is the classified view of a sheet, in column order.
type Schema struct {
	Sheet    string    `json:"sheet"`
	Profiles []Profile `json:"columns"`
}

// Profile returns the profile for the named column, or nil.
func (s *Schema) Profile(name string) *Profile {
	for i := range s.Profiles {
		if s.Profiles[i].Name == name {
			return &s.Profiles[i]
		}
	}
	return nil
}

// ColumnsOfType returns names of columns with the given type, in sheet order.
func (s *Schema) ColumnsOfType(t ColumnType) []string {
	var out []string
	for _, p := range s.Profiles {
		if p.Type == t {
			out = append(out, p.Name)
		}
	}
	return out
}

const maxSamples = 5

// Sheet classifies every column of a sheet.
func Sheet(sh *source.Sheet, rules Rules) *Schema {
	schema := &Schema{Sheet: sh.Name, Profiles: make([]Profile, 0, len(sh.Columns))}
	for _, name := range sh.Columns {
		schema.Profiles = append(schema.Profiles, Column(name, sh.Column(name), rules))
	}
	return schema
}

// Column classifies a single column from its raw values.
func Column(name string, values []string, rules Rules) Profile {
	p := Profile{Name: name, Type: Text, TotalCount: len(values)}

	uniques := map[string]struct{}{}
	numericCount := 0
	temporalCount := 0
	for _, v := range values {
		if IsNull(v) {
			p.NullCount++
			continue
		}
		if _, seen := uniques[v]; !seen {
			uniques[v] = struct{}{}
			if len(p.Samples) < maxSamples {
				p.Samples = append(p.Samples, v)
			}
		}
		if _, ok := ParseNumeric(v); ok {
			numericCount++
		} else if _, ok := ParseTime(v); ok {
			temporalCount++
		}
	}
	p.UniqueCount = len(uniques)

	nonNull := p.NonNull()
	if nonNull == 0 {
		return p
	}
	switch {
	case float64(numericCount)/float64(nonNull) >= rules.NumericThreshold:
		p.Type = Numeric
	case float64(temporalCount)/float64(nonNull) >= rules.NumericThreshold:
		p.Type = Temporal
	case float64(p.UniqueCount)/float64(nonNull) < rules.CategoricalRatio && p.UniqueCount < rules.CategoricalMax:
		p.Type = Categorical
	default:
		p.Type = Text
	}
	return p
}
