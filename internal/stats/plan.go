package stats

import (
	"github.com/tablescope/tablescope/internal/classify"
)

// Plan lists the analysis kinds to run for one sheet.
type Plan struct {
	Sheet string `json:"sheet"`
	Kinds []Kind `json:"kinds"`
}

// Has reports whether the plan includes a kind.
func (p Plan) Has(k Kind) bool {
	for _, kind := range p.Kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// DefaultPlan derives a plan from what the schema makes computable: each kind
// is included exactly when the column types it needs are present.
func DefaultPlan(schema *classify.Schema) Plan {
	numeric := len(schema.ColumnsOfType(classify.Numeric))
	categorical := len(schema.ColumnsOfType(classify.Categorical))
	temporal := len(schema.ColumnsOfType(classify.Temporal))

	p := Plan{Sheet: schema.Sheet}
	if numeric > 0 {
		p.Kinds = append(p.Kinds, KindDescriptive)
	}
	if numeric > 1 {
		p.Kinds = append(p.Kinds, KindCorrelation)
	}
	if categorical > 0 {
		p.Kinds = append(p.Kinds, KindFrequency)
	}
	if categorical > 0 && numeric > 0 {
		p.Kinds = append(p.Kinds, KindGrouped)
	}
	if temporal > 0 && numeric > 0 {
		p.Kinds = append(p.Kinds, KindTrend)
	}
	return p
}

// ValidKinds filters a proposed kind list down to recognized kinds, dropping
// duplicates while preserving order.
func ValidKinds(proposed []string) []Kind {
	known := map[Kind]struct{}{
		KindDescriptive: {}, KindCorrelation: {}, KindFrequency: {},
		KindGrouped: {}, KindTrend: {},
	}
	seen := map[Kind]struct{}{}
	var out []Kind
	for _, s := range proposed {
		k := Kind(s)
		if _, ok := known[k]; !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
