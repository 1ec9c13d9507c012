package insight

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tablescope/tablescope/internal/ai"
	"github.com/tablescope/tablescope/internal/reduce"
)

// Synthesizer merges the extractors' outputs into one Bundle. When a
// capability is present it writes the narrative summary; otherwise, or on
// capability failure, a locally built summary is used.
type Synthesizer struct {
	Capability ai.Invoker
	// MaxRecommendations caps the final chart list; zero means the default
	// of 5.
	MaxRecommendations int
}

const summaryInstruction = `Summarize the key findings of this tabular data analysis in a short paragraph, then list the most important insights. Respond with JSON only: {"summary": string, "key_insights": [string]}.`

// Synthesize builds the InsightBundle. It never returns an error: every
// degradation path falls back to locally computed content.
func (s *Synthesizer) Synthesize(ctx context.Context, set *reduce.IndicatorSet, corr CorrelationFindings, patterns []Pattern) *Bundle {
	b := &Bundle{
		Characteristics:     Characterize(set),
		CorrelationInsights: corr.Insights,
		SemanticPatterns:    patterns,
	}

	candidates := make([]Recommendation, 0, len(corr.Recommendations)+len(patterns)+1)
	candidates = append(candidates, corr.Recommendations...)
	candidates = append(candidates, PatternRecommendations(patterns)...)
	candidates = append(candidates, DefaultRecommendations(set)...)
	b.Recommendations = Dedup(candidates, s.maxRecs())

	s.fillSummary(ctx, b)
	return b
}

func (s *Synthesizer) maxRecs() int {
	if s.MaxRecommendations > 0 {
		return s.MaxRecommendations
	}
	return 5
}

func (s *Synthesizer) fillSummary(ctx context.Context, b *Bundle) {
	if s.Capability != nil {
		input := map[string]any{
			"statistical_characteristics": b.Characteristics,
			"correlation_insights":        b.CorrelationInsights,
			"semantic_insights":           b.SemanticPatterns,
		}
		if content, err := s.Capability.Invoke(ctx, input, summaryInstruction); err == nil {
			var decoded struct {
				Summary     string   `json:"summary"`
				KeyInsights []string `json:"key_insights"`
			}
			if err := ai.DecodeJSON(content, &decoded); err == nil && decoded.Summary != "" {
				b.SummaryText = decoded.Summary
				b.KeyInsights = decoded.KeyInsights
				return
			}
		}
	}
	b.SummaryText = localSummary(b)
	b.KeyInsights = append(b.KeyInsights, b.CorrelationInsights...)
	for _, p := range b.SemanticPatterns {
		b.KeyInsights = append(b.KeyInsights, p.Description)
	}
}

func localSummary(b *Bundle) string {
	parts := []string{fmt.Sprintf("Analyzed data with %d statistical characteristics", len(b.Characteristics))}
	if n := len(b.CorrelationInsights); n > 0 {
		parts = append(parts, fmt.Sprintf("%d strong correlations", n))
	}
	if n := len(b.SemanticPatterns); n > 0 {
		parts = append(parts, fmt.Sprintf("%d hypothesized patterns", n))
	}
	if len(b.Characteristics) == 0 && len(b.CorrelationInsights) == 0 {
		return "Insufficient data for a detailed analysis."
	}
	return strings.Join(parts, "; ") + "."
}

// Characterize describes each numeric column's central tendency, skew, and
// variability from the reduced descriptive statistics.
func Characterize(set *reduce.IndicatorSet) []string {
	var out []string
	for _, sheet := range set.Sheets {
		for _, col := range sortedKeys(sheet.Descriptive) {
			d := sheet.Descriptive[col]
			skew := "roughly symmetric"
			if d.Std > 0 {
				switch shift := (d.Mean - d.Median) / d.Std; {
				case shift > 0.2:
					skew = "right-skewed"
				case shift < -0.2:
					skew = "left-skewed"
				}
			}
			variability := "low variability"
			if d.Mean != 0 {
				cv := math.Abs(d.Std / d.Mean)
				if cv > 1 {
					variability = "high variability"
				} else if cv > 0.3 {
					variability = "moderate variability"
				}
			}
			out = append(out, fmt.Sprintf("%s/%s: mean %.2f, median %.2f, %s, %s",
				sheet.Sheet, col, d.Mean, d.Median, skew, variability))
		}
	}
	return out
}

// Dedup removes repeated (chart_type, title) combinations keeping first
// occurrence, orders by source priority, and caps the list.
func Dedup(recs []Recommendation, limit int) []Recommendation {
	priority := map[string]int{
		SourceCorrelation: 0,
		SourceSemantic:    1,
		SourceDescriptive: 2,
	}
	buckets := make([][]Recommendation, 3)
	seen := map[string]struct{}{}
	for _, r := range recs {
		if _, dup := seen[r.Key()]; dup {
			continue
		}
		seen[r.Key()] = struct{}{}
		p, ok := priority[r.SourceStage]
		if !ok {
			p = 2
		}
		buckets[p] = append(buckets[p], r)
	}
	var out []Recommendation
	for _, bucket := range buckets {
		out = append(out, bucket...)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DefaultRecommendations gives the coordinator something to draw even when
// no extractor produced a chart: one overview of the first numeric column.
func DefaultRecommendations(set *reduce.IndicatorSet) []Recommendation {
	for _, sheet := range set.Sheets {
		for _, col := range sortedKeys(sheet.Descriptive) {
			return []Recommendation{{
				ChartType:   "bar",
				Title:       fmt.Sprintf("Distribution of %s", col),
				Description: fmt.Sprintf("Descriptive overview of %s in sheet %q", col, sheet.Sheet),
				SourceStage: SourceDescriptive,
			}}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
