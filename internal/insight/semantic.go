package insight

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/tablescope/tablescope/internal/ai"
	"github.com/tablescope/tablescope/internal/classify"
	"github.com/tablescope/tablescope/internal/reduce"
)

// SemanticInput is what the semantic extractor hands to the reasoning
// capability: file understanding, type tags, and reduced indicators only.
type SemanticInput struct {
	FileName   string               `json:"file_name"`
	Summary    string               `json:"summary,omitempty"`
	Query      string               `json:"query,omitempty"`
	Schemas    []*classify.Schema   `json:"schemas"`
	Indicators *reduce.IndicatorSet `json:"indicators"`
}

const semanticInstruction = `You are a data analyst. From the supplied table schema and reduced statistical indicators, hypothesize business patterns present in the data. Respond with JSON only: {"business_patterns": [{"pattern": string, "description": string, "columns": [string], "confidence": number between 0 and 1, "recommended_analysis": string}]}. Every pattern must cite the columns it is based on.`

// SemanticExtractor hypothesizes business patterns through the reasoning
// capability.
type SemanticExtractor struct {
	Capability ai.Invoker
}

// Extract invokes the capability and validates its output: confidences are
// clamped to [0,1] and patterns citing no columns are dropped.
func (e *SemanticExtractor) Extract(ctx context.Context, input SemanticInput) ([]Pattern, error) {
	if e.Capability == nil {
		return nil, errors.New("semantic extractor has no capability")
	}
	content, err := e.Capability.Invoke(ctx, input, semanticInstruction)
	if err != nil {
		return nil, errors.Wrap(err, "semantic analysis")
	}
	var decoded struct {
		BusinessPatterns []Pattern `json:"business_patterns"`
	}
	if err := ai.DecodeJSON(content, &decoded); err != nil {
		return nil, errors.Wrap(err, "semantic analysis")
	}
	return ValidatePatterns(decoded.BusinessPatterns), nil
}

// ValidatePatterns enforces the pattern contract on capability output.
func ValidatePatterns(patterns []Pattern) []Pattern {
	var out []Pattern
	for _, p := range patterns {
		if len(p.Columns) == 0 {
			continue
		}
		if p.Confidence < 0 {
			p.Confidence = 0
		} else if p.Confidence > 1 {
			p.Confidence = 1
		}
		out = append(out, p)
	}
	return out
}

// PatternRecommendations converts patterns into chart recommendations, one
// per pattern, using the recommended analysis to choose a chart type.
func PatternRecommendations(patterns []Pattern) []Recommendation {
	var out []Recommendation
	for _, p := range patterns {
		out = append(out, Recommendation{
			ChartType:   chartTypeFor(p.AnalysisType),
			Title:       p.Name,
			Description: p.Description,
			SourceStage: SourceSemantic,
		})
	}
	return out
}

func chartTypeFor(analysis string) string {
	switch analysis {
	case "trend", "time_series":
		return "line"
	case "distribution":
		return "histogram"
	case "comparison", "grouped":
		return "bar"
	case "correlation", "relationship":
		return "scatter"
	case "composition", "share":
		return "pie"
	default:
		return "bar"
	}
}
