package insight

import (
	"fmt"
	"math"

	"github.com/tablescope/tablescope/internal/reduce"
)

// CorrelationFindings pairs the extractor's text insights with its chart
// recommendations.
type CorrelationFindings struct {
	Insights        []string
	Recommendations []Recommendation
}

// ExtractCorrelations turns each strong pair in the reduced indicators into
// one insight sentence and one relationship-chart recommendation. Pure; no
// capability call.
func ExtractCorrelations(set *reduce.IndicatorSet) CorrelationFindings {
	var out CorrelationFindings
	for _, sheet := range set.Sheets {
		for _, pair := range sheet.Strong {
			direction := "positive"
			if pair.R < 0 {
				direction = "negative"
			}
			out.Insights = append(out.Insights, fmt.Sprintf(
				"%s and %s show a strong %s correlation (r=%.2f) in sheet %q",
				pair.ColumnA, pair.ColumnB, direction, pair.R, sheet.Sheet))
			out.Recommendations = append(out.Recommendations, Recommendation{
				ChartType: "scatter",
				Title:     fmt.Sprintf("%s vs %s", pair.ColumnA, pair.ColumnB),
				Description: fmt.Sprintf("Relationship between %s and %s (|r|=%.2f)",
					pair.ColumnA, pair.ColumnB, math.Abs(pair.R)),
				SourceStage: SourceCorrelation,
			})
		}
		if len(sheet.Strong)+len(sheet.Moderate) > 0 {
			out.Recommendations = append(out.Recommendations, Recommendation{
				ChartType:   "heatmap",
				Title:       fmt.Sprintf("Correlation heatmap for %s", sheet.Sheet),
				Description: fmt.Sprintf("Pairwise correlation overview across sheet %q", sheet.Sheet),
				SourceStage: SourceCorrelation,
			})
		}
	}
	return out
}
