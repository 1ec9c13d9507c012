// Package insight derives findings and chart recommendations from reduced
// indicators.
package insight

// Recommendation is one proposed chart. Source tells which extractor
// suggested it and drives prioritization downstream.
type Recommendation struct {
	ChartType   string `json:"chart_type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	SourceStage string `json:"source_stage"`
}

// Recommendation sources, in descending priority.
const (
	SourceCorrelation = "correlation_insights"
	SourceSemantic    = "semantic_insights"
	SourceDescriptive = "descriptive_statistics"
)

// Key identifies a recommendation for deduplication.
func (r Recommendation) Key() string {
	return r.ChartType + "\x00" + r.Title
}

// Pattern is one hypothesized business pattern from the semantic extractor.
// Columns must name the columns the hypothesis is based on.
type Pattern struct {
	Name         string   `json:"pattern"`
	Description  string   `json:"description"`
	Columns      []string `json:"columns"`
	Confidence   float64  `json:"confidence"`
	AnalysisType string   `json:"recommended_analysis"`
}

// Bundle is the synthesized insight output for a whole run.
type Bundle struct {
	SummaryText         string           `json:"summary_text"`
	KeyInsights         []string         `json:"key_insights"`
	Characteristics     []string         `json:"statistical_characteristics"`
	CorrelationInsights []string         `json:"correlation_insights"`
	SemanticPatterns    []Pattern        `json:"semantic_insights"`
	Recommendations     []Recommendation `json:"chart_recommendations"`
}
