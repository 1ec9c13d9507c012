// Package chart reconciles chart recommendations and drives the rendering
// capability.
package chart

import (
	"context"
	"encoding/json"

	"github.com/tablescope/tablescope/internal/ai"
	"github.com/tablescope/tablescope/internal/insight"
	"github.com/tablescope/tablescope/internal/logger"
	"github.com/tablescope/tablescope/internal/reduce"
)

// Phase is the coordinator's position in its per-run state machine.
type Phase string

const (
	PhaseAwaitingSummary Phase = "awaiting_summary"
	PhaseUsingSummary    Phase = "using_summary"
	PhaseUsingFallback   Phase = "using_fallback"
	PhaseEmitting        Phase = "emitting"
	PhaseDone            Phase = "done"
)

// Rendered is one chart ready for emission.
type Rendered struct {
	Recommendation insight.Recommendation
	Config         json.RawMessage
}

// Sources feed the fallback chain used when the synthesizer produced no
// recommendations.
type Sources struct {
	Bundle      *insight.Bundle
	Correlation insight.CorrelationFindings
	Patterns    []insight.Pattern
	Indicators  *reduce.IndicatorSet
}

// Coordinator selects, deduplicates, and renders charts for one run. Not
// safe for reuse across runs; build a fresh one per pipeline run.
type Coordinator struct {
	renderer  ai.Renderer
	maxCharts int
	log       *logger.Logger

	phase   Phase
	emitted map[string]struct{}
}

// New builds a Coordinator. maxCharts <= 0 means the default of 5.
func New(renderer ai.Renderer, maxCharts int, log *logger.Logger) *Coordinator {
	if maxCharts <= 0 {
		maxCharts = 5
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Coordinator{
		renderer:  renderer,
		maxCharts: maxCharts,
		log:       log,
		phase:     PhaseAwaitingSummary,
		emitted:   map[string]struct{}{},
	}
}

// Phase reports the coordinator's current state.
func (c *Coordinator) Phase() Phase { return c.phase }

// Select resolves which recommendations to render. The summary bundle wins
// when it carries any; otherwise the fallback order is correlation output,
// semantic output, then a default descriptive chart.
func (c *Coordinator) Select(src Sources) []insight.Recommendation {
	if src.Bundle != nil && len(src.Bundle.Recommendations) > 0 {
		c.phase = PhaseUsingSummary
		return insight.Dedup(src.Bundle.Recommendations, c.maxCharts)
	}
	c.phase = PhaseUsingFallback
	if len(src.Correlation.Recommendations) > 0 {
		return insight.Dedup(src.Correlation.Recommendations, c.maxCharts)
	}
	if recs := insight.PatternRecommendations(src.Patterns); len(recs) > 0 {
		return insight.Dedup(recs, c.maxCharts)
	}
	if src.Indicators != nil {
		return insight.DefaultRecommendations(src.Indicators)
	}
	return nil
}

// Run selects and renders charts. A failed render skips that chart and the
// run continues; already-emitted (chart_type, title) combinations are never
// rendered twice.
func (c *Coordinator) Run(ctx context.Context, src Sources) []Rendered {
	selected := c.Select(src)
	c.phase = PhaseEmitting

	var out []Rendered
	for _, rec := range selected {
		if _, dup := c.emitted[rec.Key()]; dup {
			continue
		}
		if len(out) >= c.maxCharts {
			break
		}
		cfg, err := c.render(ctx, rec, src.Indicators)
		if err != nil {
			c.log.Warnw("chart render failed", "chart", rec.Title, "error", err)
			continue
		}
		c.emitted[rec.Key()] = struct{}{}
		out = append(out, Rendered{Recommendation: rec, Config: cfg})
	}
	c.phase = PhaseDone
	return out
}

// render builds the request payload from reduced indicators only and invokes
// the rendering capability.
func (c *Coordinator) render(ctx context.Context, rec insight.Recommendation, set *reduce.IndicatorSet) (json.RawMessage, error) {
	payload := map[string]any{
		"chart_type":  rec.ChartType,
		"title":       rec.Title,
		"description": rec.Description,
		"indicators":  set,
	}
	return c.renderer.Render(ctx, payload, rec.Description)
}
