package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/tablescope/tablescope/internal/ai"
	"github.com/tablescope/tablescope/internal/chart"
	"github.com/tablescope/tablescope/internal/classify"
	"github.com/tablescope/tablescope/internal/config"
	"github.com/tablescope/tablescope/internal/insight"
	"github.com/tablescope/tablescope/internal/logger"
	"github.com/tablescope/tablescope/internal/reduce"
	"github.com/tablescope/tablescope/internal/stats"
)

// Stage names, in run order.
const (
	StageUnderstanding = "file_understanding"
	StageTyping        = "data_type_analysis"
	StagePlanning      = "statistics_planning"
	StageStatistics    = "statistics_calculation"
	StageReduction     = "indicator_reduction"
	StageCorrelation   = "correlation_insights"
	StageSemantic      = "semantic_insights"
	StageSummary       = "result_summary"
	StageReport        = "report"
	StageCharts        = "chart_generation"
)

// Services are the collaborators the stages need. Capability and Renderer
// may be nil; the affected stages then degrade to local behavior.
type Services struct {
	Config     *config.Global
	Log        *logger.Logger
	Capability ai.Invoker
	Renderer   ai.Renderer
}

// BuildStages assembles the full analysis pipeline for one run.
func BuildStages(svc Services) []Stage {
	if svc.Log == nil {
		svc.Log = logger.NewNop()
	}
	cfg := svc.Config
	rules := classify.Rules{
		NumericThreshold: cfg.Pipeline.NumericThreshold,
		CategoricalRatio: cfg.Pipeline.CategoricalRatio,
		CategoricalMax:   cfg.Pipeline.CategoricalMax,
	}
	limits := reduce.Limits{
		MaxCorrelations: cfg.Pipeline.MaxCorrelations,
		MaxTopValues:    cfg.Pipeline.MaxTopValues,
		MaxBytes:        cfg.Pipeline.MaxReducedBytes,
	}
	statOpts := stats.Options{
		Strong:   cfg.Pipeline.StrongCorrelation,
		Moderate: cfg.Pipeline.ModerateCorrelation,
	}

	return []Stage{
		{
			Name: StageUnderstanding,
			Run: func(ctx context.Context, pc *Context) (any, Status, error) {
				if svc.Capability == nil {
					return localUnderstanding(pc), StatusDegraded, nil
				}
				out, err := svc.Capability.Invoke(ctx, tableOverview(pc),
					"Briefly describe what this tabular file contains and what analyses look promising. Respond in plain text.")
				if err != nil {
					return nil, "", err
				}
				return out, StatusOK, nil
			},
			Fallback: func() any { return "" },
			Chunks:   textChunk(func(res *StageResult) string { s, _ := res.Payload.(string); return s }),
		},
		{
			Name: StageTyping,
			Run: func(ctx context.Context, pc *Context) (any, Status, error) {
				schemas := map[string]*classify.Schema{}
				for el := pc.Table.Sheets.Front(); el != nil; el = el.Next() {
					schemas[el.Key] = classify.Sheet(el.Value, rules)
				}
				return schemas, StatusOK, nil
			},
			Fallback: func() any { return map[string]*classify.Schema{} },
			Chunks: func(res *StageResult, pc *Context) []Chunk {
				schemas := schemasOf(pc)
				ordered := make([]*classify.Schema, 0, len(schemas))
				for _, name := range pc.Table.SheetNames() {
					if s, ok := schemas[name]; ok {
						ordered = append(ordered, s)
					}
				}
				return []Chunk{{Kind: ChunkSchemaInfo, Payload: ordered}}
			},
		},
		{
			Name:         StagePlanning,
			Dependencies: []string{StageTyping},
			Run: func(ctx context.Context, pc *Context) (any, Status, error) {
				return planStatistics(ctx, svc.Capability, pc)
			},
			Fallback: func() any { return map[string]stats.Plan{} },
			Chunks: textChunk(func(res *StageResult) string {
				plans, _ := res.Payload.(map[string]stats.Plan)
				return fmt.Sprintf("statistics planned for %d sheets", len(plans))
			}),
		},
		{
			Name:         StageStatistics,
			Dependencies: []string{StageTyping, StagePlanning},
			Run: func(ctx context.Context, pc *Context) (any, Status, error) {
				bundle := stats.Compute(pc.Table, schemasOf(pc), plansOf(pc), statOpts)
				status := StatusOK
				for _, name := range bundle.SheetNames() {
					if len(bundle.Sheet(name).Errs) > 0 {
						status = StatusDegraded
					}
				}
				return bundle, status, nil
			},
			Fallback: func() any { return stats.NewBundle() },
			Chunks: func(res *StageResult, pc *Context) []Chunk {
				bundle := bundleOf(pc)
				chunks := []Chunk{{
					Kind:    ChunkText,
					Payload: fmt.Sprintf("statistics computed for %d sheets", bundle.Sheets.Len()),
				}}
				if md := descriptiveMarkdown(bundle); md != "" {
					chunks = append(chunks, Chunk{Kind: ChunkTableMarkup, Payload: md})
				}
				return chunks
			},
		},
		{
			Name:         StageReduction,
			Dependencies: []string{StageStatistics},
			Run: func(ctx context.Context, pc *Context) (any, Status, error) {
				set, err := reduce.Reduce(bundleOf(pc), limits)
				if err != nil {
					return nil, "", err
				}
				if b, err := reduce.Marshal(set); err == nil {
					if keys := reduce.ForbiddenKeys(b); len(keys) > 0 {
						svc.Log.WithRun(pc.RunID).Warnw("reduction boundary violated, stripped", "keys", keys)
					}
				}
				return set, StatusOK, nil
			},
			Fallback: func() any { return &reduce.IndicatorSet{} },
			Chunks: textChunk(func(res *StageResult) string {
				set, _ := res.Payload.(*reduce.IndicatorSet)
				if set == nil {
					return "indicators unavailable"
				}
				return fmt.Sprintf("indicators reduced for %d sheets", len(set.Sheets))
			}),
		},
		{
			Name:         StageCorrelation,
			Dependencies: []string{StageReduction},
			Run: func(ctx context.Context, pc *Context) (any, Status, error) {
				return insight.ExtractCorrelations(indicatorsOf(pc)), StatusOK, nil
			},
			Fallback: func() any { return insight.CorrelationFindings{} },
			Chunks: textChunk(func(res *StageResult) string {
				f, _ := res.Payload.(insight.CorrelationFindings)
				if len(f.Insights) == 0 {
					return "no strong correlations found"
				}
				return strings.Join(f.Insights, "\n")
			}),
		},
		{
			Name:         StageSemantic,
			Dependencies: []string{StageUnderstanding, StageTyping, StageReduction},
			Run: func(ctx context.Context, pc *Context) (any, Status, error) {
				if svc.Capability == nil {
					return []insight.Pattern(nil), StatusDegraded, nil
				}
				extractor := &insight.SemanticExtractor{Capability: svc.Capability}
				summary, _ := pc.Payload(StageUnderstanding).(string)
				patterns, err := extractor.Extract(ctx, insight.SemanticInput{
					FileName:   pc.Table.Name,
					Summary:    summary,
					Query:      pc.Query,
					Schemas:    orderedSchemas(pc),
					Indicators: indicatorsOf(pc),
				})
				if err != nil {
					return nil, "", err
				}
				return patterns, StatusOK, nil
			},
			Fallback: func() any { return []insight.Pattern(nil) },
			Chunks: textChunk(func(res *StageResult) string {
				patterns, _ := res.Payload.([]insight.Pattern)
				if len(patterns) == 0 {
					return "no semantic patterns identified"
				}
				lines := make([]string, len(patterns))
				for i, p := range patterns {
					lines[i] = fmt.Sprintf("%s (confidence %.2f): %s", p.Name, p.Confidence, p.Description)
				}
				return strings.Join(lines, "\n")
			}),
		},
		{
			Name:         StageSummary,
			Dependencies: []string{StageStatistics, StageReduction, StageCorrelation, StageSemantic},
			Run: func(ctx context.Context, pc *Context) (any, Status, error) {
				synth := &insight.Synthesizer{
					Capability:         svc.Capability,
					MaxRecommendations: cfg.Pipeline.MaxRecommendations,
				}
				bundle := synth.Synthesize(ctx, indicatorsOf(pc), findingsOf(pc), patternsOf(pc))
				return bundle, StatusOK, nil
			},
			Fallback: func() any { return &insight.Bundle{SummaryText: "Insufficient data for a detailed analysis."} },
			Chunks: textChunk(func(res *StageResult) string {
				b, _ := res.Payload.(*insight.Bundle)
				if b == nil {
					return ""
				}
				return b.SummaryText
			}),
		},
		{
			Name:         StageReport,
			Dependencies: []string{StageSummary},
			Run: func(ctx context.Context, pc *Context) (any, Status, error) {
				local := renderReport(pc)
				if svc.Capability == nil {
					return local, StatusOK, nil
				}
				out, err := svc.Capability.Invoke(ctx, map[string]any{
					"file_name":  pc.Table.Name,
					"indicators": indicatorsOf(pc),
					"insights":   insightOf(pc),
				}, "Write a concise markdown report of this analysis for a business reader. Respond with markdown only.")
				if err != nil || strings.TrimSpace(out) == "" {
					if err != nil {
						svc.Log.WithRun(pc.RunID).Warnw("report capability failed, using local report", "error", err)
					}
					return local, StatusDegraded, nil
				}
				return out, StatusOK, nil
			},
			Fallback: func() any { return "" },
			Chunks:   textChunk(func(res *StageResult) string { s, _ := res.Payload.(string); return s }),
		},
		{
			Name:         StageCharts,
			Dependencies: []string{StageSummary, StageReduction, StageCorrelation, StageSemantic},
			Run: func(ctx context.Context, pc *Context) (any, Status, error) {
				if svc.Renderer == nil {
					return []chart.Rendered(nil), StatusDegraded, nil
				}
				coord := chart.New(svc.Renderer, cfg.Pipeline.MaxRecommendations, svc.Log.WithRun(pc.RunID))
				rendered := coord.Run(ctx, chart.Sources{
					Bundle:      insightOf(pc),
					Correlation: findingsOf(pc),
					Patterns:    patternsOf(pc),
					Indicators:  indicatorsOf(pc),
				})
				return rendered, StatusOK, nil
			},
			Fallback: func() any { return []chart.Rendered(nil) },
			Chunks: func(res *StageResult, pc *Context) []Chunk {
				rendered, _ := res.Payload.([]chart.Rendered)
				chunks := make([]Chunk, 0, len(rendered))
				for _, rc := range rendered {
					chunks = append(chunks, Chunk{Kind: ChunkChartConfig, Payload: map[string]any{
						"chart_type": rc.Recommendation.ChartType,
						"title":      rc.Recommendation.Title,
						"config":     rc.Config,
					}})
				}
				return chunks
			},
		},
	}
}

// textChunk wraps a payload-to-string projection as a single text chunk,
// skipping empty output.
func textChunk(render func(res *StageResult) string) func(res *StageResult, pc *Context) []Chunk {
	return func(res *StageResult, pc *Context) []Chunk {
		s := render(res)
		if s == "" {
			return nil
		}
		return []Chunk{{Kind: ChunkText, Payload: s}}
	}
}

func schemasOf(pc *Context) map[string]*classify.Schema {
	if m, ok := pc.Payload(StageTyping).(map[string]*classify.Schema); ok {
		return m
	}
	return map[string]*classify.Schema{}
}

func orderedSchemas(pc *Context) []*classify.Schema {
	schemas := schemasOf(pc)
	out := make([]*classify.Schema, 0, len(schemas))
	for _, name := range pc.Table.SheetNames() {
		if s, ok := schemas[name]; ok {
			out = append(out, s)
		}
	}
	return out
}

func plansOf(pc *Context) map[string]stats.Plan {
	if m, ok := pc.Payload(StagePlanning).(map[string]stats.Plan); ok {
		return m
	}
	return map[string]stats.Plan{}
}

func bundleOf(pc *Context) *stats.Bundle {
	if b, ok := pc.Payload(StageStatistics).(*stats.Bundle); ok && b != nil {
		return b
	}
	return stats.NewBundle()
}

func indicatorsOf(pc *Context) *reduce.IndicatorSet {
	if s, ok := pc.Payload(StageReduction).(*reduce.IndicatorSet); ok && s != nil {
		return s
	}
	return &reduce.IndicatorSet{}
}

func findingsOf(pc *Context) insight.CorrelationFindings {
	f, _ := pc.Payload(StageCorrelation).(insight.CorrelationFindings)
	return f
}

func patternsOf(pc *Context) []insight.Pattern {
	p, _ := pc.Payload(StageSemantic).([]insight.Pattern)
	return p
}

func insightOf(pc *Context) *insight.Bundle {
	if b, ok := pc.Payload(StageSummary).(*insight.Bundle); ok {
		return b
	}
	return nil
}

// tableOverview summarizes the loaded table for the understanding stage:
// sheet names, headers, and a few sample rows. Never full data.
func tableOverview(pc *Context) map[string]any {
	sheets := make([]map[string]any, 0, pc.Table.Sheets.Len())
	for el := pc.Table.Sheets.Front(); el != nil; el = el.Next() {
		sh := el.Value
		samples := sh.Rows
		if len(samples) > 5 {
			samples = samples[:5]
		}
		sheets = append(sheets, map[string]any{
			"sheet":       sh.Name,
			"columns":     sh.Columns,
			"row_count":   sh.RowCount(),
			"sample_rows": samples,
		})
	}
	return map[string]any{
		"file_name": pc.Table.Name,
		"query":     pc.Query,
		"sheets":    sheets,
	}
}

func localUnderstanding(pc *Context) string {
	names := pc.Table.SheetNames()
	total := 0
	for el := pc.Table.Sheets.Front(); el != nil; el = el.Next() {
		total += el.Value.RowCount()
	}
	return fmt.Sprintf("File %q with %d sheet(s) (%s), %d data rows in total.",
		pc.Table.Name, len(names), strings.Join(names, ", "), total)
}

// planStatistics asks the capability which analysis kinds to run per sheet
// and falls back to the schema-derived default for sheets it skips or
// proposes nothing valid for.
func planStatistics(ctx context.Context, capability ai.Invoker, pc *Context) (any, Status, error) {
	schemas := schemasOf(pc)
	plans := map[string]stats.Plan{}
	for name, schema := range schemas {
		plans[name] = stats.DefaultPlan(schema)
	}
	if capability == nil {
		return plans, StatusOK, nil
	}

	input := map[string]any{"schemas": orderedSchemas(pc), "query": pc.Query}
	content, err := capability.Invoke(ctx, input,
		`Choose which analysis kinds to run per sheet from: descriptive, correlation, frequency, grouped, trend. Respond with JSON only: {"plans": {"<sheet>": ["<kind>", ...]}}.`)
	if err != nil {
		return nil, "", errors.Wrap(err, "statistics planning")
	}
	var decoded struct {
		Plans map[string][]string `json:"plans"`
	}
	if err := ai.DecodeJSON(content, &decoded); err != nil {
		return nil, "", errors.Wrap(err, "statistics planning")
	}
	status := StatusOK
	for name, proposed := range decoded.Plans {
		if _, known := schemas[name]; !known {
			continue
		}
		if kinds := stats.ValidKinds(proposed); len(kinds) > 0 {
			plans[name] = stats.Plan{Sheet: name, Kinds: kinds}
		} else {
			status = StatusDegraded
		}
	}
	return plans, status, nil
}
