package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/errors"

	"github.com/tablescope/tablescope/internal/config"
	"github.com/tablescope/tablescope/internal/insight"
	"github.com/tablescope/tablescope/internal/source"
)

// scriptedInvoker routes on instruction content the way the real capability
// sees distinct prompts per stage.
type scriptedInvoker struct {
	semanticErr error
}

func (s *scriptedInvoker) Invoke(ctx context.Context, input any, instruction string) (string, error) {
	switch {
	case strings.Contains(instruction, "Briefly describe"):
		return "A small sales table with revenue, cost and dates.", nil
	case strings.Contains(instruction, "analysis kinds"):
		return `{"plans":{"sales":["descriptive","correlation","frequency","grouped","trend"]}}`, nil
	case strings.Contains(instruction, "business patterns"):
		if s.semanticErr != nil {
			return "", s.semanticErr
		}
		return `{"business_patterns":[{"pattern":"cost pass-through","description":"cost moves with revenue","columns":["cost","revenue"],"confidence":0.9,"recommended_analysis":"correlation"}]}`, nil
	case strings.Contains(instruction, "markdown report"):
		return "# Report\n\nRevenue and cost move together.", nil
	case strings.Contains(instruction, "Summarize"):
		return `{"summary":"Revenue and cost move together.","key_insights":["strong revenue-cost link"]}`, nil
	default:
		return "", errors.Newf("unexpected instruction: %.40s", instruction)
	}
}

type okRenderer struct{ calls int }

func (r *okRenderer) Render(ctx context.Context, payload any, intent string) (json.RawMessage, error) {
	r.calls++
	return json.RawMessage(`{"series":[]}`), nil
}

func salesTable() *source.Table {
	tbl := source.NewTable("sales.csv")
	tbl.AddSheet(&source.Sheet{
		Name:    "sales",
		Columns: []string{"region", "revenue", "cost", "day"},
		Rows: [][]string{
			{"east", "100", "50", "2024-01-01"},
			{"west", "200", "100", "2024-01-02"},
			{"east", "300", "150", "2024-01-03"},
			{"west", "400", "200", "2024-01-04"},
			{"east", "500", "250", "2024-01-05"},
			{"west", "600", "300", "2024-01-06"},
		},
	})
	return tbl
}

func testConfig() *config.Global {
	return &config.Global{
		Pipeline: config.Pipeline{
			StageTimeoutSec:     5,
			StrongCorrelation:   0.7,
			ModerateCorrelation: 0.4,
			NumericThreshold:    0.9,
			CategoricalRatio:    0.5,
			CategoricalMax:      50,
			MaxCorrelations:     20,
			MaxTopValues:        10,
			MaxReducedBytes:     100 * 1024,
			MaxRecommendations:  5,
		},
	}
}

func runPipeline(t *testing.T, svc Services, tbl *source.Table) (*Context, []Chunk) {
	t.Helper()
	pc := NewContext("run-1", tbl, "")
	engine, err := NewEngine(BuildStages(svc), svc.Config.Pipeline.StageTimeout(), svc.Log)
	require.NoError(t, err)
	var chunks []Chunk
	require.NoError(t, engine.Run(context.Background(), pc, func(c Chunk) { chunks = append(chunks, c) }))
	return pc, chunks
}

func chunksOfKind(chunks []Chunk, kind ChunkKind) []Chunk {
	var out []Chunk
	for _, c := range chunks {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func TestPipelineFullRun(t *testing.T) {
	renderer := &okRenderer{}
	svc := Services{Config: testConfig(), Capability: &scriptedInvoker{}, Renderer: renderer}
	pc, chunks := runPipeline(t, svc, salesTable())

	for _, name := range []string{
		StageUnderstanding, StageTyping, StagePlanning, StageStatistics,
		StageReduction, StageCorrelation, StageSemantic, StageSummary,
		StageReport, StageCharts,
	} {
		res, ok := pc.Result(name)
		require.True(t, ok, "stage %s must have a result", name)
		assert.Equal(t, StatusOK, res.Status, "stage %s", name)
	}

	finals := 0
	for _, c := range chunks {
		if c.Final {
			finals++
		}
	}
	assert.Equal(t, 1, finals)
	assert.True(t, chunks[len(chunks)-1].Final)

	require.Len(t, chunksOfKind(chunks, ChunkSchemaInfo), 1)
	require.NotEmpty(t, chunksOfKind(chunks, ChunkTableMarkup))

	charts := chunksOfKind(chunks, ChunkChartConfig)
	require.NotEmpty(t, charts)
	assert.LessOrEqual(t, len(charts), 5)
	assert.Equal(t, len(charts), renderer.calls)

	b, ok := pc.Payload(StageSummary).(*insight.Bundle)
	require.True(t, ok)
	assert.Equal(t, "Revenue and cost move together.", b.SummaryText)
}

func TestPipelineSemanticFailureStillReachesCharts(t *testing.T) {
	svc := Services{
		Config:     testConfig(),
		Capability: &scriptedInvoker{semanticErr: errors.New("capability timeout")},
		Renderer:   &okRenderer{},
	}
	pc, chunks := runPipeline(t, svc, salesTable())

	res, _ := pc.Result(StageSemantic)
	assert.Equal(t, StatusFailed, res.Status)

	chartsRes, _ := pc.Result(StageCharts)
	assert.Equal(t, StatusOK, chartsRes.Status)
	charts := chunksOfKind(chunks, ChunkChartConfig)
	require.NotEmpty(t, charts, "correlation-only recommendations still render")

	// Recommendations come from the correlation extractor.
	b, ok := pc.Payload(StageSummary).(*insight.Bundle)
	require.True(t, ok)
	require.NotEmpty(t, b.Recommendations)
	assert.Equal(t, insight.SourceCorrelation, b.Recommendations[0].SourceStage)
}

func TestPipelineEmptySheetDegradesNotAborts(t *testing.T) {
	tbl := source.NewTable("empty.csv")
	tbl.AddSheet(&source.Sheet{Name: "empty", Columns: []string{"a", "b"}})

	svc := Services{Config: testConfig()}
	pc, chunks := runPipeline(t, svc, tbl)

	b, ok := pc.Payload(StageSummary).(*insight.Bundle)
	require.True(t, ok)
	assert.NotEmpty(t, b.SummaryText)

	assert.True(t, chunks[len(chunks)-1].Final)
}

func TestPipelineWithoutCapabilityDegrades(t *testing.T) {
	svc := Services{Config: testConfig()}
	pc, chunks := runPipeline(t, svc, salesTable())

	und, _ := pc.Result(StageUnderstanding)
	assert.Equal(t, StatusDegraded, und.Status)
	sem, _ := pc.Result(StageSemantic)
	assert.Equal(t, StatusDegraded, sem.Status)
	ch, _ := pc.Result(StageCharts)
	assert.Equal(t, StatusDegraded, ch.Status)

	// Statistics are fully local and still compute.
	st, _ := pc.Result(StageStatistics)
	assert.Equal(t, StatusOK, st.Status)
	assert.True(t, chunks[len(chunks)-1].Final)
}

func TestAnalyzeFileUnreadableSourceAborts(t *testing.T) {
	a := NewAnalyzerWithServices(Services{Config: testConfig()})
	var chunks []Chunk
	err := a.AnalyzeFile(context.Background(), "/does/not/exist.csv", "", func(c Chunk) { chunks = append(chunks, c) })
	require.Error(t, err)
	require.Len(t, chunks, 2)
	assert.False(t, chunks[0].Final)
	assert.True(t, chunks[1].Final)
}

func TestDescriptiveMarkdown(t *testing.T) {
	svc := Services{Config: testConfig()}
	pc, _ := runPipeline(t, svc, salesTable())

	md := descriptiveMarkdown(bundleOf(pc))
	assert.Contains(t, md, "### sales")
	assert.Contains(t, md, "| cost |")
	assert.Contains(t, md, "| revenue |")

	report := renderReport(pc)
	assert.Contains(t, report, "# Analysis of sales.csv")
	assert.Contains(t, report, "## Statistics")
}
