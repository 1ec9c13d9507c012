package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tablescope/tablescope/internal/classify"
	"github.com/tablescope/tablescope/internal/pipeline"
)

func TestPrinterTextChunks(t *testing.T) {
	var buf bytes.Buffer
	p := newChunkPrinter(&buf, false)

	p.Print(pipeline.Chunk{Kind: pipeline.ChunkText, Stage: "file_understanding", Payload: "two sheets found"})
	p.Print(pipeline.Chunk{Kind: pipeline.ChunkText, Payload: "analysis complete: 10 stages run", Final: true})

	out := buf.String()
	if !strings.Contains(out, "file_understanding") || !strings.Contains(out, "two sheets found") {
		t.Fatalf("stage text missing: %q", out)
	}
	if !strings.Contains(out, "analysis complete") {
		t.Fatalf("final text missing: %q", out)
	}
}

func TestPrinterCapturesReport(t *testing.T) {
	var buf bytes.Buffer
	p := newChunkPrinter(&buf, false)

	md := "# Analysis of sales.csv\n\n## Summary\n"
	p.Print(pipeline.Chunk{Kind: pipeline.ChunkText, Stage: pipeline.StageReport, Payload: md})
	if p.report != md {
		t.Fatalf("report not captured: %q", p.report)
	}
}

func TestPrinterSchemaTable(t *testing.T) {
	var buf bytes.Buffer
	p := newChunkPrinter(&buf, false)

	p.Print(pipeline.Chunk{
		Kind:  pipeline.ChunkSchemaInfo,
		Stage: "data_type_analysis",
		Payload: []*classify.Schema{{
			Sheet: "sales",
			Profiles: []classify.Profile{
				{Name: "region", Type: classify.Categorical, TotalCount: 10, NullCount: 0, UniqueCount: 3},
				{Name: "revenue", Type: classify.Numeric, TotalCount: 10, NullCount: 1, UniqueCount: 9},
			},
		}},
	})

	out := buf.String()
	for _, want := range []string{"sales", "region", "categorical", "revenue", "1/10"} {
		if !strings.Contains(out, want) {
			t.Fatalf("schema table missing %q in %q", want, out)
		}
	}
}

func TestPrinterJSONMode(t *testing.T) {
	var buf bytes.Buffer
	p := newChunkPrinter(&buf, true)

	p.Print(pipeline.Chunk{Kind: pipeline.ChunkText, Stage: "report", Payload: "done", Final: true})

	var c pipeline.Chunk
	if err := json.Unmarshal(buf.Bytes(), &c); err != nil {
		t.Fatalf("not a JSON line: %v (%q)", err, buf.String())
	}
	if c.Kind != pipeline.ChunkText || !c.Final {
		t.Fatalf("round trip mismatch: %+v", c)
	}
}

func TestAlignRows(t *testing.T) {
	got := alignRows([][]string{
		{"column", "type"},
		{"revenue", "numeric"},
	})
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d", len(lines))
	}
	if idx0, idx1 := strings.Index(lines[0], "type"), strings.Index(lines[1], "numeric"); idx0 != idx1 {
		t.Fatalf("columns misaligned: %d vs %d\n%s", idx0, idx1, got)
	}
}
