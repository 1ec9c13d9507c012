package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/tablescope/tablescope/internal/classify"
	"github.com/tablescope/tablescope/internal/pipeline"
)

// chunkPrinter renders streamed pipeline chunks to a terminal. In JSON mode
// it emits each chunk as one JSON line instead.
type chunkPrinter struct {
	out      io.Writer
	jsonMode bool
	// report keeps the markdown of the report stage for --output.
	report string
}

func newChunkPrinter(out io.Writer, jsonMode bool) *chunkPrinter {
	return &chunkPrinter{out: out, jsonMode: jsonMode}
}

func (p *chunkPrinter) Print(c pipeline.Chunk) {
	if c.Stage == pipeline.StageReport {
		if s, ok := c.Payload.(string); ok {
			p.report = s
		}
	}
	if p.jsonMode {
		b, err := json.Marshal(c)
		if err != nil {
			fmt.Fprintf(p.out, `{"content_kind":"text","payload":"marshal error: %v"}`+"\n", err)
			return
		}
		fmt.Fprintln(p.out, string(b))
		return
	}

	switch c.Kind {
	case pipeline.ChunkSchemaInfo:
		p.printSchemas(c)
	case pipeline.ChunkChartConfig:
		p.printChart(c)
	case pipeline.ChunkTableMarkup:
		if s, ok := c.Payload.(string); ok {
			fmt.Fprintln(p.out, s)
		}
	default:
		s, _ := c.Payload.(string)
		if s == "" {
			return
		}
		if c.Final {
			color.Fprintf(p.out, "<green>✓ %s</>\n", s)
			return
		}
		if c.Stage != "" {
			color.Fprintf(p.out, "<cyan>[%s]</> ", c.Stage)
		}
		fmt.Fprintln(p.out, s)
	}
}

func (p *chunkPrinter) printSchemas(c pipeline.Chunk) {
	schemas, ok := c.Payload.([]*classify.Schema)
	if !ok {
		return
	}
	for _, schema := range schemas {
		color.Fprintf(p.out, "<cyan>[%s]</> sheet %q\n", c.Stage, schema.Sheet)
		rows := make([][]string, 0, len(schema.Profiles)+1)
		rows = append(rows, []string{"column", "type", "nulls", "unique"})
		for _, prof := range schema.Profiles {
			rows = append(rows, []string{
				prof.Name,
				string(prof.Type),
				fmt.Sprintf("%d/%d", prof.NullCount, prof.TotalCount),
				fmt.Sprintf("%d", prof.UniqueCount),
			})
		}
		fmt.Fprint(p.out, alignRows(rows))
	}
}

func (p *chunkPrinter) printChart(c pipeline.Chunk) {
	m, ok := c.Payload.(map[string]any)
	if !ok {
		return
	}
	title, _ := m["title"].(string)
	chartType, _ := m["chart_type"].(string)
	color.Fprintf(p.out, "<magenta>chart</> %s (%s)\n", title, chartType)
	if cfg, err := json.MarshalIndent(m["config"], "  ", "  "); err == nil {
		fmt.Fprintf(p.out, "  %s\n", cfg)
	}
}

// alignRows pads each cell to the display width of its column. Cell widths
// use runewidth so CJK headers line up.
func alignRows(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && runewidth.StringWidth(cell) > widths[i] {
				widths[i] = runewidth.StringWidth(cell)
			}
		}
	}
	var b strings.Builder
	for _, row := range rows {
		b.WriteString("  ")
		for i, cell := range row {
			b.WriteString(runewidth.FillRight(cell, widths[i]))
			if i < len(row)-1 {
				b.WriteString("  ")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
