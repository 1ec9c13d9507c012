package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tablescope/tablescope/internal/stats"
)

// descriptiveMarkdown renders each sheet's descriptive statistics as a
// Markdown table. Empty string when nothing was computed.
func descriptiveMarkdown(b *stats.Bundle) string {
	var sb strings.Builder
	for _, name := range b.SheetNames() {
		sheet := b.Sheet(name)
		if len(sheet.Descriptive) == 0 {
			continue
		}
		cols := make([]string, 0, len(sheet.Descriptive))
		for col := range sheet.Descriptive {
			cols = append(cols, col)
		}
		sort.Strings(cols)

		fmt.Fprintf(&sb, "### %s\n\n", name)
		sb.WriteString("| column | count | mean | median | std | min | max |\n")
		sb.WriteString("|---|---|---|---|---|---|---|\n")
		for _, col := range cols {
			d := sheet.Descriptive[col]
			fmt.Fprintf(&sb, "| %s | %d | %.4g | %.4g | %.4g | %.4g | %.4g |\n",
				col, d.Count, d.Mean, d.Median, d.Std, d.Min, d.Max)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// renderReport builds the final Markdown report from the synthesized
// insights and the statistics.
func renderReport(pc *Context) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Analysis of %s\n\n", pc.Table.Name)

	if b := insightOf(pc); b != nil {
		if b.SummaryText != "" {
			sb.WriteString("## Summary\n\n")
			sb.WriteString(b.SummaryText)
			sb.WriteString("\n\n")
		}
		writeList(&sb, "Key insights", b.KeyInsights)
		writeList(&sb, "Statistical characteristics", b.Characteristics)
		writeList(&sb, "Correlations", b.CorrelationInsights)
		if len(b.SemanticPatterns) > 0 {
			sb.WriteString("## Patterns\n\n")
			for _, p := range b.SemanticPatterns {
				fmt.Fprintf(&sb, "- **%s** (confidence %.2f, columns: %s): %s\n",
					p.Name, p.Confidence, strings.Join(p.Columns, ", "), p.Description)
			}
			sb.WriteString("\n")
		}
	}

	if md := descriptiveMarkdown(bundleOf(pc)); md != "" {
		sb.WriteString("## Statistics\n\n")
		sb.WriteString(md)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "## %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
	sb.WriteString("\n")
}
