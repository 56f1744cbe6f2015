// Package console renders monitors and reports for terminals.
package console

import (
	"fmt"
	"strings"

	"github.com/starford/compass/internal/citation"
	"github.com/starford/compass/internal/models"
	"github.com/starford/compass/internal/monitorservice"
)

// ReportMarkdown renders a report view: the summary with linked markers,
// then the numbered source list.
func ReportMarkdown(v *monitorservice.ReportView) string {
	var b strings.Builder
	if v.Stale {
		fmt.Fprintf(&b, "> The monitor service is unavailable; this report was saved at %s.\n\n",
			v.FetchedAt.Format("2006-01-02 15:04 MST"))
	}
	b.WriteString("## Summary\n\n")
	b.WriteString(citation.Markdown(v.Segments))
	b.WriteString("\n\n## Sources\n\n")
	if len(v.Sources) == 0 {
		b.WriteString("No sources.\n")
		return b.String()
	}
	for i, src := range v.Sources {
		title := src.Title
		if title == "" {
			title = src.URL
		}
		fmt.Fprintf(&b, "%d. [%s](<%s>)\n", i+1, citation.EscapeMarkdownLabel(title), citation.MarkdownURL(src.URL))
	}
	return b.String()
}

// MonitorsMarkdown renders monitors as a Markdown table.
func MonitorsMarkdown(monitors []models.Monitor) string {
	if len(monitors) == 0 {
		return "No monitors yet.\n"
	}
	var b strings.Builder
	b.WriteString("| ID | Name | Schedule | Recency | Organizations | Areas of interest |\n")
	b.WriteString("|---:|------|----------|--------:|---------------|-------------------|\n")
	for _, m := range monitors {
		fmt.Fprintf(&b, "| %d | %s | %s | %d days | %s | %s |\n",
			m.ID,
			cell(m.Name),
			m.Schedule,
			m.RecencyDays,
			cell(strings.Join(m.Organizations, ", ")),
			cell(strings.Join(m.AreasOfInterest, ", ")),
		)
	}
	return b.String()
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "\r", " ")

func cell(s string) string {
	return cellEscaper.Replace(s)
}
