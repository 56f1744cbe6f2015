package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/starford/compass/internal/citation"
	"github.com/starford/compass/internal/models"
	"github.com/starford/compass/internal/monitorservice"
)

func sampleView() *monitorservice.ReportView {
	sources := models.SourceList{
		{Title: "Acme [Q3]", URL: "https://news.example/a"},
		{Title: "", URL: "https://news.example/b"},
	}
	summary := "Acme grew [Source 1] but [Source 5] is unknown."
	return &monitorservice.ReportView{
		MonitorID: 1,
		Summary:   summary,
		Sources:   sources,
		Segments:  citation.Render(summary, []citation.Source{{URL: sources[0].URL}, {URL: sources[1].URL}}),
	}
}

func TestReportMarkdown(t *testing.T) {
	md := ReportMarkdown(sampleView())
	want := "## Summary\n\n" +
		"Acme grew [\\[Source 1\\]](<https://news.example/a>) but [Source 5] is unknown." +
		"\n\n## Sources\n\n" +
		"1. [Acme \\[Q3\\]](<https://news.example/a>)\n" +
		"2. [https://news.example/b](<https://news.example/b>)\n"
	if md != want {
		t.Errorf("markdown =\n%s\nwant\n%s", md, want)
	}
}

func TestReportMarkdown_Stale(t *testing.T) {
	v := &monitorservice.ReportView{
		Stale:     true,
		FetchedAt: time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC),
		Sources:   models.SourceList{},
	}
	md := ReportMarkdown(v)
	if !strings.HasPrefix(md, "> The monitor service is unavailable; this report was saved at 2025-01-02 03:04 UTC.") {
		t.Errorf("stale banner missing:\n%s", md)
	}
	if !strings.Contains(md, "No sources.") {
		t.Error("empty source list text missing")
	}
}

func TestMonitorsMarkdown(t *testing.T) {
	md := MonitorsMarkdown([]models.Monitor{{
		ID:              3,
		Name:            "A|B",
		Organizations:   []string{"Acme", "Globex"},
		AreasOfInterest: []string{"AI"},
		RecencyDays:     14,
		Schedule:        models.ScheduleWeekly,
	}})
	if !strings.Contains(md, `| 3 | A\|B | weekly | 14 days | Acme, Globex | AI |`) {
		t.Errorf("table row missing:\n%s", md)
	}
	if MonitorsMarkdown(nil) != "No monitors yet.\n" {
		t.Error("empty list text")
	}
}

func TestRenderReport_Plain(t *testing.T) {
	var buf bytes.Buffer
	m := &models.Monitor{Name: "Acme watch"}
	if err := RenderReport(&buf, m, sampleView(), Options{Plain: true, Width: 80}); err != nil {
		t.Fatalf("RenderReport: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Acme watch", "Summary", "Sources", "https://news.example/a"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderMonitors_Plain(t *testing.T) {
	var buf bytes.Buffer
	err := RenderMonitors(&buf, []models.Monitor{{ID: 1, Name: "Cloud", Schedule: models.ScheduleDaily}}, Options{Plain: true})
	if err != nil {
		t.Fatalf("RenderMonitors: %v", err)
	}
	if !strings.Contains(buf.String(), "Cloud") {
		t.Errorf("output missing monitor name:\n%s", buf.String())
	}
}
