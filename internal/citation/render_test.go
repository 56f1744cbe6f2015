package citation

import (
	"reflect"
	"strings"
	"testing"
)

func text(s string) Segment { return Segment{Kind: KindText, Text: s} }

func link(label, url string, n int) Segment {
	return Segment{Kind: KindLink, Text: label, URL: url, Source: n}
}

var twoSources = []Source{
	{Title: "T1", URL: "https://one.example/a"},
	{Title: "T2", URL: "https://two.example/b"},
}

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		sources []Source
		want    []Segment
	}{
		{
			name:    "empty summary",
			summary: "",
			sources: twoSources,
			want:    nil,
		},
		{
			name:    "no markers",
			summary: "plain text, no markers",
			want:    []Segment{text("plain text, no markers")},
		},
		{
			name:    "mixed resolution",
			summary: "A [Source 1] B [Source 2] C",
			sources: []Source{{Title: "T1", URL: "u1"}},
			want: []Segment{
				text("A "),
				link("[Source 1]", "u1", 1),
				text(" B "),
				text("[Source 2]"),
				text(" C"),
			},
		},
		{
			name:    "marker only",
			summary: "[Source 2]",
			sources: twoSources,
			want:    []Segment{link("[Source 2]", "https://two.example/b", 2)},
		},
		{
			name:    "adjacent markers",
			summary: "[Source 1][Source 2].",
			sources: twoSources,
			want: []Segment{
				link("[Source 1]", "https://one.example/a", 1),
				link("[Source 2]", "https://two.example/b", 2),
				text("."),
			},
		},
		{
			name:    "leading zeros keep label",
			summary: "see [Source 01]",
			sources: twoSources,
			want:    []Segment{text("see "), link("[Source 01]", "https://one.example/a", 1)},
		},
		{
			name:    "zero is unresolved",
			summary: "x [Source 0] y",
			sources: twoSources,
			want:    []Segment{text("x "), text("[Source 0]"), text(" y")},
		},
		{
			name:    "past end is unresolved",
			summary: "[Source 999]",
			sources: twoSources,
			want:    []Segment{text("[Source 999]")},
		},
		{
			name:    "empty sources",
			summary: "[Source 5] only",
			sources: nil,
			want:    []Segment{text("[Source 5]"), text(" only")},
		},
		{
			name:    "overflowing digits",
			summary: "[Source 99999999999999999999999999]",
			sources: twoSources,
			want:    []Segment{text("[Source 99999999999999999999999999]")},
		},
		{
			name:    "double space is not a marker",
			summary: "[Source  1]",
			sources: twoSources,
			want:    []Segment{text("[Source  1]")},
		},
		{
			name:    "lowercase is not a marker",
			summary: "[source 1]",
			sources: twoSources,
			want:    []Segment{text("[source 1]")},
		},
		{
			name:    "sign is not a marker",
			summary: "[Source -1] [Source +1]",
			sources: twoSources,
			want:    []Segment{text("[Source -1] [Source +1]")},
		},
		{
			name:    "trailing space is not a marker",
			summary: "[Source 1 ]",
			sources: twoSources,
			want:    []Segment{text("[Source 1 ]")},
		},
		{
			name:    "truncated at end of input",
			summary: "ends with [Source 12",
			sources: twoSources,
			want:    []Segment{text("ends with [Source 12")},
		},
		{
			name:    "prefix at end of input",
			summary: "ends with [Source ",
			sources: twoSources,
			want:    []Segment{text("ends with [Source ")},
		},
		{
			name:    "broken marker followed by real one",
			summary: "[Source [Source 2]]",
			sources: twoSources,
			want: []Segment{
				text("[Source "),
				link("[Source 2]", "https://two.example/b", 2),
				text("]"),
			},
		},
		{
			name:    "unicode text preserved",
			summary: "Größe — 成長 [Source 1]\n\tnext",
			sources: twoSources,
			want: []Segment{
				text("Größe — 成長 "),
				link("[Source 1]", "https://one.example/a", 1),
				text("\n\tnext"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.summary, tt.sources)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Render(%q) =\n  %#v\nwant\n  %#v", tt.summary, got, tt.want)
			}
			if rt := Text(got); rt != tt.summary {
				t.Errorf("round trip = %q, want %q", rt, tt.summary)
			}
		})
	}
}

func TestRender_RoundTripCorpus(t *testing.T) {
	corpus := []string{
		"",
		"[",
		"[Source",
		"[Source ]",
		"[Source 1",
		"]]]][[[[",
		"[Source 1][Source 0][Source 3][Source 01][Source 10]",
		strings.Repeat("[Source 2] filler ", 50),
		"a[Source 1]b[Source 2]c[Source 3]d",
	}
	for _, s := range corpus {
		got := Render(s, twoSources)
		if rt := Text(got); rt != s {
			t.Errorf("round trip of %q = %q", s, rt)
		}
		for _, seg := range got {
			if seg.Text == "" {
				t.Errorf("empty segment in render of %q", s)
			}
			if seg.IsLink() && (seg.Source < 1 || seg.Source > len(twoSources)) {
				t.Errorf("link to missing source %d in %q", seg.Source, s)
			}
		}
	}
}

func TestRender_ResolutionMatchesSourceURL(t *testing.T) {
	sources := make([]Source, 12)
	for i := range sources {
		sources[i] = Source{Title: "t", URL: "https://s.example/" + string(rune('a'+i))}
	}
	for k := 1; k <= len(sources); k++ {
		label := "[Source " + itoa(k) + "]"
		got := Render("x "+label+" y", sources)
		if len(got) != 3 || !got[1].IsLink() {
			t.Fatalf("k=%d: segments = %#v", k, got)
		}
		if got[1].URL != sources[k-1].URL || got[1].Text != label {
			t.Errorf("k=%d: got %q -> %q, want %q -> %q", k, got[1].Text, got[1].URL, label, sources[k-1].URL)
		}
	}
}

func TestRender_Idempotent(t *testing.T) {
	summary := "A [Source 1] B [Source 3] C [Source 2]"
	first := Render(summary, twoSources)
	second := Render(summary, twoSources)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("renders differ:\n%#v\n%#v", first, second)
	}
}

func TestRender_DoesNotMutateSources(t *testing.T) {
	sources := []Source{{Title: "T1", URL: "u1"}}
	before := append([]Source(nil), sources...)
	_ = Render("[Source 1] [Source 2]", sources)
	if !reflect.DeepEqual(sources, before) {
		t.Errorf("sources mutated: %#v", sources)
	}
}

func TestRender_TitleNeverUsed(t *testing.T) {
	got := Render("[Source 1]", []Source{{Title: "Headline", URL: "u"}})
	if len(got) != 1 || got[0].Text != "[Source 1]" {
		t.Errorf("label = %#v, want marker text", got)
	}
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return itoa(n/10) + string(rune('0'+n%10))
}
