package citation

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Text concatenates the text of every segment.
func Text(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Resolved returns the distinct source numbers linked by segments in the
// order they are first cited.
func Resolved(segments []Segment) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, s := range segments {
		if !s.IsLink() {
			continue
		}
		if _, ok := seen[s.Source]; ok {
			continue
		}
		seen[s.Source] = struct{}{}
		out = append(out, s.Source)
	}
	return out
}

// WriteHTML writes segments as an HTML fragment. Links open in a new tab.
// A link whose URL is not http, https, mailto or relative is written as
// plain text.
func WriteHTML(w io.Writer, segments []Segment) error {
	for _, s := range segments {
		node := &html.Node{Type: html.TextNode, Data: s.Text}
		if s.IsLink() && safeHref(s.URL) {
			a := &html.Node{
				Type:     html.ElementNode,
				Data:     "a",
				DataAtom: atom.A,
				Attr: []html.Attribute{
					{Key: "class", Val: "citation"},
					{Key: "href", Val: s.URL},
					{Key: "target", Val: "_blank"},
					{Key: "rel", Val: "noopener noreferrer"},
				},
			}
			a.AppendChild(node)
			node = a
		}
		if err := html.Render(w, node); err != nil {
			return fmt.Errorf("citation: render html: %w", err)
		}
	}
	return nil
}

// HTML is WriteHTML into a string.
func HTML(segments []Segment) (string, error) {
	var b strings.Builder
	if err := WriteHTML(&b, segments); err != nil {
		return "", err
	}
	return b.String(), nil
}

func safeHref(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return true
	}
	return false
}

var (
	mdLabelEscaper = strings.NewReplacer(`\`, `\\`, "[", `\[`, "]", `\]`)
	mdURLEscaper   = strings.NewReplacer("<", "%3C", ">", "%3E", " ", "%20", "\n", "", "\r", "")
)

// Markdown renders segments as Markdown: text verbatim, links as
// [\[Source N\]](<url>).
func Markdown(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		if !s.IsLink() {
			b.WriteString(s.Text)
			continue
		}
		fmt.Fprintf(&b, "[%s](<%s>)", EscapeMarkdownLabel(s.Text), MarkdownURL(s.URL))
	}
	return b.String()
}

// EscapeMarkdownLabel escapes brackets and backslashes for use inside a
// Markdown link label.
func EscapeMarkdownLabel(s string) string {
	return mdLabelEscaper.Replace(s)
}

// MarkdownURL makes raw safe for an angle-bracketed Markdown link destination.
func MarkdownURL(raw string) string {
	return mdURLEscaper.Replace(raw)
}
