// Package citation turns report summaries with inline [Source N] markers into
// display segments bound to the report's source list.
package citation

import "fmt"

// Source is one entry of a report's source list. Marker [Source 1] refers to
// the first element.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Kind tags a Segment as plain text or a resolved citation link.
type Kind int

const (
	KindText Kind = iota
	KindLink
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindLink:
		return "link"
	default:
		return "text"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "text":
		*k = KindText
	case "link":
		*k = KindLink
	default:
		return fmt.Errorf("citation: unknown segment kind %q", b)
	}
	return nil
}

// Segment is an atomic unit of a rendered summary.
//
// For KindText, Text is a verbatim substring of the summary. For KindLink,
// Text is the original marker (e.g. "[Source 02]"), URL the resolved source
// URL and Source its 1-based number.
type Segment struct {
	Kind   Kind   `json:"type"`
	Text   string `json:"text"`
	URL    string `json:"url,omitempty"`
	Source int    `json:"source,omitempty"`
}

// IsLink reports whether the segment is a resolved citation.
func (s Segment) IsLink() bool {
	return s.Kind == KindLink
}
