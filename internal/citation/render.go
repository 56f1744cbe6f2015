package citation

import (
	"strconv"
	"strings"
)

const markerPrefix = "[Source "

// Render partitions summary into text and link segments.
//
// A marker is exactly "[Source " followed by one or more ASCII digits and
// "]". Markers that point at an existing source become links labelled with
// the marker text; every other marker (zero, past the end of sources, too
// large for an int) stays plain text. Concatenating the Text of the result
// always yields summary. Empty text segments are never emitted.
func Render(summary string, sources []Source) []Segment {
	var segments []Segment
	textStart := 0

	for i := 0; i < len(summary); {
		j := strings.Index(summary[i:], markerPrefix)
		if j < 0 {
			break
		}
		start := i + j
		end, ok := scanMarker(summary, start)
		if !ok {
			i = start + 1
			continue
		}
		if start > textStart {
			segments = append(segments, Segment{Kind: KindText, Text: summary[textStart:start]})
		}
		digits := summary[start+len(markerPrefix) : end-1]
		segments = append(segments, resolve(summary[start:end], digits, sources))
		textStart = end
		i = end
	}

	if textStart < len(summary) {
		segments = append(segments, Segment{Kind: KindText, Text: summary[textStart:]})
	}
	return segments
}

// scanMarker checks for a complete marker at s[start:], which must begin with
// markerPrefix, and returns the index just past its closing bracket.
func scanMarker(s string, start int) (int, bool) {
	p := start + len(markerPrefix)
	first := p
	for p < len(s) && s[p] >= '0' && s[p] <= '9' {
		p++
	}
	if p == first || p >= len(s) || s[p] != ']' {
		return 0, false
	}
	return p + 1, true
}

func resolve(marker, digits string, sources []Source) Segment {
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 || n > len(sources) {
		return Segment{Kind: KindText, Text: marker}
	}
	return Segment{
		Kind:   KindLink,
		Text:   marker,
		URL:    sources[n-1].URL,
		Source: n,
	}
}
