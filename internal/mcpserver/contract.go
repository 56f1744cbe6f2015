package mcpserver

// CitationFormat describes how report summaries cite their sources.
const CitationFormat = `# Compass Citation Format

A report has a summary and an ordered list of sources. Sentences in the
summary cite sources with inline markers.

## Marker grammar

A marker is exactly:

- the literal text ` + "`" + `[Source ` + "`" + ` (capital S, one space),
- one or more ASCII digits 0-9,
- the literal ` + "`" + `]` + "`" + `.

Markers are matched left to right and never overlap. Anything else is plain
text: ` + "`" + `[source 1]` + "`" + `, ` + "`" + `[Source  1]` + "`" + ` (two spaces), ` + "`" + `[Source -1]` + "`" + `,
` + "`" + `[Source 1 ]` + "`" + ` and a truncated ` + "`" + `[Source 12` + "`" + `.

## Resolution

The number N is 1-based and read in base 10, so ` + "`" + `[Source 01]` + "`" + ` is source 1.
When 1 <= N <= number of sources the marker links to the URL of source N and
keeps its original text as the label. Otherwise (N = 0, N too large, or a
number that does not fit an int) the marker stays plain text.

Source titles are shown in the source list only; they never replace a marker.

## Example

Sources: 1 = https://a.example, 2 = https://b.example

` + "```" + `
Acme expands [Source 1]; rivals react [Source 3].
` + "```" + `

renders as: text "Acme expands ", link "[Source 1]" -> https://a.example,
text "; rivals react ", text "[Source 3]", text ".".
`
