// Package convert turns source documents into markdown with page markers,
// the input format the section splitter and chunker operate on.
package convert

import (
	"context"
	"fmt"
	"strings"
)

// PageBreakPlaceholder is the delimiter external converters leave between
// pages of the exported markdown.
const PageBreakPlaceholder = "<!-- Page Break -->"

// Converter is the document-conversion capability: it maps a source file to
// markdown text carrying "# Page N" markers.
type Converter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// NumberPages splits exported markdown on the page-break placeholder and
// prefixes every non-empty page with a "# Page N" marker, N counting from 1.
// Converted output otherwise carries no page numbering, and the chunker's
// page-label propagation depends on these markers.
func NumberPages(markdown string) string {
	pages := strings.Split(markdown, PageBreakPlaceholder)

	var b strings.Builder
	for i, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		b.WriteString(fmt.Sprintf("\n\n# Page %d\n\n %s\n", i+1, page))
	}
	return b.String()
}
