package service

import (
	"strings"

	"github.com/textloom/textloom/internal/domain"
)

// DefaultHeaderMarker is the header prefix sections are split on. Level-2
// headers are what the document converter emits for section titles.
const DefaultHeaderMarker = "## "

// SplitSections partitions a converted document into header-bounded sections.
// Header lines are retained inside their section's raw text so downstream
// citation keeps the header wording. Content before the first header becomes a
// section with an empty title; a document without headers yields exactly one
// section. Concatenating the raw text of all sections in order reconstructs
// the input exactly.
func SplitSections(document, marker string) []domain.Section {
	if strings.TrimSpace(document) == "" {
		return nil
	}
	if marker == "" {
		marker = DefaultHeaderMarker
	}

	type headerLine struct {
		offset int
		title  string
	}

	var headers []headerLine
	offset := 0
	for _, line := range strings.SplitAfter(document, "\n") {
		if strings.HasPrefix(line, marker) {
			title := strings.TrimSpace(strings.TrimPrefix(line, marker))
			headers = append(headers, headerLine{offset: offset, title: title})
		}
		offset += len(line)
	}

	if len(headers) == 0 {
		return []domain.Section{{RawText: document}}
	}

	sections := make([]domain.Section, 0, len(headers)+1)
	if headers[0].offset > 0 {
		sections = append(sections, domain.Section{RawText: document[:headers[0].offset]})
	}
	for i, h := range headers {
		end := len(document)
		if i+1 < len(headers) {
			end = headers[i+1].offset
		}
		sections = append(sections, domain.Section{
			HeaderTitle: h.title,
			RawText:     document[h.offset:end],
		})
	}

	return sections
}
