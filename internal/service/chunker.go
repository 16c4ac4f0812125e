package service

import (
	"regexp"
	"strings"

	"github.com/textloom/textloom/internal/domain"
)

// ChunkConfig controls the windowed sub-split of sections.
type ChunkConfig struct {
	MaxChars int
	Overlap  int
}

// DefaultChunkConfig matches the converter's page density reasonably well.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars: 1000,
		Overlap:  100,
	}
}

// Validate rejects parameters that cannot produce terminating, bounded
// windows. Misconfiguration surfaces to the caller rather than being clamped.
func (c ChunkConfig) Validate() error {
	if c.MaxChars <= 0 {
		return domain.ErrInvalidChunkSize
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxChars {
		return domain.ErrInvalidOverlap
	}
	return nil
}

// pageMarkerRe matches the page markers the converter injects between pages.
var pageMarkerRe = regexp.MustCompile(`#\s*Page\s*(\d+)`)

// ChunkSections splits each section into overlapping windows, propagating
// header title and page label onto every resulting chunk.
//
// Page labels are forward-filled at section granularity before sub-splitting:
// a section containing a page marker resolves to that marker's label, sections
// without one inherit the previous label, and sections preceding any marker
// stay unlabeled. A section spanning multiple markers resolves to a single
// label; finer propagation is deliberately not attempted.
//
// Output order equals document order: section order, then window order within
// a section.
func ChunkSections(sections []domain.Section, source string, cfg ChunkConfig) ([]domain.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pageLabel := ""
	var chunks []domain.Chunk
	for _, sec := range sections {
		if m := pageMarkerRe.FindStringSubmatch(sec.RawText); m != nil {
			pageLabel = "Page " + m[1]
		}
		sec.PageLabel = pageLabel

		for _, window := range splitWindows(sec.RawText, cfg) {
			chunks = append(chunks, domain.NewChunk(window, sec.HeaderTitle, sec.PageLabel, source))
		}
	}

	return chunks, nil
}

// windowSeparators is the boundary preference ladder: paragraph break, line
// break, sentence end, then word break. A hard rune cut is the last resort.
var windowSeparators = []string{"\n\n", "\n", ". ", " "}

// splitWindows cuts text into consecutive windows of at most MaxChars runes,
// each overlapping the previous by Overlap runes, preferring natural
// boundaries near the window end.
func splitWindows(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}

	runes := []rune(clean)
	if len(runes) <= cfg.MaxChars {
		return []string{clean}
	}

	windows := make([]string, 0, 4)
	start := 0
	for start < len(runes) {
		end := start + cfg.MaxChars
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = boundaryCut(runes, start, end, cfg.Overlap)
		}

		if w := strings.TrimSpace(string(runes[start:end])); w != "" {
			windows = append(windows, w)
		}

		if end >= len(runes) {
			break
		}

		next := end - cfg.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return windows
}

// boundaryCut searches backward from the hard window end for the most natural
// cut point within tolerance. It returns the hard end when no boundary is
// close enough.
func boundaryCut(runes []rune, start, end, overlap int) int {
	tolerance := overlap
	if min := (end - start) / 10; tolerance < min {
		tolerance = min
	}
	floor := end - tolerance
	if floor <= start {
		floor = start + 1
	}

	window := string(runes[floor:end])
	for _, sep := range windowSeparators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		cut := floor + len([]rune(window[:idx])) + len([]rune(sep))
		if cut > start && cut <= end {
			return cut
		}
	}

	return end
}
