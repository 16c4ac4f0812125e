package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textloom/textloom/internal/domain"
)

func TestChunkConfig_Validate(t *testing.T) {
	assert.NoError(t, ChunkConfig{MaxChars: 1000, Overlap: 100}.Validate())
	assert.NoError(t, ChunkConfig{MaxChars: 10, Overlap: 0}.Validate())

	assert.ErrorIs(t, ChunkConfig{MaxChars: 0, Overlap: 0}.Validate(), domain.ErrInvalidChunkSize)
	assert.ErrorIs(t, ChunkConfig{MaxChars: -5, Overlap: 0}.Validate(), domain.ErrInvalidChunkSize)
	assert.ErrorIs(t, ChunkConfig{MaxChars: 100, Overlap: 100}.Validate(), domain.ErrInvalidOverlap)
	assert.ErrorIs(t, ChunkConfig{MaxChars: 100, Overlap: 150}.Validate(), domain.ErrInvalidOverlap)
	assert.ErrorIs(t, ChunkConfig{MaxChars: 100, Overlap: -1}.Validate(), domain.ErrInvalidOverlap)
}

func TestChunkSections_InvalidConfigReported(t *testing.T) {
	sections := []domain.Section{{RawText: "some text"}}

	_, err := ChunkSections(sections, "doc.pdf", ChunkConfig{MaxChars: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidChunkSize)

	_, err = ChunkSections(sections, "doc.pdf", ChunkConfig{MaxChars: 50, Overlap: 60})
	assert.ErrorIs(t, err, domain.ErrInvalidOverlap)
}

func TestChunkSections_InheritsHeaderAndSource(t *testing.T) {
	sections := SplitSections("## Intro\nshort body\n## Detail\nmore body\n", "## ")
	chunks, err := ChunkSections(sections, "data/report.pdf", DefaultChunkConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Intro", chunks[0].HeaderTitle)
	assert.Equal(t, "Detail", chunks[1].HeaderTitle)
	for _, c := range chunks {
		assert.Equal(t, "report.pdf", c.Source)
		assert.NotEmpty(t, c.ID)
	}
}

func TestChunkSections_PageForwardFill(t *testing.T) {
	doc := "preamble with no page yet\n" +
		"# Page 1\n\n## Alpha\ntext A\n" +
		"## Beta\nstill page one\n" +
		"# Page 2\n\n## Gamma\ntext B\n"
	sections := SplitSections(doc, "## ")
	require.Len(t, sections, 4)

	chunks, err := ChunkSections(sections, "doc.pdf", DefaultChunkConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	// Preamble section carries the first marker, which appears inside it.
	assert.Equal(t, "Page 1", chunks[0].PageLabel)
	// Alpha has no marker of its own and inherits.
	assert.Equal(t, "Page 1", chunks[1].PageLabel)
	// The Page 2 marker line precedes Gamma's header, so it sits at the tail
	// of Beta's section; labels resolve at section granularity.
	assert.Equal(t, "Page 2", chunks[2].PageLabel)
	assert.Equal(t, "Page 2", chunks[3].PageLabel)
}

func TestChunkSections_NoMarkerMeansAbsentLabel(t *testing.T) {
	sections := SplitSections("## Solo\nno pages anywhere\n", "## ")
	chunks, err := ChunkSections(sections, "doc.pdf", DefaultChunkConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "", chunks[0].PageLabel)
}

func TestSplitWindows_BoundedSizeAndOverlap(t *testing.T) {
	cfg := ChunkConfig{MaxChars: 100, Overlap: 20}
	para := strings.Repeat("seven words fit here nicely and then some more padding. ", 12)

	windows := splitWindows(para, cfg)
	require.Greater(t, len(windows), 1)

	for _, w := range windows {
		assert.LessOrEqual(t, len([]rune(w)), cfg.MaxChars)
	}
}

func TestSplitWindows_ShortTextSingleWindow(t *testing.T) {
	windows := splitWindows("  short text  ", ChunkConfig{MaxChars: 100, Overlap: 10})
	require.Len(t, windows, 1)
	assert.Equal(t, "short text", windows[0])
}

func TestSplitWindows_EmptyText(t *testing.T) {
	assert.Nil(t, splitWindows("", DefaultChunkConfig()))
	assert.Nil(t, splitWindows("   \n  ", DefaultChunkConfig()))
}

func TestSplitWindows_PrefersWordBoundary(t *testing.T) {
	cfg := ChunkConfig{MaxChars: 50, Overlap: 10}
	text := strings.Repeat("alpha beta gamma delta epsilon ", 10)

	windows := splitWindows(text, cfg)
	require.Greater(t, len(windows), 1)
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	for _, w := range windows[:len(windows)-1] {
		// No window should sever a word when a space sits within tolerance.
		ends := false
		for _, word := range words {
			if strings.HasSuffix(w, word) {
				ends = true
				break
			}
		}
		assert.True(t, ends, "window should end on a word boundary, got %q", w)
	}
}

func TestSplitWindows_HardCutWithoutBoundaries(t *testing.T) {
	cfg := ChunkConfig{MaxChars: 40, Overlap: 5}
	text := strings.Repeat("x", 200)

	windows := splitWindows(text, cfg)
	require.Greater(t, len(windows), 1)
	for _, w := range windows {
		assert.LessOrEqual(t, len(w), cfg.MaxChars)
	}
	// Overlap duplication: consecutive windows share exactly Overlap runes.
	for i := 1; i < len(windows); i++ {
		prevTail := windows[i-1][len(windows[i-1])-cfg.Overlap:]
		assert.True(t, strings.HasPrefix(windows[i], prevTail))
	}
}

func TestChunkSections_DocumentOrderPreserved(t *testing.T) {
	doc := "## One\n" + strings.Repeat("first section words here. ", 20) +
		"\n## Two\n" + strings.Repeat("second section words here. ", 20) + "\n"
	sections := SplitSections(doc, "## ")

	chunks, err := ChunkSections(sections, "doc.pdf", ChunkConfig{MaxChars: 120, Overlap: 20})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	seenTwo := false
	for _, c := range chunks {
		if c.HeaderTitle == "Two" {
			seenTwo = true
		}
		if seenTwo {
			assert.Equal(t, "Two", c.HeaderTitle, "chunks from section One must precede section Two")
		}
	}
	assert.True(t, seenTwo)
}

func TestChunkSections_EndToEndShape(t *testing.T) {
	// 2-page, 2-header document around 2.5k characters.
	pageOne := strings.Repeat("alpha section sentence with several words. ", 28)
	pageTwo := strings.Repeat("beta section sentence with several words. ", 28)
	doc := "## Alpha\n# Page 1\n" + pageOne + "\n## Beta\n# Page 2\n" + pageTwo + "\n"

	sections := SplitSections(doc, "## ")
	require.Len(t, sections, 2)

	chunks, err := ChunkSections(sections, "manual.pdf", ChunkConfig{MaxChars: 1000, Overlap: 100})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Text)), 1000)
		switch c.HeaderTitle {
		case "Alpha":
			assert.Equal(t, "Page 1", c.PageLabel)
		case "Beta":
			assert.Equal(t, "Page 2", c.PageLabel)
		}
	}
}
