package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceStem(t *testing.T) {
	assert.Equal(t, "report", SourceStem("data/report.pdf"))
	assert.Equal(t, "report", SourceStem("report.pdf"))
	assert.Equal(t, "annual.2024", SourceStem("/tmp/annual.2024.pdf"))
	assert.Equal(t, "notes", SourceStem("notes"))
}

func TestChunkIdentity_Deterministic(t *testing.T) {
	a := ChunkIdentity("report", "some chunk text")
	b := ChunkIdentity("report", "some chunk text")
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "report_"))
}

func TestChunkIdentity_ChangesWithTextOrSource(t *testing.T) {
	base := ChunkIdentity("report", "some chunk text")
	assert.NotEqual(t, base, ChunkIdentity("report", "some chunk text."))
	assert.NotEqual(t, base, ChunkIdentity("other", "some chunk text"))
}

func TestNewChunk(t *testing.T) {
	c := NewChunk("body text", "## Overview", "Page 2", "data/report.pdf")

	assert.Equal(t, "report.pdf", c.Source)
	assert.Equal(t, "## Overview", c.HeaderTitle)
	assert.Equal(t, "Page 2", c.PageLabel)
	assert.Equal(t, ChunkIdentity("report", "body text"), c.ID)
}

func TestValidateChunk(t *testing.T) {
	valid := NewChunk("text", "", "", "doc.pdf")
	require.NoError(t, ValidateChunk(&valid))

	assert.Error(t, ValidateChunk(nil))

	missingText := valid
	missingText.Text = ""
	assert.Error(t, ValidateChunk(&missingText))

	missingID := valid
	missingID.ID = ""
	assert.Error(t, ValidateChunk(&missingID))

	missingSource := valid
	missingSource.Source = ""
	assert.Error(t, ValidateChunk(&missingSource))
}

func TestDomainError_Format(t *testing.T) {
	err := DimensionMismatch(768, 1536)
	assert.Contains(t, err.Error(), "DIMENSION_MISMATCH")
	assert.Contains(t, err.Error(), "1536")

	wrapped := StoreUnavailable("upsert", assert.AnError)
	assert.ErrorIs(t, wrapped, wrapped)
	assert.Equal(t, assert.AnError, wrapped.Unwrap())
}
