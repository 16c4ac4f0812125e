package service

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textloom/textloom/internal/domain"
)

func readJSONL(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestChunkWriter_WriteSections(t *testing.T) {
	dir := t.TempDir()
	w := NewChunkWriter(dir)

	sections := []domain.Section{
		{HeaderTitle: "", RawText: "preamble text\n"},
		{HeaderTitle: "Intro", RawText: "## Intro\nbody\n"},
	}

	n, err := w.WriteSections(sections, "report")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records := readJSONL(t, filepath.Join(dir, "doc_header_splits", "report_header_splits.jsonl"))
	require.Len(t, records, 2)

	assert.Equal(t, "preamble text\n", records[0]["page_content"])
	meta := records[0]["metadata"].(map[string]interface{})
	assert.Nil(t, meta["header"], "absent header must serialize as null")

	meta = records[1]["metadata"].(map[string]interface{})
	assert.Equal(t, "Intro", meta["header"])

	// Sections carry no content identity.
	_, hasID := records[0]["id"]
	assert.False(t, hasID)
}

func TestChunkWriter_WriteChunks(t *testing.T) {
	dir := t.TempDir()
	w := NewChunkWriter(dir)

	chunks := []domain.Chunk{
		domain.NewChunk("first chunk", "Intro", "Page 1", "report.pdf"),
		domain.NewChunk("second chunk", "", "", "report.pdf"),
	}

	n, err := w.WriteChunks(chunks, "report")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records := readJSONL(t, filepath.Join(dir, "doc_char_splits", "report_char_splits.jsonl"))
	require.Len(t, records, 2)

	assert.Equal(t, "first chunk", records[0]["page_content"])
	assert.Equal(t, chunks[0].ID, records[0]["id"])

	meta := records[0]["metadata"].(map[string]interface{})
	assert.Equal(t, "report.pdf", meta["source"])
	assert.Equal(t, "Intro", meta["header"])
	assert.Equal(t, "Page 1", meta["page"])

	meta = records[1]["metadata"].(map[string]interface{})
	assert.Equal(t, "report.pdf", meta["source"])
	assert.Nil(t, meta["header"])
	assert.Nil(t, meta["page"])
}

func TestChunkWriter_RewriteReplacesFile(t *testing.T) {
	dir := t.TempDir()
	w := NewChunkWriter(dir)

	first := []domain.Chunk{
		domain.NewChunk("one", "", "", "doc.pdf"),
		domain.NewChunk("two", "", "", "doc.pdf"),
	}
	_, err := w.WriteChunks(first, "doc")
	require.NoError(t, err)

	second := []domain.Chunk{domain.NewChunk("three", "", "", "doc.pdf")}
	n, err := w.WriteChunks(second, "doc")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records := readJSONL(t, filepath.Join(dir, "doc_char_splits", "doc_char_splits.jsonl"))
	require.Len(t, records, 1)
	assert.Equal(t, "three", records[0]["page_content"])
}

func TestChunkWriter_EmptyInputStillWritesFile(t *testing.T) {
	dir := t.TempDir()
	w := NewChunkWriter(dir)

	n, err := w.WriteSections(nil, "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = os.Stat(filepath.Join(dir, "doc_header_splits", "empty_header_splits.jsonl"))
	assert.NoError(t, err)
}
