package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/textloom/textloom/internal/domain"
)

// SplitRecord is the line-delimited audit format: one JSON object per line
// with the chunk text, its metadata, and the content identity when available.
type SplitRecord struct {
	PageContent string                 `json:"page_content"`
	Metadata    map[string]interface{} `json:"metadata"`
	ID          string                 `json:"id,omitempty"`
}

// ChunkWriter persists split output as JSONL files for audit and reuse,
// independent of the vector store. It only appends records; it never reads or
// deduplicates.
type ChunkWriter struct {
	headerDir string
	chunkDir  string
}

// NewChunkWriter creates a writer rooted at outputDir. Destination
// directories are created on first write.
func NewChunkWriter(outputDir string) *ChunkWriter {
	return &ChunkWriter{
		headerDir: filepath.Join(outputDir, "doc_header_splits"),
		chunkDir:  filepath.Join(outputDir, "doc_char_splits"),
	}
}

// WriteSections serializes header-split sections to
// <stem>_header_splits.jsonl and returns the record count.
func (w *ChunkWriter) WriteSections(sections []domain.Section, stem string) (int, error) {
	records := make([]SplitRecord, 0, len(sections))
	for _, sec := range sections {
		records = append(records, SplitRecord{
			PageContent: sec.RawText,
			Metadata: map[string]interface{}{
				"header": nullable(sec.HeaderTitle),
			},
		})
	}
	return w.writeJSONL(w.headerDir, stem+"_header_splits.jsonl", records)
}

// WriteChunks serializes windowed chunks to <stem>_char_splits.jsonl and
// returns the record count.
func (w *ChunkWriter) WriteChunks(chunks []domain.Chunk, stem string) (int, error) {
	records := make([]SplitRecord, 0, len(chunks))
	for _, c := range chunks {
		records = append(records, SplitRecord{
			PageContent: c.Text,
			Metadata: map[string]interface{}{
				"source": c.Source,
				"header": nullable(c.HeaderTitle),
				"page":   nullable(c.PageLabel),
			},
			ID: c.ID,
		})
	}
	return w.writeJSONL(w.chunkDir, stem+"_char_splits.jsonl", records)
}

func (w *ChunkWriter) writeJSONL(dir, filename string, records []SplitRecord) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create split directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return 0, fmt.Errorf("failed to create split file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return 0, fmt.Errorf("failed to write split record: %w", err)
		}
	}

	return len(records), nil
}

// nullable maps an empty string to a JSON null so absent labels stay
// distinguishable from empty ones in the audit trail.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
