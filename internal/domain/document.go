package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Section is a contiguous slice of a converted document bounded by a header
// marker (or the document start). Sections are ordered and partition the
// document text without overlap or gap.
type Section struct {
	// HeaderTitle is the header text without the marker prefix. Empty for
	// content that precedes the first header.
	HeaderTitle string
	// RawText includes the header line itself; concatenating the RawText of
	// all sections in order reconstructs the original document exactly.
	RawText string
	// PageLabel is resolved by the chunker's forward-fill pass. Empty until
	// a page marker has been observed.
	PageLabel string
}

// Chunk is a bounded-size text window within a section, the unit of retrieval.
// Chunks are immutable once created; re-ingestion supersedes them via
// upsert-by-identity rather than mutation.
type Chunk struct {
	ID          string
	Text        string
	HeaderTitle string
	PageLabel   string
	Source      string
}

// ScoredChunk is a chunk returned from a similarity search together with its
// similarity score and original insertion sequence.
type ScoredChunk struct {
	Chunk
	Score float64
	Seq   int64
}

// Document is a registry entry for an ingested source file.
type Document struct {
	ID           string
	Filename     string
	Stem         string
	SectionCount int
	ChunkCount   int
	IngestedAt   time.Time
}

// UpsertResult reports how an upsert batch resolved against existing identities.
type UpsertResult struct {
	Inserted int
	Updated  int
}

// SourceStem returns the base filename without its extension, used as the
// stable per-document identity prefix.
func SourceStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ChunkIdentity derives the deterministic upsert key for a chunk. The same
// (source stem, text) pair always resolves to the same identity; any textual
// change yields a new one. A cryptographic digest keeps the idempotence
// guarantee collision-free.
func ChunkIdentity(sourceStem, text string) string {
	h := sha256.Sum256([]byte(sourceStem + "\x00" + text))
	return fmt.Sprintf("%s_%s", sourceStem, hex.EncodeToString(h[:]))
}

// NewChunk creates a chunk with its identity resolved from source and text.
func NewChunk(text, headerTitle, pageLabel, source string) Chunk {
	return Chunk{
		ID:          ChunkIdentity(SourceStem(source), text),
		Text:        text,
		HeaderTitle: headerTitle,
		PageLabel:   pageLabel,
		Source:      filepath.Base(source),
	}
}

// ValidateChunk validates a Chunk instance before persistence.
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}
	if c.Text == "" {
		return fmt.Errorf("chunk Text is required")
	}
	if c.Source == "" {
		return fmt.Errorf("chunk Source is required")
	}
	return nil
}
