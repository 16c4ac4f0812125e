package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/textloom/textloom/internal/api"
	"github.com/textloom/textloom/internal/domain"
	"github.com/textloom/textloom/internal/service"
)

type IngestService interface {
	Ingest(ctx context.Context, path string) (*service.IngestResult, error)
	ListDocuments(ctx context.Context) ([]*domain.Document, error)
}

// Archiver stores a copy of the uploaded source file in long-term storage.
type Archiver interface {
	Archive(ctx context.Context, key, path string) error
}

type DocumentHandler struct {
	svc      IngestService
	archiver Archiver
	dataDir  string
}

// NewDocumentHandler creates a document handler. archiver may be nil when no
// object storage is configured.
func NewDocumentHandler(svc IngestService, archiver Archiver, dataDir string) *DocumentHandler {
	return &DocumentHandler{svc: svc, archiver: archiver, dataDir: dataDir}
}

type IngestResponse struct {
	Filename     string `json:"filename"`
	SectionCount int    `json:"section_count"`
	ChunkCount   int    `json:"chunk_count"`
	VectorCount  int    `json:"vector_count"`
	Inserted     int    `json:"inserted"`
	Updated      int    `json:"updated"`
}

type DocumentResponse struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	Stem         string `json:"stem"`
	SectionCount int    `json:"section_count"`
	ChunkCount   int    `json:"chunk_count"`
	IngestedAt   string `json:"ingested_at"`
}

type DocumentListResponse struct {
	Documents []*DocumentResponse `json:"documents"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:           d.ID,
		Filename:     d.Filename,
		Stem:         d.Stem,
		SectionCount: d.SectionCount,
		ChunkCount:   d.ChunkCount,
		IngestedAt:   d.IngestedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// Ingest accepts a multipart PDF upload, stages it on disk, and runs the
// ingestion pipeline. Re-uploading the same file converges on the same stored
// chunks.
func (h *DocumentHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		api.HandleError(w, domain.ErrUnsupportedFileType)
		return
	}

	path, err := h.stageUpload(filename, file)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	if h.archiver != nil {
		if err := h.archiver.Archive(r.Context(), filename, path); err != nil {
			// Archival is best-effort; ingestion proceeds.
			log.Printf("failed to archive %s: %v", filename, err)
		}
	}

	result, err := h.svc.Ingest(r.Context(), path)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, IngestResponse{
		Filename:     result.Filename,
		SectionCount: result.SectionCount,
		ChunkCount:   result.ChunkCount,
		VectorCount:  result.VectorCount,
		Inserted:     result.Inserted,
		Updated:      result.Updated,
	})
}

// List returns the ingestion registry, most recent first.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListDocuments(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]*DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentToResponse(d))
	}
	api.Success(w, http.StatusOK, DocumentListResponse{Documents: out})
}

func (h *DocumentHandler) stageUpload(filename string, src io.Reader) (string, error) {
	if err := os.MkdirAll(h.dataDir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(h.dataDir, filename)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return path, nil
}
