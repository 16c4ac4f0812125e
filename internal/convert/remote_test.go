package convert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textloom/textloom/internal/domain"
)

func writeTempDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.pdf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRemoteConverter_Convert_Success(t *testing.T) {
	var gotFilename string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/convert", r.URL.Path)

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = header.Filename

		_ = json.NewEncoder(w).Encode(map[string]string{
			"markdown": "page one" + PageBreakPlaceholder + "page two",
		})
	}))
	defer srv.Close()

	conv := NewRemoteConverter(srv.URL)
	md, err := conv.Convert(context.Background(), writeTempDoc(t, "%PDF-fake"))
	require.NoError(t, err)

	assert.Equal(t, "sample.pdf", gotFilename)
	assert.Contains(t, md, "# Page 1\n\n page one")
	assert.Contains(t, md, "# Page 2\n\n page two")
}

func TestRemoteConverter_Convert_MissingFile(t *testing.T) {
	conv := NewRemoteConverter("http://localhost:0")
	_, err := conv.Convert(context.Background(), "/no/such/file.pdf")

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeConversion, domainErr.Code)
}

func TestRemoteConverter_Convert_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "conversion engine crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	conv := NewRemoteConverter(srv.URL)
	_, err := conv.Convert(context.Background(), writeTempDoc(t, "%PDF-fake"))

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeConversion, domainErr.Code)
	assert.Contains(t, err.Error(), "500")
}

func TestRemoteConverter_Convert_EmptyMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"markdown": ""})
	}))
	defer srv.Close()

	conv := NewRemoteConverter(srv.URL)
	_, err := conv.Convert(context.Background(), writeTempDoc(t, "%PDF-fake"))

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeConversion, domainErr.Code)
}

func TestRemoteConverter_Convert_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conv := NewRemoteConverter(srv.URL)
	_, err := conv.Convert(ctx, writeTempDoc(t, "%PDF-fake"))
	require.Error(t, err)
}
