package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/textloom/textloom/internal/domain"
)

// RemoteConverter posts documents to an external conversion service and
// numbers the pages of the markdown it returns. The service is expected to
// accept a multipart upload on /convert and reply with
// {"markdown": "...<!-- Page Break -->..."}.
type RemoteConverter struct {
	baseURL    string
	httpClient *http.Client
}

func NewRemoteConverter(baseURL string) *RemoteConverter {
	return &RemoteConverter{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type convertResponse struct {
	Markdown string `json:"markdown"`
}

func (c *RemoteConverter) Convert(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", domain.ConversionFailed(path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", domain.ConversionFailed(path, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", domain.ConversionFailed(path, err)
	}
	if err := mw.Close(); err != nil {
		return "", domain.ConversionFailed(path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convert", &body)
	if err != nil {
		return "", domain.ConversionFailed(path, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.ConversionFailed(path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", domain.ConversionFailed(path, fmt.Errorf("converter returned %d: %s", resp.StatusCode, payload))
	}

	var out convertResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.ConversionFailed(path, err)
	}
	if out.Markdown == "" {
		return "", domain.ConversionFailed(path, fmt.Errorf("converter returned empty markdown"))
	}

	return NumberPages(out.Markdown), nil
}
