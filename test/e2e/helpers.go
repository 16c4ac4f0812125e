//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"math/rand"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/textloom/textloom/internal/api/handlers"
	"github.com/textloom/textloom/internal/repository"
	"github.com/textloom/textloom/internal/server"
	"github.com/textloom/textloom/internal/service"
	"github.com/textloom/textloom/internal/storage"
	"github.com/textloom/textloom/internal/testutil"
)

const (
	e2eAPIKey     = "e2e-test-key"
	e2eDimensions = 768
)

// E2ETestEnv holds all resources needed for E2E tests.
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	MinIOC       *testutil.MinIOContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	WorkDir      string
	BinaryDir    string
	APIKey       string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and server.
// The embedder is deterministic and local, so no OpenAI key is needed; PDF
// conversion is stubbed out by treating uploaded bytes as markdown.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewMinIOContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		Bucket:          "test-archive",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	workDir, err := os.MkdirTemp("", "textloom-e2e-*")
	if err != nil {
		t.Fatalf("failed to create work dir: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, s3Client, workDir, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		MinIOC:       s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		WorkDir:      workDir,
		APIKey:       e2eAPIKey,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources.
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.MinIOC != nil {
		e.MinIOC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.WorkDir != "" {
		os.RemoveAll(e.WorkDir)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// BuildBinaries builds the textloom and textloomd binaries.
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "textloom-e2e-bin-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"textloomd", "textloom"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunTextloom runs the textloom CLI command against the test server.
func (e *E2ETestEnv) RunTextloom(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "textloom"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("TEXTLOOM_API_KEY=%s", e.APIKey),
		fmt.Sprintf("TEXTLOOM_API_URL=%s", e.ServerURL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response.
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request.
func (e *E2ETestEnv) Get(path, apiKey string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, apiKey)
}

// Post performs a POST request.
func (e *E2ETestEnv) Post(path string, body interface{}, apiKey string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, apiKey)
}

// PostFile performs a multipart upload of content under the given filename.
func (e *E2ETestEnv) PostFile(path, filename string, content []byte, apiKey string) (*APIResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", e.ServerURL+path, &buf)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return parseAPIResponse(resp)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, apiKey string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return parseAPIResponse(resp)
}

func parseAPIResponse(resp *http.Response) (*APIResponse, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// startServer wires the full stack with a local embedder and stub converter.
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, workDir string, port int) (string, func()) {
	chunkRepo := repository.NewChunkRepository(pool, e2eDimensions)
	docRepo := repository.NewDocumentRepository(pool)

	embedder := &hashEmbedder{dimensions: e2eDimensions}

	ingestSvc, err := service.NewIngestService(
		&passthroughConverter{},
		embedder,
		chunkRepo,
		docRepo,
		service.NewChunkWriter(filepath.Join(workDir, "output")),
		service.IngestConfig{
			Chunk: service.ChunkConfig{MaxChars: 200, Overlap: 40},
		},
	)
	if err != nil {
		t.Fatalf("failed to create ingest service: %v", err)
	}

	querySvc, err := service.NewQueryService(chunkRepo, embedder, &echoAnswerClient{}, 3, "")
	if err != nil {
		t.Fatalf("failed to create query service: %v", err)
	}

	cfg := server.RouterConfig{
		APIKey:          e2eAPIKey,
		DocumentHandler: handlers.NewDocumentHandler(ingestSvc, s3Client, filepath.Join(workDir, "data")),
		QueryHandler:    handlers.NewQueryHandler(querySvc),
	}

	router := server.NewRouter(cfg)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// passthroughConverter treats the uploaded bytes as markdown. E2E fixtures
// carry page markers and headers directly, so the rest of the pipeline runs
// unmodified without a PDF parser in the loop.
type passthroughConverter struct{}

func (c *passthroughConverter) Convert(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// hashEmbedder produces deterministic unit vectors. Each word contributes a
// vector seeded from its hash, so texts sharing words land near each other
// under cosine similarity.
type hashEmbedder struct {
	dimensions int
}

func (h *hashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = h.embed(text)
	}
	return vectors, nil
}

func (h *hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return h.embed(text), nil
}

func (h *hashEmbedder) embed(text string) []float32 {
	vec := make([]float64, h.dimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		hash := fnv.New64a()
		hash.Write([]byte(word))
		rng := rand.New(rand.NewSource(int64(hash.Sum64())))
		for i := range vec {
			vec[i] += rng.NormFloat64()
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}

	out := make([]float32, h.dimensions)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

// echoAnswerClient returns the rendered prompt so tests can assert that
// retrieved context reached the language model.
type echoAnswerClient struct{}

func (c *echoAnswerClient) Answer(ctx context.Context, prompt string) (string, error) {
	return prompt, nil
}
