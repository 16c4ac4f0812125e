package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/textloom/textloom/internal/domain"
)

const (
	// DefaultEmbeddingModel supports requesting reduced output dimensions,
	// which lets the deployment pin the index dimension.
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions is the dimension the vector index declares.
	DefaultEmbeddingDimensions = 768
	// DefaultChatModel answers queries over retrieved context.
	DefaultChatModel = openai.GPT4oMini
)

var (
	// ErrEmptyInput is returned when there is nothing to embed
	ErrEmptyInput = errors.New("input texts cannot be empty")
	// ErrNoAPIKey is returned when the OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// EmbeddingAPI defines the interface for batch embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatAPI defines the interface for answer generation
type ChatAPI interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client wraps the OpenAI API for embeddings and answering
type Client struct {
	api        EmbeddingAPI
	chat       ChatAPI
	dimensions int
}

type apiAdapter struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	chatModel  string
	dimensions int
}

func newAPIAdapter(apiKey string, cfg Config) *apiAdapter {
	model := openai.EmbeddingModel(cfg.EmbeddingModel)
	if model == "" {
		model = DefaultEmbeddingModel
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	return &apiAdapter{
		client:     openai.NewClient(apiKey),
		model:      model,
		chatModel:  chatModel,
		dimensions: cfg.EmbeddingDimensions,
	}
}

// CreateEmbeddings calls the OpenAI API to embed a batch of texts
func (a *apiAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      a.model,
		Dimensions: a.dimensions,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Complete calls the OpenAI chat API with a single user prompt
func (a *apiAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.chatModel,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	APIKey              string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChatModel           string
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	if cfg.EmbeddingDimensions <= 0 {
		cfg.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	adapter := newAPIAdapter(cfg.APIKey, cfg)
	return &Client{
		api:        adapter,
		chat:       adapter,
		dimensions: cfg.EmbeddingDimensions,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// Dimensions returns the embedding dimension this client enforces.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// EmbedDocuments embeds a batch of chunk texts. Every vector must match the
// configured dimension; a mismatch is fatal for the whole batch.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	vectors, err := c.api.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	for _, v := range vectors {
		if len(v) != c.dimensions {
			return nil, domain.DimensionMismatch(c.dimensions, len(v))
		}
	}

	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Answer generates a response for a fully rendered prompt.
func (c *Client) Answer(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", ErrEmptyInput
	}

	answer, err := c.chat.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	return answer, nil
}
