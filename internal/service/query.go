package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"text/template"

	"github.com/textloom/textloom/internal/domain"
	"github.com/textloom/textloom/internal/telemetry"
)

// SearchStore is the similarity-search surface of the vector store.
type SearchStore interface {
	Search(ctx context.Context, queryVec []float32, topK int) ([]domain.ScoredChunk, error)
}

// AnswerClient is the language-model answering capability.
type AnswerClient interface {
	Answer(ctx context.Context, prompt string) (string, error)
}

// unknownPlaceholder stands in for absent header or page labels in citations.
const unknownPlaceholder = "Unknown"

// DefaultPromptTemplate renders query and retrieved context into the answer
// prompt when no template file is configured.
const DefaultPromptTemplate = `You are a careful assistant answering questions about uploaded documents.
Use only the context below. Every context entry starts with a citation marker
[n] followed by the source file, section header, and page. Cite the markers
you rely on. If the context does not contain the answer, say so.

Context:
{{.Context}}

Question: {{.Query}}

Answer:`

// QueryService retrieves relevant chunks for a query and assembles them into
// a grounded context, optionally composing an LLM answer on top.
type QueryService struct {
	store    SearchStore
	embedder Embedder
	llm      AnswerClient
	topK     int
	prompt   *template.Template
}

// NewQueryService builds a QueryService. promptText may be empty, which
// selects the default template; llm may be nil if answers are not needed.
func NewQueryService(store SearchStore, embedder Embedder, llm AnswerClient, topK int, promptText string) (*QueryService, error) {
	if topK < 1 {
		return nil, domain.ErrInvalidTopK
	}
	if promptText == "" {
		promptText = DefaultPromptTemplate
	}
	tmpl, err := template.New("prompt").Parse(promptText)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration, "invalid prompt template", err)
	}
	return &QueryService{
		store:    store,
		embedder: embedder,
		llm:      llm,
		topK:     topK,
		prompt:   tmpl,
	}, nil
}

// Retrieve runs a top-K similarity search for a query vector. The store
// already ranks by descending score with insertion order as the tie-break;
// transient store failures are retried a bounded number of times.
func (s *QueryService) Retrieve(ctx context.Context, queryVec []float32, topK int) ([]domain.ScoredChunk, error) {
	if topK < 1 {
		return nil, domain.ErrInvalidTopK
	}

	var results []domain.ScoredChunk
	err := withRetry(ctx, func() error {
		var searchErr error
		results, searchErr = s.store.Search(ctx, queryVec, topK)
		return searchErr
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// SearchOutput carries the assembled context together with the raw ranked
// results behind it.
type SearchOutput struct {
	Context string
	Results []domain.ScoredChunk
}

// Search embeds a free-text query, retrieves the most relevant chunks, and
// assembles the citation-tagged context. Zero results yield an empty context,
// not an error.
func (s *QueryService) Search(ctx context.Context, query string, topK int) (*SearchOutput, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if topK < 1 {
		topK = s.topK
	}

	ctx, span := telemetry.StartSpan(ctx, "QueryService.Search", telemetry.SpanAttributes{
		Operation: "search",
	})
	defer span.End()

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	results, err := s.Retrieve(ctx, queryVec, topK)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	out := &SearchOutput{
		Context: BuildContext(results),
		Results: results,
	}
	log.Printf("retrieved %d chunks for query", len(results))
	return out, nil
}

// Answer retrieves context for the query and generates a grounded answer.
func (s *QueryService) Answer(ctx context.Context, query string) (string, error) {
	if s.llm == nil {
		return "", domain.NewDomainError(domain.ErrCodeConfiguration, "answering capability not configured")
	}

	out, err := s.Search(ctx, query, 0)
	if err != nil {
		return "", err
	}

	var prompt strings.Builder
	err = s.prompt.Execute(&prompt, struct {
		Query   string
		Context string
	}{Query: query, Context: out.Context})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}

	return s.llm.Answer(ctx, prompt.String())
}

// BuildContext formats ranked results into the citation-tagged context block:
// one "[rank] source | header | page:text" line per result, double-newline
// separated, ready to embed into an LLM prompt.
func BuildContext(results []domain.ScoredChunk) string {
	lines := make([]string, 0, len(results))
	for i, r := range results {
		header := r.HeaderTitle
		if header == "" {
			header = unknownPlaceholder
		}
		page := r.PageLabel
		if page == "" {
			page = unknownPlaceholder
		}
		lines = append(lines, fmt.Sprintf("[%d] %s | %s | %s:%s",
			i+1, r.Source, header, page, strings.TrimSpace(r.Text)))
	}
	return strings.Join(lines, "\n\n")
}
