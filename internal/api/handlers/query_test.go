package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/textloom/textloom/internal/domain"
	"github.com/textloom/textloom/internal/service"
)

type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) Search(ctx context.Context, query string, topK int) (*service.SearchOutput, error) {
	args := m.Called(ctx, query, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SearchOutput), args.Error(1)
}

func (m *MockQueryService) Answer(ctx context.Context, query string) (string, error) {
	args := m.Called(ctx, query)
	return args.String(0), args.Error(1)
}

func postJSON(t *testing.T, body interface{}) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestQueryHandler_Search_Success(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	out := &service.SearchOutput{
		Context: "[1] doc.pdf | Intro | Page 1:relevant text",
		Results: []domain.ScoredChunk{
			{
				Chunk: domain.NewChunk("relevant text", "Intro", "Page 1", "doc.pdf"),
				Score: 0.87,
				Seq:   4,
			},
		},
	}
	mockSvc.On("Search", mock.Anything, "what is this about?", 5).Return(out, nil)

	w := httptest.NewRecorder()
	handler.Search(w, postJSON(t, SearchRequest{Query: "what is this about?", TopK: 5}))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data SearchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, out.Context, resp.Data.Context)
	require.Len(t, resp.Data.Results, 1)
	assert.Equal(t, "relevant text", resp.Data.Results[0].Text)
	assert.Equal(t, "Intro", resp.Data.Results[0].HeaderTitle)
	assert.Equal(t, "Page 1", resp.Data.Results[0].PageLabel)
	assert.Equal(t, "doc.pdf", resp.Data.Results[0].Source)
	assert.InDelta(t, 0.87, resp.Data.Results[0].Score, 1e-9)
	mockSvc.AssertExpectations(t)
}

func TestQueryHandler_Search_EmptyQuery(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	mockSvc.On("Search", mock.Anything, "", 0).Return(nil, domain.ErrEmptyQuery)

	w := httptest.NewRecorder()
	handler.Search(w, postJSON(t, SearchRequest{}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryHandler_Search_InvalidBody(t *testing.T) {
	handler := NewQueryHandler(new(MockQueryService))

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestQueryHandler_Search_StoreUnavailable(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	mockSvc.On("Search", mock.Anything, "q", 0).
		Return(nil, domain.StoreUnavailable("search", assert.AnError))

	w := httptest.NewRecorder()
	handler.Search(w, postJSON(t, SearchRequest{Query: "q"}))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestQueryHandler_Answer_Success(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	mockSvc.On("Answer", mock.Anything, "what changed?").Return("the config format changed", nil)

	w := httptest.NewRecorder()
	handler.Answer(w, postJSON(t, SearchRequest{Query: "what changed?"}))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data AnswerResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "the config format changed", resp.Data.Answer)
	mockSvc.AssertExpectations(t)
}

func TestQueryHandler_Answer_NotConfigured(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	mockSvc.On("Answer", mock.Anything, "q").
		Return("", domain.NewDomainError(domain.ErrCodeConfiguration, "answering capability not configured"))

	w := httptest.NewRecorder()
	handler.Answer(w, postJSON(t, SearchRequest{Query: "q"}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
