package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/textloom/textloom/internal/api"
	"github.com/textloom/textloom/internal/service"
)

type QueryService interface {
	Search(ctx context.Context, query string, topK int) (*service.SearchOutput, error)
	Answer(ctx context.Context, query string) (string, error)
}

type QueryHandler struct {
	svc QueryService
}

func NewQueryHandler(svc QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type SearchResultResponse struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	HeaderTitle string  `json:"header_title,omitempty"`
	PageLabel   string  `json:"page_label,omitempty"`
	Source      string  `json:"source"`
	Score       float64 `json:"score"`
}

type SearchResponse struct {
	Context string                  `json:"context"`
	Results []*SearchResultResponse `json:"results"`
}

type AnswerResponse struct {
	Answer string `json:"answer"`
}

// Search retrieves the most relevant chunks for a query and returns them with
// the assembled citation context.
func (h *QueryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.svc.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	results := make([]*SearchResultResponse, 0, len(out.Results))
	for _, res := range out.Results {
		results = append(results, &SearchResultResponse{
			ID:          res.ID,
			Text:        res.Text,
			HeaderTitle: res.HeaderTitle,
			PageLabel:   res.PageLabel,
			Source:      res.Source,
			Score:       res.Score,
		})
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Context: out.Context,
		Results: results,
	})
}

// Answer retrieves context for a query and generates a grounded answer.
func (h *QueryHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answer, err := h.svc.Answer(r.Context(), req.Query)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, AnswerResponse{Answer: answer})
}
