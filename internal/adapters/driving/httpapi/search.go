package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// maxBatchQueries bounds one batch search request.
const maxBatchQueries = 64

type searchRequest struct {
	Query       string   `json:"query"`
	TopK        int      `json:"top_k"`
	DocumentIDs []string `json:"document_ids"`
}

type batchSearchRequest struct {
	Queries     []string `json:"queries"`
	TopK        int      `json:"top_k"`
	DocumentIDs []string `json:"document_ids"`
}

type searchResponse struct {
	Query   string                `json:"query"`
	Results []domain.SearchResult `json:"results"`
}

type batchSearchResponse struct {
	Results [][]domain.SearchResult `json:"results"`
}

func (s *Server) search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, domain.KindInvalidInput, fmt.Errorf("decoding request: %w", err))
		return
	}
	if req.TopK < 0 {
		RespondError(c, http.StatusBadRequest, domain.KindInvalidInput,
			fmt.Errorf("%w: top_k must not be negative", domain.ErrInvalidInput))
		return
	}

	results, err := s.ports.Retrieval.Search(c.Request.Context(), req.Query, domain.SearchOptions{
		TopK:        req.TopK,
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	RespondOK(c, searchResponse{Query: req.Query, Results: results})
}

func (s *Server) batchSearch(c *gin.Context) {
	var req batchSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, domain.KindInvalidInput, fmt.Errorf("decoding request: %w", err))
		return
	}
	switch {
	case len(req.Queries) == 0:
		RespondError(c, http.StatusBadRequest, domain.KindInvalidInput,
			fmt.Errorf("%w: queries must not be empty", domain.ErrInvalidInput))
		return
	case len(req.Queries) > maxBatchQueries:
		RespondError(c, http.StatusBadRequest, domain.KindInvalidInput,
			fmt.Errorf("%w: at most %d queries per batch", domain.ErrInvalidInput, maxBatchQueries))
		return
	case req.TopK < 0:
		RespondError(c, http.StatusBadRequest, domain.KindInvalidInput,
			fmt.Errorf("%w: top_k must not be negative", domain.ErrInvalidInput))
		return
	}

	out, err := s.ports.Retrieval.BatchSearch(c.Request.Context(), req.Queries, domain.SearchOptions{
		TopK:        req.TopK,
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	for i := range out {
		if out[i] == nil {
			out[i] = []domain.SearchResult{}
		}
	}
	RespondOK(c, batchSearchResponse{Results: out})
}
