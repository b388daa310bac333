package driving

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// RetrievalService answers similarity queries against the knowledge base.
type RetrievalService interface {
	// Search embeds the query, queries the vector index, drops results below
	// the similarity threshold and ranks the rest from 1.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// BatchSearch runs Search for each query and returns one result list
	// per query in input order.
	BatchSearch(ctx context.Context, queries []string, opts domain.SearchOptions) ([][]domain.SearchResult, error)
}
