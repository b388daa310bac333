package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// maxBatchQueries bounds one batch_search call.
const maxBatchQueries = 64

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query       string   `json:"query" jsonschema:"the natural language query"`
	TopK        int      `json:"top_k,omitempty" jsonschema:"number of nearest chunks to consider (default 5)"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"restrict the search to these documents"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single retrieved chunk.
type SearchResultOutput struct {
	Rank       int     `json:"rank"`
	Similarity float64 `json:"similarity"`
	Text       string  `json:"text"`
	DocumentID string  `json:"document_id"`
	FileName   string  `json:"file_name,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
}

// BatchSearchInput is the input schema for the batch_search tool.
type BatchSearchInput struct {
	Queries     []string `json:"queries" jsonschema:"the queries to run, answered in order"`
	TopK        int      `json:"top_k,omitempty" jsonschema:"number of nearest chunks to consider per query (default 5)"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"restrict every query to these documents"`
}

// BatchSearchOutput holds one SearchOutput per input query.
type BatchSearchOutput struct {
	Results []SearchOutput `json:"results"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Retrieve the knowledge base passages most relevant to a query",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "batch_search",
		Description: "Run several retrieval queries at once; results are returned in query order",
	}, s.handleBatchSearch)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	if input.TopK < 0 {
		return nil, SearchOutput{}, fmt.Errorf("%w: top_k must not be negative", domain.ErrInvalidInput)
	}

	results, err := s.ports.Retrieval.Search(ctx, input.Query, domain.SearchOptions{
		TopK:        input.TopK,
		DocumentIDs: input.DocumentIDs,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, toSearchOutput(results), nil
}

func (s *Server) handleBatchSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input BatchSearchInput,
) (*mcp.CallToolResult, BatchSearchOutput, error) {
	switch {
	case len(input.Queries) == 0:
		return nil, BatchSearchOutput{}, fmt.Errorf("%w: queries must not be empty", domain.ErrInvalidInput)
	case len(input.Queries) > maxBatchQueries:
		return nil, BatchSearchOutput{}, fmt.Errorf("%w: at most %d queries per batch", domain.ErrInvalidInput, maxBatchQueries)
	case input.TopK < 0:
		return nil, BatchSearchOutput{}, fmt.Errorf("%w: top_k must not be negative", domain.ErrInvalidInput)
	}

	all, err := s.ports.Retrieval.BatchSearch(ctx, input.Queries, domain.SearchOptions{
		TopK:        input.TopK,
		DocumentIDs: input.DocumentIDs,
	})
	if err != nil {
		return nil, BatchSearchOutput{}, err
	}

	output := BatchSearchOutput{Results: make([]SearchOutput, len(all))}
	for i, results := range all {
		output.Results[i] = toSearchOutput(results)
	}
	return nil, output, nil
}

func toSearchOutput(results []domain.SearchResult) SearchOutput {
	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		output.Results[i] = SearchResultOutput{
			Rank:       results[i].Rank,
			Similarity: results[i].Similarity,
			Text:       results[i].Text,
			DocumentID: results[i].DocumentID,
			FileName:   results[i].FileName,
			ChunkIndex: results[i].ChunkIndex,
		}
	}
	return output
}
