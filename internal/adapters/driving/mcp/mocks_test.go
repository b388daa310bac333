package mcp

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

var (
	_ driving.RetrievalService = (*mockRetrievalService)(nil)
	_ driving.DocumentService  = (*mockDocumentService)(nil)
)

// mockRetrievalService is a test double for driving.RetrievalService.
type mockRetrievalService struct {
	results  []domain.SearchResult
	err      error
	lastOpts domain.SearchOptions
	queries  []string
}

func (m *mockRetrievalService) Search(
	_ context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.queries = append(m.queries, query)
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *mockRetrievalService) BatchSearch(
	ctx context.Context, queries []string, opts domain.SearchOptions,
) ([][]domain.SearchResult, error) {
	out := make([][]domain.SearchResult, len(queries))
	for i, q := range queries {
		if q == "" {
			continue
		}
		results, err := m.Search(ctx, q, opts)
		if err != nil {
			return nil, err
		}
		out[i] = results
	}
	return out, nil
}

// mockDocumentService is a test double for driving.DocumentService.
type mockDocumentService struct {
	docs    []domain.Document
	details map[string]*driving.DocumentDetails
	err     error
}

func (m *mockDocumentService) List(context.Context, domain.ListOptions) ([]domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.docs, nil
}

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	for i := range m.docs {
		if m.docs[i].ID == id {
			return &m.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentService) GetDetails(_ context.Context, id string) (*driving.DocumentDetails, error) {
	if m.err != nil {
		return nil, m.err
	}
	d, ok := m.details[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (m *mockDocumentService) Stats(context.Context) (*domain.KnowledgeBaseStats, error) {
	return &domain.KnowledgeBaseStats{}, nil
}
