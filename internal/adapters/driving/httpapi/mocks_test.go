package httpapi

import (
	"context"
	"sync"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

var (
	_ driving.IngestionOrchestrator = (*mockIngestion)(nil)
	_ driving.RetrievalService      = (*mockRetrieval)(nil)
	_ driving.DocumentService       = (*mockDocuments)(nil)
)

type mockIngestion struct {
	mu          sync.Mutex
	uploads     []domain.UploadRequest
	uploadErr   error
	statuses    map[string]*driving.DocumentStatus
	deleted     []string
	deleteErr   error
	regenerated []string
}

func newMockIngestion() *mockIngestion {
	return &mockIngestion{statuses: make(map[string]*driving.DocumentStatus)}
}

func (m *mockIngestion) Upload(_ context.Context, req domain.UploadRequest) (*domain.UploadReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	m.uploads = append(m.uploads, req)
	return &domain.UploadReceipt{DocumentID: "doc-1", Status: domain.ReceiptStatusProcessing}, nil
}

func (m *mockIngestion) Status(_ context.Context, id string) (*driving.DocumentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.statuses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return st, nil
}

func (m *mockIngestion) Regenerate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[id]; !ok {
		return domain.ErrNotFound
	}
	m.regenerated = append(m.regenerated, id)
	return nil
}

func (m *mockIngestion) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.statuses[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.statuses, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockIngestion) Wait(ctx context.Context, id string) (*driving.DocumentStatus, error) {
	return m.Status(ctx, id)
}

type mockRetrieval struct {
	results  []domain.SearchResult
	err      error
	lastOpts domain.SearchOptions
	queries  []string
}

func (m *mockRetrieval) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.lastOpts = opts
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *mockRetrieval) BatchSearch(
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

type mockDocuments struct {
	docs     []domain.Document
	details  map[string]*driving.DocumentDetails
	stats    *domain.KnowledgeBaseStats
	lastOpts domain.ListOptions
}

func (m *mockDocuments) List(_ context.Context, opts domain.ListOptions) ([]domain.Document, error) {
	m.lastOpts = opts
	if opts.Status != "" && !opts.Status.IsValid() {
		return nil, domain.ErrInvalidInput
	}
	return m.docs, nil
}

func (m *mockDocuments) Get(_ context.Context, id string) (*domain.Document, error) {
	for i := range m.docs {
		if m.docs[i].ID == id {
			return &m.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocuments) GetDetails(_ context.Context, id string) (*driving.DocumentDetails, error) {
	d, ok := m.details[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (m *mockDocuments) Stats(context.Context) (*domain.KnowledgeBaseStats, error) {
	if m.stats == nil {
		return &domain.KnowledgeBaseStats{}, nil
	}
	return m.stats, nil
}
