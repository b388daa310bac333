package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService provides read-only views over documents, chunks and
// retrieval activity.
type DocumentService struct {
	docStore    driven.DocumentStore
	logStore    driven.RetrievalLogStore
	vectorIndex driven.VectorIndex
	embedder    driven.EmbeddingService
}

// NewDocumentService creates a new document service.
// logStore and embedder are optional; their stats are left zero without them.
func NewDocumentService(
	docStore driven.DocumentStore,
	logStore driven.RetrievalLogStore,
	vectorIndex driven.VectorIndex,
	embedder driven.EmbeddingService,
) *DocumentService {
	return &DocumentService{
		docStore:    docStore,
		logStore:    logStore,
		vectorIndex: vectorIndex,
		embedder:    embedder,
	}
}

// List returns documents newest first.
func (s *DocumentService) List(ctx context.Context, opts domain.ListOptions) ([]domain.Document, error) {
	if opts.Status != "" && !opts.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, opts.Status)
	}
	if opts.Limit <= 0 {
		opts.Limit = domain.DefaultListLimit
	}
	return s.docStore.ListDocuments(ctx, opts)
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, documentID)
}

// GetDetails returns the document together with its chunks in index order.
func (s *DocumentService) GetDetails(ctx context.Context, documentID string) (*driving.DocumentDetails, error) {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Index < chunks[j].Index
	})

	return &driving.DocumentDetails{
		Document: *doc,
		Chunks:   chunks,
	}, nil
}

// Stats summarises the knowledge base.
func (s *DocumentService) Stats(ctx context.Context) (*domain.KnowledgeBaseStats, error) {
	byStatus, err := s.docStore.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	stats := &domain.KnowledgeBaseStats{ByStatus: byStatus}
	for _, n := range byStatus {
		stats.TotalDocuments += n
	}

	stats.TotalVectors, err = s.vectorIndex.CountByFilter(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("count vectors: %w", err)
	}

	if s.logStore != nil {
		rs, err := s.logStore.RetrievalStats(ctx)
		if err != nil {
			return nil, fmt.Errorf("retrieval stats: %w", err)
		}
		stats.TotalQueries = rs.TotalQueries
		stats.AvgResponseMS = rs.AvgResponseMS
	}

	if s.embedder != nil {
		stats.EmbeddingModel = s.embedder.ModelName()
	}
	return stats, nil
}
