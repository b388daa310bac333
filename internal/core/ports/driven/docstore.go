package driven

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// DocumentStore persists document status records and chunks.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns documents newest first.
	ListDocuments(ctx context.Context, opts domain.ListOptions) ([]domain.Document, error)

	// CountByStatus returns the number of documents in each status.
	CountByStatus(ctx context.Context) (map[domain.Status]int, error)

	// SaveChunks replaces the whole chunk set of a document.
	SaveChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// GetChunks retrieves all chunks for a document ordered by index.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// DeleteDocument removes a document and its chunks.
	// Returns domain.ErrNotFound if it does not exist.
	DeleteDocument(ctx context.Context, id string) error
}

// RetrievalLogStore records search calls.
type RetrievalLogStore interface {
	// RecordRetrieval appends a log entry.
	RecordRetrieval(ctx context.Context, entry *domain.RetrievalLog) error

	// RetrievalStats aggregates all recorded entries.
	RetrievalStats(ctx context.Context) (domain.RetrievalStats, error)
}
