package driving

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// DocumentService exposes read-only views of the knowledge base.
type DocumentService interface {
	// List returns documents newest first.
	List(ctx context.Context, opts domain.ListOptions) ([]domain.Document, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// GetDetails returns the document together with its chunks.
	GetDetails(ctx context.Context, documentID string) (*DocumentDetails, error)

	// Stats summarises documents, vectors and retrieval activity.
	Stats(ctx context.Context) (*domain.KnowledgeBaseStats, error)
}

// DocumentDetails is a document plus its chunk set.
type DocumentDetails struct {
	Document domain.Document `json:"document"`
	Chunks   []domain.Chunk  `json:"chunks"`
}
