package driven

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// VectorIndex stores embedded chunks and answers metadata-filtered
// nearest-neighbour queries under cosine distance.
type VectorIndex interface {
	// Upsert inserts or replaces entries by ID.
	Upsert(ctx context.Context, entries []domain.VectorEntry) error

	// Query returns up to k entries ordered by ascending distance.
	// A nil filter searches the whole index.
	Query(ctx context.Context, vector []float32, k int, filter *domain.VectorFilter) ([]domain.VectorMatch, error)

	// DeleteByFilter removes every entry matching the filter and returns
	// how many were removed. Either all matching entries are removed or
	// an error is returned.
	DeleteByFilter(ctx context.Context, filter domain.VectorFilter) (int, error)

	// CountByFilter counts entries. A nil filter counts the whole index.
	CountByFilter(ctx context.Context, filter *domain.VectorFilter) (int, error)

	// DocumentIDs lists the distinct document ids present in the index.
	DocumentIDs(ctx context.Context) ([]string, error)

	// Close releases resources.
	Close() error
}
