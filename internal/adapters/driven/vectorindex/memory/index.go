// Package memory provides an in-memory VectorIndex for tests and ephemeral
// runs. Queries are exact brute-force cosine scans.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/kbase/internal/adapters/driven/vectorindex/cosine"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is an in-memory vector index.
type Index struct {
	mu      sync.RWMutex
	entries map[string]domain.VectorEntry
}

// New creates an empty in-memory index.
func New() *Index {
	return &Index{entries: make(map[string]domain.VectorEntry)}
}

// Upsert inserts or replaces entries by ID.
func (i *Index) Upsert(ctx context.Context, entries []domain.VectorEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, e := range entries {
		if e.ID == "" || len(e.Vector) == 0 {
			return fmt.Errorf("%w: entry %q has no id or vector", domain.ErrIndexWriteFailure, e.ID)
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	for _, e := range entries {
		e.Vector = append([]float32(nil), e.Vector...)
		i.entries[e.ID] = e
	}
	return nil
}

// Query returns up to k entries by ascending cosine distance.
func (i *Index) Query(ctx context.Context, vector []float32, k int, filter *domain.VectorFilter) ([]domain.VectorMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []domain.VectorMatch{}, nil
	}

	i.mu.RLock()
	matches := make([]domain.VectorMatch, 0, len(i.entries))
	for _, e := range i.entries {
		if !filter.Matches(e.Metadata) {
			continue
		}
		matches = append(matches, domain.VectorMatch{
			ID:       e.ID,
			Text:     e.Text,
			Metadata: e.Metadata,
			Distance: cosine.Distance(vector, e.Vector),
		})
	}
	i.mu.RUnlock()

	return cosine.Nearest(matches, k), nil
}

// DeleteByFilter removes all matching entries.
func (i *Index) DeleteByFilter(ctx context.Context, filter domain.VectorFilter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	removed := 0
	for id, e := range i.entries {
		if filter.Matches(e.Metadata) {
			delete(i.entries, id)
			removed++
		}
	}
	return removed, nil
}

// CountByFilter counts matching entries.
func (i *Index) CountByFilter(ctx context.Context, filter *domain.VectorFilter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if filter == nil {
		return len(i.entries), nil
	}
	n := 0
	for _, e := range i.entries {
		if filter.Matches(e.Metadata) {
			n++
		}
	}
	return n, nil
}

// DocumentIDs lists distinct document ids, sorted.
func (i *Index) DocumentIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i.mu.RLock()
	seen := make(map[string]struct{})
	for _, e := range i.entries {
		seen[e.Metadata.DocumentID] = struct{}{}
	}
	i.mu.RUnlock()

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close releases resources.
func (i *Index) Close() error {
	return nil
}
