package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interfaces.
var (
	_ driven.DocumentStore     = (*DocumentStore)(nil)
	_ driven.RetrievalLogStore = (*DocumentStore)(nil)
)

// DocumentStore is an in-memory driven.DocumentStore that also keeps the
// retrieval log. Values are copied in and out so callers never share maps.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]domain.Chunk
	logs      []domain.RetrievalLog
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.Chunk),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = now
	}
	doc.UpdatedAt = now

	stored := *doc
	stored.Metadata = copyMetadata(doc.Metadata)
	s.documents[doc.ID] = stored
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc.Metadata = copyMetadata(doc.Metadata)
	return &doc, nil
}

// ListDocuments returns documents newest first.
func (s *DocumentStore) ListDocuments(_ context.Context, opts domain.ListOptions) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		if opts.Status != "" && doc.Status != opts.Status {
			continue
		}
		doc.Metadata = copyMetadata(doc.Metadata)
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].UploadedAt.After(docs[j].UploadedAt)
		}
		return docs[i].ID > docs[j].ID
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// CountByStatus returns the number of documents in each status.
func (s *DocumentStore) CountByStatus(_ context.Context) (map[domain.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.Status]int)
	for _, doc := range s.documents {
		counts[doc.Status]++
	}
	return counts, nil
}

// SaveChunks replaces the chunk set of a document.
func (s *DocumentStore) SaveChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(chunks) == 0 {
		delete(s.chunks, documentID)
		return nil
	}
	stored := append([]domain.Chunk(nil), chunks...)
	sort.Slice(stored, func(i, j int) bool { return stored[i].Index < stored[j].Index })
	s.chunks[documentID] = stored
	return nil
}

// GetChunks retrieves all chunks for a document ordered by index.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Chunk(nil), s.chunks[documentID]...), nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

// RecordRetrieval appends a log entry.
func (s *DocumentStore) RecordRetrieval(_ context.Context, entry *domain.RetrievalLog) error {
	if entry == nil {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.ID = int64(len(s.logs) + 1)
	s.logs = append(s.logs, *entry)
	return nil
}

// RetrievalStats aggregates all recorded entries.
func (s *DocumentStore) RetrievalStats(_ context.Context) (domain.RetrievalStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.RetrievalStats{TotalQueries: len(s.logs)}
	if len(s.logs) == 0 {
		return stats, nil
	}
	var total time.Duration
	for _, l := range s.logs {
		total += l.Latency
	}
	stats.AvgResponseMS = float64(total) / float64(time.Millisecond) / float64(len(s.logs))
	return stats, nil
}

// RetrievalLogs returns a copy of every recorded entry.
func (s *DocumentStore) RetrievalLogs() []domain.RetrievalLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.RetrievalLog(nil), s.logs...)
}

func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
