package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
	"github.com/custodia-labs/kbase/internal/metrics"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

const (
	// batchSearchConcurrency bounds concurrent queries in BatchSearch.
	batchSearchConcurrency = 4

	// searchTimeout bounds each embedding and index call made by a search.
	searchTimeout = 30 * time.Second
)

// RetrievalService answers similarity queries.
type RetrievalService struct {
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	docs     driven.DocumentStore
	logs     driven.RetrievalLogStore
	cfg      domain.RetrievalSettings
}

// NewRetrievalService creates a retrieval service. docs and logs are
// optional: without docs results carry no file name, without logs calls
// are only written to the application log.
func NewRetrievalService(
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	docs driven.DocumentStore,
	logs driven.RetrievalLogStore,
	cfg domain.RetrievalSettings,
) *RetrievalService {
	if cfg.TopK <= 0 {
		cfg.TopK = domain.DefaultTopK
	}
	return &RetrievalService{
		embedder: embedder,
		index:    index,
		docs:     docs,
		logs:     logs,
		cfg:      cfg,
	}
}

// Threshold returns the configured similarity threshold.
func (s *RetrievalService) Threshold() float64 {
	return s.cfg.SimilarityThreshold
}

// Search embeds the query, queries the index and keeps results at or above
// the similarity threshold, ranked from 1 in similarity order.
func (s *RetrievalService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		s.record(ctx, query, 0, time.Since(start))
		return []domain.SearchResult{}, nil
	}

	results, err := s.search(ctx, query, opts)
	latency := time.Since(start)

	s.record(ctx, query, len(results), latency)
	metrics.SearchObserved(latency)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// BatchSearch runs each query independently and returns the result lists
// in input order. The first failing query fails the whole batch.
func (s *RetrievalService) BatchSearch(
	ctx context.Context, queries []string, opts domain.SearchOptions,
) ([][]domain.SearchResult, error) {
	out := make([][]domain.SearchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchSearchConcurrency)
	for i, q := range queries {
		g.Go(func() error {
			results, err := s.Search(gctx, q, opts)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			out[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RetrievalService) search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	tctx, cancel := context.WithTimeout(ctx, searchTimeout)
	vectors, err := s.embedder.EmbedBatch(tctx, []string{query})
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for 1 query", domain.ErrEmbeddingUnavailable, len(vectors))
	}

	var filter *domain.VectorFilter
	if len(opts.DocumentIDs) > 0 {
		filter = &domain.VectorFilter{DocumentIDs: uniqueStrings(opts.DocumentIDs)}
	}

	tctx, cancel = context.WithTimeout(ctx, searchTimeout)
	matches, err := s.index.Query(tctx, vectors[0], topK, filter)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(matches))
	for _, m := range matches {
		sim := m.Similarity()
		if sim < s.cfg.SimilarityThreshold {
			continue
		}
		results = append(results, domain.SearchResult{
			Text:       m.Text,
			DocumentID: m.Metadata.DocumentID,
			ChunkIndex: m.Metadata.ChunkIndex,
			VectorID:   m.ID,
			Similarity: sim,
			Rank:       len(results) + 1,
		})
	}
	logger.Debug("Kept %d of %d matches at threshold %.2f", len(results), len(matches), s.cfg.SimilarityThreshold)

	s.fillFileNames(ctx, results)
	return results, nil
}

// fillFileNames sets FileName from the document store. Lookups that fail
// leave the name empty.
func (s *RetrievalService) fillFileNames(ctx context.Context, results []domain.SearchResult) {
	if s.docs == nil || len(results) == 0 {
		return
	}
	names := make(map[string]string)
	for i := range results {
		id := results[i].DocumentID
		name, ok := names[id]
		if !ok {
			if doc, err := s.docs.GetDocument(ctx, id); err == nil {
				name = doc.FileName
			}
			names[id] = name
		}
		results[i].FileName = name
	}
}

func (s *RetrievalService) record(ctx context.Context, query string, count int, latency time.Duration) {
	logger.Info("Search %q returned %d result(s) in %s", query, count, latency.Round(time.Microsecond))
	if s.logs == nil {
		return
	}
	entry := &domain.RetrievalLog{
		Query:       query,
		ResultCount: count,
		Latency:     latency,
	}
	if err := s.logs.RecordRetrieval(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("Failed to record retrieval log: %v", err)
	}
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
