package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// retrievalLogStore implements driven.RetrievalLogStore.
type retrievalLogStore struct {
	store *Store
}

var _ driven.RetrievalLogStore = (*retrievalLogStore)(nil)

// RecordRetrieval appends a log entry and sets its ID.
func (s *retrievalLogStore) RecordRetrieval(ctx context.Context, entry *domain.RetrievalLog) error {
	if entry == nil {
		return domain.ErrInvalidInput
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO retrieval_logs (query, result_count, latency_ms, created_at)
		VALUES (?, ?, ?, ?)
	`, entry.Query, entry.ResultCount, float64(entry.Latency)/float64(time.Millisecond), formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("recording retrieval: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// RetrievalStats aggregates all recorded entries.
func (s *retrievalLogStore) RetrievalStats(ctx context.Context) (domain.RetrievalStats, error) {
	var stats domain.RetrievalStats
	err := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(latency_ms), 0) FROM retrieval_logs
	`).Scan(&stats.TotalQueries, &stats.AvgResponseMS)
	if err != nil {
		return domain.RetrievalStats{}, fmt.Errorf("aggregating retrieval logs: %w", err)
	}
	return stats, nil
}
