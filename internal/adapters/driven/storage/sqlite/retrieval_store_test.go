package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func TestRetrievalLogStore_Stats(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	logs := store.RetrievalLogStore()

	stats, err := logs.RetrievalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RetrievalStats{}, stats)

	first := &domain.RetrievalLog{Query: "安全管理", ResultCount: 2, Latency: 10 * time.Millisecond}
	require.NoError(t, logs.RecordRetrieval(ctx, first))
	require.NoError(t, logs.RecordRetrieval(ctx, &domain.RetrievalLog{Query: "q2", Latency: 30 * time.Millisecond}))

	assert.NotZero(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	stats, err = logs.RetrievalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalQueries)
	assert.InDelta(t, 20.0, stats.AvgResponseMS, 0.001)
}

func TestRetrievalLogStore_NilEntry(t *testing.T) {
	store := setupTestStore(t)

	err := store.RetrievalLogStore().RecordRetrieval(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
