// Package indextest is a behavioural test suite shared by VectorIndex
// implementations.
package indextest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Factory returns a fresh, empty index.
type Factory func(t *testing.T) driven.VectorIndex

func entry(docID string, idx int, vec ...float32) domain.VectorEntry {
	text := docID + " chunk"
	return domain.VectorEntry{
		ID:     domain.VectorID(docID, idx, text),
		Vector: vec,
		Text:   text,
		Metadata: domain.VectorMetadata{
			DocumentID: docID,
			ChunkIndex: idx,
			ChunkSize:  len(text),
			UploadTime: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	}
}

// Run executes the suite against indexes produced by newIndex.
func Run(t *testing.T, newIndex Factory) {
	t.Run("query orders by distance", func(t *testing.T) {
		idx := newIndex(t)
		ctx := context.Background()

		require.NoError(t, idx.Upsert(ctx, []domain.VectorEntry{
			entry("a", 0, 1, 0),
			entry("a", 1, 0.8, 0.6),
			entry("b", 0, 0, 1),
		}))

		got, err := idx.Query(ctx, []float32{1, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, "a", got[0].Metadata.DocumentID)
		assert.Equal(t, 0, got[0].Metadata.ChunkIndex)
		assert.InDelta(t, 0, got[0].Distance, 1e-6)
		assert.InDelta(t, 0.2, got[1].Distance, 1e-6)
		assert.Equal(t, "a chunk", got[0].Text)
		assert.LessOrEqual(t, got[0].Distance, got[1].Distance)
	})

	t.Run("query applies document filter", func(t *testing.T) {
		idx := newIndex(t)
		ctx := context.Background()

		require.NoError(t, idx.Upsert(ctx, []domain.VectorEntry{
			entry("a", 0, 1, 0),
			entry("b", 0, 1, 0),
			entry("c", 0, 1, 0),
		}))

		got, err := idx.Query(ctx, []float32{1, 0}, 10, &domain.VectorFilter{DocumentIDs: []string{"b", "c"}})
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, m := range got {
			assert.Contains(t, []string{"b", "c"}, m.Metadata.DocumentID)
		}

		got, err = idx.Query(ctx, []float32{1, 0}, 10, &domain.VectorFilter{})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("upsert is idempotent by id", func(t *testing.T) {
		idx := newIndex(t)
		ctx := context.Background()

		e := entry("a", 0, 1, 0)
		require.NoError(t, idx.Upsert(ctx, []domain.VectorEntry{e}))
		e.Vector = []float32{0, 1}
		require.NoError(t, idx.Upsert(ctx, []domain.VectorEntry{e}))

		n, err := idx.CountByFilter(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := idx.Query(ctx, []float32{0, 1}, 1, nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDelta(t, 0, got[0].Distance, 1e-6)
	})

	t.Run("delete by filter", func(t *testing.T) {
		idx := newIndex(t)
		ctx := context.Background()

		require.NoError(t, idx.Upsert(ctx, []domain.VectorEntry{
			entry("a", 0, 1, 0),
			entry("a", 1, 1, 1),
			entry("b", 0, 0, 1),
		}))

		removed, err := idx.DeleteByFilter(ctx, domain.ForDocument("a"))
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		n, err := idx.CountByFilter(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		filter := domain.ForDocument("a")
		n, err = idx.CountByFilter(ctx, &filter)
		require.NoError(t, err)
		assert.Zero(t, n)

		removed, err = idx.DeleteByFilter(ctx, domain.ForDocument("missing"))
		require.NoError(t, err)
		assert.Zero(t, removed)
	})

	t.Run("document ids", func(t *testing.T) {
		idx := newIndex(t)
		ctx := context.Background()

		ids, err := idx.DocumentIDs(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)

		require.NoError(t, idx.Upsert(ctx, []domain.VectorEntry{
			entry("b", 0, 1, 0),
			entry("a", 0, 1, 0),
			entry("b", 1, 1, 0),
		}))

		ids, err = idx.DocumentIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids)
	})

	t.Run("metadata round trips", func(t *testing.T) {
		idx := newIndex(t)
		ctx := context.Background()

		e := entry("doc", 3, 0.5, 0.5)
		require.NoError(t, idx.Upsert(ctx, []domain.VectorEntry{e}))

		got, err := idx.Query(ctx, []float32{0.5, 0.5}, 1, nil)
		require.NoError(t, err)
		require.Len(t, got, 1)

		assert.Equal(t, e.ID, got[0].ID)
		assert.Equal(t, e.Metadata.DocumentID, got[0].Metadata.DocumentID)
		assert.Equal(t, e.Metadata.ChunkIndex, got[0].Metadata.ChunkIndex)
		assert.Equal(t, e.Metadata.ChunkSize, got[0].Metadata.ChunkSize)
		assert.True(t, e.Metadata.UploadTime.Equal(got[0].Metadata.UploadTime))
	})

	t.Run("non-positive k returns nothing", func(t *testing.T) {
		idx := newIndex(t)
		ctx := context.Background()

		require.NoError(t, idx.Upsert(ctx, []domain.VectorEntry{entry("a", 0, 1, 0)}))

		got, err := idx.Query(ctx, []float32{1, 0}, 0, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("rejects entries without vectors", func(t *testing.T) {
		idx := newIndex(t)

		err := idx.Upsert(context.Background(), []domain.VectorEntry{{ID: "x"}})
		assert.ErrorIs(t, err, domain.ErrIndexWriteFailure)
	})
}
