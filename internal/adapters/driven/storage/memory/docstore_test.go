package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func TestDocumentStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	doc := &domain.Document{
		ID:       "doc-1",
		FileName: "a.txt",
		Status:   domain.StatusUploaded,
		Metadata: map[string]any{"k": "v"},
	}
	require.NoError(t, store.SaveDocument(ctx, doc))
	assert.False(t, doc.UploadedAt.IsZero())

	got, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.FileName)

	// Mutating the returned copy must not leak into the store.
	got.Metadata["k"] = "changed"
	again, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Metadata["k"])
}

func TestDocumentStore_SaveInvalid(t *testing.T) {
	store := NewDocumentStore()
	assert.ErrorIs(t, store.SaveDocument(context.Background(), nil), domain.ErrInvalidInput)
}

func TestDocumentStore_GetNotFound(t *testing.T) {
	_, err := NewDocumentStore().GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_ListNewestFirstWithFilter(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		status := domain.StatusCompleted
		if id == "b" {
			status = domain.StatusFailed
		}
		require.NoError(t, store.SaveDocument(ctx, &domain.Document{
			ID: id, Status: status, UploadedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	all, err := store.ListDocuments(ctx, domain.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	limited, err := store.ListDocuments(ctx, domain.ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	failed, err := store.ListDocuments(ctx, domain.ListOptions{Status: domain.StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].ID)

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.StatusCompleted])
	assert.Equal(t, 1, counts[domain.StatusFailed])
}

func TestDocumentStore_Chunks(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	require.NoError(t, store.SaveChunks(ctx, "doc-1", []domain.Chunk{
		{DocumentID: "doc-1", Index: 1, Content: "b"},
		{DocumentID: "doc-1", Index: 0, Content: "a"},
	}))
	chunks, err := store.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "a", chunks[0].Content)

	require.NoError(t, store.SaveChunks(ctx, "doc-1", nil))
	chunks, err = store.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestDocumentStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{ID: "doc-1"}))
	require.NoError(t, store.SaveChunks(ctx, "doc-1", []domain.Chunk{{DocumentID: "doc-1"}}))

	require.NoError(t, store.DeleteDocument(ctx, "doc-1"))
	chunks, _ := store.GetChunks(ctx, "doc-1")
	assert.Empty(t, chunks)
	assert.ErrorIs(t, store.DeleteDocument(ctx, "doc-1"), domain.ErrNotFound)
}

func TestDocumentStore_RetrievalLog(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	stats, err := store.RetrievalStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalQueries)

	require.NoError(t, store.RecordRetrieval(ctx, &domain.RetrievalLog{Query: "a", Latency: 4 * time.Millisecond}))
	require.NoError(t, store.RecordRetrieval(ctx, &domain.RetrievalLog{Query: "b", Latency: 8 * time.Millisecond}))

	stats, err = store.RetrievalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalQueries)
	assert.InDelta(t, 6.0, stats.AvgResponseMS, 1e-9)

	logs := store.RetrievalLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, int64(1), logs[0].ID)
	assert.Equal(t, "b", logs[1].Query)
}
