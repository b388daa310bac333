package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func sampleResults() []domain.SearchResult {
	return []domain.SearchResult{
		{Rank: 1, Similarity: 0.912, Text: "Fire exits must stay clear.", DocumentID: "d1", FileName: "safety.md", ChunkIndex: 3},
		{Rank: 2, Similarity: 0.801, Text: "Badges are required on site.", DocumentID: "d2", FileName: "access.pdf"},
	}
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "search")
	assert.Error(t, err)

	_, err = execute(t, "search", "a", "b")
	assert.Error(t, err)
}

func TestSearchCmd_PrintsResults(t *testing.T) {
	ts := setupTestServices(t)
	ts.retrieval.results = sampleResults()

	out, err := execute(t, "search", "fire safety", "-n", "3", "--doc", "d1,d2")

	require.NoError(t, err)
	assert.Equal(t, []string{"fire safety"}, ts.retrieval.queries)
	assert.Equal(t, 3, ts.retrieval.lastOpts.TopK)
	assert.Equal(t, []string{"d1", "d2"}, ts.retrieval.lastOpts.DocumentIDs)
	assert.Contains(t, out, "[1] safety.md #3 (0.912)")
	assert.Contains(t, out, "Fire exits must stay clear.")
}

func TestSearchCmd_NoResults(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "search", "nothing")

	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	ts := setupTestServices(t)
	ts.retrieval.results = sampleResults()

	out, err := execute(t, "search", "--json", "fire")

	require.NoError(t, err)
	var got []domain.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "safety.md", got[0].FileName)
}

func TestSearchCmd_NegativeTopK(t *testing.T) {
	ts := setupTestServices(t)

	_, err := execute(t, "search", "--top-k=-2", "fire")

	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, ts.retrieval.queries)
}

func TestSearchCmd_ServiceError(t *testing.T) {
	ts := setupTestServices(t)
	ts.retrieval.err = domain.ErrEmbeddingUnavailable

	_, err := execute(t, "search", "fire")

	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "search failed")
}

func TestSearchCmd_ServiceNotConfigured(t *testing.T) {
	setupTestServices(t)
	SetServices(&Services{})

	_, err := execute(t, "search", "fire")

	require.EqualError(t, err, "retrieval service not configured")
}

func TestBatchSearchCmd(t *testing.T) {
	ts := setupTestServices(t)
	ts.retrieval.results = sampleResults()

	out, err := execute(t, "batch-search", "fire", "badges")

	require.NoError(t, err)
	assert.Equal(t, []string{"fire", "badges"}, ts.retrieval.queries)
	assert.Contains(t, out, "== fire")
	assert.Contains(t, out, "== badges")
}

func TestBatchSearchCmd_JSONKeepsQueryOrder(t *testing.T) {
	ts := setupTestServices(t)

	out, err := execute(t, "batch-search", "--json", "one", "two")

	require.NoError(t, err)
	var got [][]domain.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, got, 2)
	assert.NotNil(t, got[0])
	assert.Equal(t, []string{"one", "two"}, ts.retrieval.queries)
}
