package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, 1000, s.Ingestion.ChunkSize)
	assert.Equal(t, 200, s.Ingestion.ChunkOverlap)
	assert.Equal(t, int64(50*1024*1024), s.Ingestion.MaxFileSize)
	assert.Equal(t, []string{"chunker"}, s.Ingestion.Pipeline)
	assert.Equal(t, 5, s.Retrieval.TopK)
	assert.InDelta(t, 0.7, s.Retrieval.SimilarityThreshold, 1e-9)
	assert.Equal(t, AIProviderOllama, s.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", s.Embedding.Model)
	assert.Equal(t, DefaultOllamaBaseURL, s.Embedding.BaseURL)
	assert.Equal(t, EmbeddingDimensions()[s.Embedding.Model], s.Embedding.Dimensions)
	assert.True(t, s.Embedding.IsConfigured())
	assert.Equal(t, VectorBackendSQLite, s.VectorIndex.Backend)
	assert.Equal(t, BlobBackendFilesystem, s.Storage.BlobBackend)
}

func TestAIProvider(t *testing.T) {
	assert.True(t, AIProviderOpenAI.RequiresAPIKey())
	assert.False(t, AIProviderHashing.RequiresAPIKey())
	assert.True(t, AIProviderOllama.IsLocal())
	assert.False(t, AIProvider("anthropic").IsValid())
	assert.Equal(t, "Unknown", AIProvider("x").Description())
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	assert.False(t, EmbeddingSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "k"}.IsConfigured())
	assert.False(t, EmbeddingSettings{}.IsConfigured())
}

func TestBackends_IsValid(t *testing.T) {
	assert.True(t, VectorBackendQdrant.IsValid())
	assert.False(t, VectorBackend("hnsw").IsValid())
	assert.True(t, BlobBackendGCS.IsValid())
	assert.False(t, BlobBackend("s3").IsValid())
}
