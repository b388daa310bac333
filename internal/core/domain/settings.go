package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available embedding providers.
const (
	// AIProviderHashing is the offline feature-hashing embedder.
	AIProviderHashing AIProvider = "hashing"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderHashing, AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs without a network service.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderHashing || p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderHashing:
		return "Hashing (offline, character overlap only)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// VectorBackend selects the vector index implementation.
type VectorBackend string

// Available vector index backends.
const (
	VectorBackendMemory VectorBackend = "memory"
	VectorBackendSQLite VectorBackend = "sqlite"
	VectorBackendQdrant VectorBackend = "qdrant"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	switch b {
	case VectorBackendMemory, VectorBackendSQLite, VectorBackendQdrant:
		return true
	default:
		return false
	}
}

// BlobBackend selects where raw upload bytes are kept.
type BlobBackend string

// Available blob backends.
const (
	BlobBackendFilesystem BlobBackend = "filesystem"
	BlobBackendGCS        BlobBackend = "gcs"
)

// IsValid returns true if the backend is recognised.
func (b BlobBackend) IsValid() bool {
	return b == BlobBackendFilesystem || b == BlobBackendGCS
}

// IngestionSettings controls the ingestion pipeline.
type IngestionSettings struct {
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int

	// ChunkOverlap is the overlap between consecutive chunks in characters.
	ChunkOverlap int

	// MinChunkLength drops chunks shorter than this when the min_length
	// processor is enabled.
	MinChunkLength int

	// Pipeline is the ordered list of post-processor names.
	Pipeline []string

	// MaxFileSize is the upload size limit in bytes.
	MaxFileSize int64

	// Workers is the number of concurrent ingestion workers.
	Workers int

	// QueueSize bounds the job channel.
	QueueSize int

	// BatchSize is the number of chunks per embedding call.
	BatchSize int

	// EmbedTimeout bounds each embedding call.
	EmbedTimeout time.Duration

	// IndexTimeout bounds each vector index call.
	IndexTimeout time.Duration
}

// RetrievalSettings controls search.
type RetrievalSettings struct {
	// TopK is the default number of neighbours requested.
	TopK int

	// SimilarityThreshold discards results with 1 - distance below it.
	SimilarityThreshold float64
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the vector size for the hashing provider and for
	// models without a known size.
	Dimensions int

	// RequestsPerSecond rate-limits remote providers. Zero disables limiting.
	RequestsPerSecond float64

	// CacheRedisAddr enables the Redis embedding cache when set.
	CacheRedisAddr string

	// CacheTTL is how long cached vectors live.
	CacheTTL time.Duration
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// VectorIndexSettings holds vector index configuration.
type VectorIndexSettings struct {
	Backend      VectorBackend
	Collection   string
	QdrantHost   string
	QdrantPort   int
	QdrantAPIKey string
	QdrantTLS    bool
}

// StorageSettings holds blob storage configuration.
type StorageSettings struct {
	BlobBackend        BlobBackend
	GCSBucket          string
	GCSCredentialsFile string
}

// ReconcileSettings controls the periodic consistency sweep.
type ReconcileSettings struct {
	Enabled  bool
	Interval time.Duration
}

// ServerSettings holds HTTP server configuration.
type ServerSettings struct {
	HTTPAddr string
}

// WatchSettings configures the inbox watcher.
type WatchSettings struct {
	// InboxDir is the directory watched by "kbase watch" when no
	// argument is given.
	InboxDir string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Ingestion   IngestionSettings
	Retrieval   RetrievalSettings
	Embedding   EmbeddingSettings
	VectorIndex VectorIndexSettings
	Storage     StorageSettings
	Reconcile   ReconcileSettings
	Server      ServerSettings
	Watch       WatchSettings
}

// Default ingestion and retrieval parameters.
const (
	DefaultChunkSize           = 1000
	DefaultChunkOverlap        = 200
	DefaultMaxFileSize         = 50 * 1024 * 1024
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.7
	DefaultEmbeddingDimensions = 768
	DefaultOllamaBaseURL       = "http://localhost:11434"
)

// DefaultAppSettings returns settings for a local install: a local Ollama
// embedding model and on-disk storage.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Ingestion: IngestionSettings{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
			Pipeline:     []string{"chunker"},
			MaxFileSize:  DefaultMaxFileSize,
			Workers:      4,
			QueueSize:    64,
			BatchSize:    32,
			EmbedTimeout: 60 * time.Second,
			IndexTimeout: 30 * time.Second,
		},
		Retrieval: RetrievalSettings{
			TopK:                DefaultTopK,
			SimilarityThreshold: DefaultSimilarityThreshold,
		},
		Embedding: EmbeddingSettings{
			Provider:   AIProviderOllama,
			Model:      "nomic-embed-text",
			BaseURL:    DefaultOllamaBaseURL,
			Dimensions: DefaultEmbeddingDimensions,
			CacheTTL:   24 * time.Hour,
		},
		VectorIndex: VectorIndexSettings{
			Backend:    VectorBackendSQLite,
			Collection: "knowledge_chunks",
			QdrantHost: "localhost",
			QdrantPort: 6334,
		},
		Storage: StorageSettings{
			BlobBackend: BlobBackendFilesystem,
		},
		Reconcile: ReconcileSettings{
			Enabled:  true,
			Interval: time.Hour,
		},
		Server: ServerSettings{
			HTTPAddr: ":8080",
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderHashing,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderHashing: "hashing-ngram",
		AIProviderOllama:  "nomic-embed-text",
		AIProviderOpenAI:  "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
