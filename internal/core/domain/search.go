package domain

import "time"

// SearchOptions configures a retrieval query.
type SearchOptions struct {
	// TopK is the number of nearest neighbours requested from the index.
	// Zero uses the configured default.
	TopK int

	// DocumentIDs scopes the query to a set of documents. Empty means all.
	DocumentIDs []string
}

// SearchResult is one ranked retrieval hit.
type SearchResult struct {
	// Text is the chunk text.
	Text string `json:"text"`

	// DocumentID identifies the owning document.
	DocumentID string `json:"document_id"`

	// ChunkIndex is the chunk ordinal within the document.
	ChunkIndex int `json:"chunk_index"`

	// VectorID is the index entry that matched.
	VectorID string `json:"vector_id"`

	// Similarity is 1 - cosine distance.
	Similarity float64 `json:"similarity"`

	// Rank is 1-based and reflects the order after threshold filtering.
	Rank int `json:"rank"`

	// FileName is filled in when the owning document is still known.
	FileName string `json:"file_name,omitempty"`
}

// RetrievalLog records one search call for observability.
type RetrievalLog struct {
	ID          int64
	Query       string
	ResultCount int
	Latency     time.Duration
	CreatedAt   time.Time
}

// RetrievalStats aggregates the retrieval log.
type RetrievalStats struct {
	TotalQueries  int
	AvgResponseMS float64
}

// ListOptions filters document listings.
type ListOptions struct {
	// Status limits results to one status. Empty means any.
	Status Status

	// Limit caps the number of documents. Zero uses the default of 100.
	Limit int
}

// DefaultListLimit is used when ListOptions.Limit is zero.
const DefaultListLimit = 100

// KnowledgeBaseStats summarises the knowledge base.
type KnowledgeBaseStats struct {
	TotalDocuments int            `json:"total_documents"`
	ByStatus       map[Status]int `json:"by_status"`
	TotalVectors   int            `json:"total_vectors"`
	TotalQueries   int            `json:"total_queries"`
	AvgResponseMS  float64        `json:"avg_response_ms"`
	EmbeddingModel string         `json:"embedding_model"`
}
