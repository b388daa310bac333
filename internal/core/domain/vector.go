package domain

import (
	"crypto/md5" //nolint:gosec // G501: used for short content fingerprints, not security
	"encoding/hex"
	"fmt"
	"time"
)

// VectorMetadata is the queryable metadata stored alongside each vector.
type VectorMetadata struct {
	DocumentID string
	ChunkIndex int
	ChunkSize  int
	UploadTime time.Time
}

// VectorEntry is one embedded chunk as stored in the vector index.
type VectorEntry struct {
	// ID is unique across the index. See VectorID.
	ID string

	// Vector is the fixed-length embedding.
	Vector []float32

	// Text is the source chunk text, denormalised for display.
	Text string

	// Metadata identifies the owning document and chunk.
	Metadata VectorMetadata
}

// VectorMatch is a nearest-neighbour hit.
type VectorMatch struct {
	ID       string
	Text     string
	Metadata VectorMetadata

	// Distance is the cosine distance (1 - cosine similarity).
	Distance float64
}

// Similarity converts the match distance to a similarity score.
func (m VectorMatch) Similarity() float64 {
	return 1 - m.Distance
}

// VectorFilter restricts vector operations by metadata.
// An empty DocumentIDs list matches nothing; use a nil *VectorFilter to
// match everything.
type VectorFilter struct {
	DocumentIDs []string
}

// ForDocument returns a filter matching a single document.
func ForDocument(documentID string) VectorFilter {
	return VectorFilter{DocumentIDs: []string{documentID}}
}

// Matches reports whether the metadata passes the filter.
func (f *VectorFilter) Matches(meta VectorMetadata) bool {
	if f == nil {
		return true
	}
	for _, id := range f.DocumentIDs {
		if id == meta.DocumentID {
			return true
		}
	}
	return false
}

// VectorID derives the deterministic vector id for a chunk:
// {document_id}_{chunk_index}_{first 8 hex chars of md5(text)}.
func VectorID(documentID string, chunkIndex int, text string) string {
	sum := md5.Sum([]byte(text)) //nolint:gosec // G401: fingerprint only
	return fmt.Sprintf("%s_%d_%s", documentID, chunkIndex, hex.EncodeToString(sum[:])[:8])
}
