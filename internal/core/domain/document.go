package domain

import "time"

// Status is the ingestion state of a document.
type Status string

// Ingestion states, in pipeline order.
const (
	StatusUploaded  Status = "uploaded"
	StatusParsing   Status = "parsing"
	StatusParsed    Status = "parsed"
	StatusChunking  Status = "chunking"
	StatusChunked   Status = "chunked"
	StatusEmbedding Status = "embedding"
	StatusIndexing  Status = "indexing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// statusOrder gives each non-failed status its position in the pipeline.
var statusOrder = map[Status]int{
	StatusUploaded:  0,
	StatusParsing:   1,
	StatusParsed:    2,
	StatusChunking:  3,
	StatusChunked:   4,
	StatusEmbedding: 5,
	StatusIndexing:  6,
	StatusCompleted: 7,
}

// IsValid returns true if the status is recognised.
func (s Status) IsValid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := statusOrder[s]
	return ok
}

// IsTerminal returns true for Completed and Failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is allowed within one
// ingestion attempt. Failed is reachable from any non-terminal state and
// forward moves must be to the immediate successor. Uploaded may always be
// re-entered from a terminal state to start a new attempt.
func (s Status) CanTransition(next Status) bool {
	if next == StatusUploaded {
		return s.IsTerminal() || s == StatusUploaded
	}
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	from, ok := statusOrder[s]
	if !ok {
		return false
	}
	to, ok := statusOrder[next]
	return ok && to == from+1
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// AllStatuses returns every status in pipeline order, followed by Failed.
func AllStatuses() []Status {
	return []Status{
		StatusUploaded, StatusParsing, StatusParsed, StatusChunking, StatusChunked,
		StatusEmbedding, StatusIndexing, StatusCompleted, StatusFailed,
	}
}

// Stage names used when a document fails.
const (
	StageExtract       = "extract"
	StageChunk         = "chunk"
	StageEmbed         = "embed"
	StageIndex         = "index"
	StageCountMismatch = "count_mismatch"
)

// Metadata keys written by the ingestion pipeline.
const (
	MetaChunkCount         = "chunk_count"
	MetaVectorCount        = "vector_count"
	MetaContentLength      = "content_length"
	MetaHasContent         = "has_content"
	MetaReconciliationDebt = "reconciliation_debt"
)

// Document is an uploaded file tracked through the ingestion pipeline.
// It is owned by the ingestion orchestrator and mutated only through
// status transitions.
type Document struct {
	// ID is the opaque identifier returned at upload time.
	ID string `json:"id"`

	// FileName is the original filename as uploaded.
	FileName string `json:"file_name"`

	// FileType is the declared extension, lower-case and without a dot.
	FileType string `json:"file_type"`

	// Size is the raw byte size.
	Size int64 `json:"size"`

	// ContentHash is the hex sha256 of the raw bytes.
	ContentHash string `json:"content_hash"`

	// BlobKey locates the raw bytes in the blob store.
	BlobKey string `json:"blob_key"`

	// Status is the current ingestion state.
	Status Status `json:"status"`

	// FailedStage names the stage that failed when Status is Failed.
	FailedStage string `json:"failed_stage,omitempty"`

	// Error holds the failure reason when Status is Failed.
	Error string `json:"error,omitempty"`

	// Metadata holds parse stats and chunk/vector counts.
	Metadata map[string]any `json:"metadata,omitempty"`

	// UploadedAt is when the bytes were accepted.
	UploadedAt time.Time `json:"uploaded_at"`

	// UpdatedAt is when the record last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// MetadataInt reads an integer metadata value, tolerating the numeric
// types produced by JSON decoding.
func (d *Document) MetadataInt(key string) int {
	if d.Metadata == nil {
		return 0
	}
	switch v := d.Metadata[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Chunk is an immutable text segment of a document.
type Chunk struct {
	// DocumentID links to the parent Document.
	DocumentID string `json:"document_id"`

	// Index is the 0-based ordinal within the document. Indices are contiguous.
	Index int `json:"index"`

	// Content is the chunk text.
	Content string `json:"content"`

	// Length is the chunk length in characters (runes).
	Length int `json:"length"`

	// StartOffset and EndOffset are rune offsets into the extracted text.
	StartOffset int `json:"start_offset"`
	EndOffset   int `json:"end_offset"`

	// VectorID references the vector entry built from this chunk.
	VectorID string `json:"vector_id"`
}

// ChunkSpec is a chunker output before it is bound to a document.
type ChunkSpec struct {
	Text        string
	StartOffset int
	EndOffset   int
}

// Extraction is the plain-text result of parsing raw bytes.
type Extraction struct {
	// Text is the extracted UTF-8 text.
	Text string

	// Metadata holds lightweight structural information such as page,
	// sheet or paragraph counts.
	Metadata map[string]any
}

// HasContent returns true if the extraction produced any text.
func (e Extraction) HasContent() bool {
	if v, ok := e.Metadata[MetaHasContent].(bool); ok {
		return v && e.Text != ""
	}
	return e.Text != ""
}
