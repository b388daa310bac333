package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrFileTooLarge indicates an upload exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmbeddingUnavailable indicates the embedding service timed out,
	// is not configured, or returned a model error.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured
	// or could not be reached.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrQueueClosed indicates the ingestion orchestrator has been stopped.
	ErrQueueClosed = errors.New("ingestion queue closed")

	// Ingestion errors.

	// ErrUnsupportedFileType indicates no extractor handles the declared extension.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrCorruptFile indicates the bytes could not be decoded for the declared type.
	ErrCorruptFile = errors.New("corrupt file")

	// ErrEmptyContent indicates extraction produced no text.
	// Empty documents cannot be indexed.
	ErrEmptyContent = errors.New("empty content")

	// ErrChunkingFailure indicates the chunker could not split the text.
	ErrChunkingFailure = errors.New("chunking failure")

	// ErrIndexWriteFailure indicates the vector index rejected a write.
	ErrIndexWriteFailure = errors.New("index write failure")

	// ErrCountMismatch indicates chunk and vector counts differ after indexing.
	ErrCountMismatch = errors.New("count mismatch")
)

// Error kinds as recorded in a failed document's reason.
const (
	KindUnsupportedFileType  = "UnsupportedFileType"
	KindCorruptFile          = "CorruptFile"
	KindEmptyContent         = "EmptyContent"
	KindChunkingFailure      = "ChunkingFailure"
	KindEmbeddingUnavailable = "EmbeddingUnavailable"
	KindIndexWriteFailure    = "IndexWriteFailure"
	KindCountMismatch        = "CountMismatch"
	KindNotFound             = "NotFound"
	KindInvalidInput         = "InvalidInput"
	KindUnknown              = "Unknown"
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrUnsupportedFileType, KindUnsupportedFileType},
	{ErrCorruptFile, KindCorruptFile},
	{ErrEmptyContent, KindEmptyContent},
	{ErrChunkingFailure, KindChunkingFailure},
	{ErrEmbeddingUnavailable, KindEmbeddingUnavailable},
	{ErrIndexWriteFailure, KindIndexWriteFailure},
	{ErrCountMismatch, KindCountMismatch},
	{ErrNotFound, KindNotFound},
	{ErrInvalidInput, KindInvalidInput},
	{ErrFileTooLarge, KindInvalidInput},
}

// KindOf maps err to its taxonomy name.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// FailureReason formats err for a Failed status. Empty content and count
// mismatches are recorded as the bare kind name.
func FailureReason(err error) string {
	kind := KindOf(err)
	switch kind {
	case KindEmptyContent, KindCountMismatch:
		return kind
	default:
		return kind + ": " + err.Error()
	}
}
