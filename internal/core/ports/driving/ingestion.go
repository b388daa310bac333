package driving

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// IngestionOrchestrator drives documents through extract, chunk, embed and
// index, recording each status transition.
type IngestionOrchestrator interface {
	// Upload stores the bytes, records the document as Uploaded and queues it.
	// Pipeline failures are never returned here; only malformed requests are.
	Upload(ctx context.Context, req domain.UploadRequest) (*domain.UploadReceipt, error)

	// Status returns the current status record.
	Status(ctx context.Context, documentID string) (*DocumentStatus, error)

	// Regenerate clears a document's vectors and re-runs the full pipeline
	// from its stored bytes.
	Regenerate(ctx context.Context, documentID string) error

	// Delete removes vectors, chunks, the record and the stored bytes.
	// When ingestion is in flight it runs after the attempt terminates.
	Delete(ctx context.Context, documentID string) error

	// Wait blocks until the document reaches a terminal status.
	Wait(ctx context.Context, documentID string) (*DocumentStatus, error)
}

// DocumentStatus is the pollable view of a document's progress.
type DocumentStatus struct {
	// DocumentID identifies the document.
	DocumentID string `json:"document_id"`

	// Status is the current ingestion state.
	Status domain.Status `json:"status"`

	// FailedStage is set when Status is Failed.
	FailedStage string `json:"failed_stage,omitempty"`

	// Error is the failure reason when Status is Failed.
	Error string `json:"error,omitempty"`

	// Metadata holds parse stats and counts.
	Metadata map[string]any `json:"metadata,omitempty"`

	// InFlight reports whether a pipeline attempt is running right now.
	InFlight bool `json:"in_flight"`
}
