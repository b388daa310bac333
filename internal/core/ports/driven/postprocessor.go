package driven

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// PostProcessor transforms extracted text into chunk specs.
// PostProcessors are chained in a pipeline (e.g. chunking, then filtering).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes the extracted text and the chunks produced so far.
	// A processor that creates chunks (the chunker) receives nil and returns
	// new chunks. A processor that filters receives and returns chunks.
	Process(ctx context.Context, text string, chunks []domain.ChunkSpec) ([]domain.ChunkSpec, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the text through all processors in order and returns
	// the final chunks.
	Process(ctx context.Context, text string) ([]domain.ChunkSpec, error)
}
