package driven

import "context"

// EmbeddingService turns chunk text and queries into vectors.
//
// Every vector it returns has Dimensions() components. Ingestion and
// retrieval must use the same service or similarity scores are meaningless.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns exactly one vector per text, aligned by index.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dimensions() int

	// ModelName identifies the model in stats and retrieval logs.
	ModelName() string

	// Ping fails with domain.ErrEmbeddingUnavailable when the backend
	// cannot be reached.
	Ping(ctx context.Context) error

	Close() error
}
