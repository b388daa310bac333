// Package ollama embeds text with a local Ollama server.
package ollama

import (
	"context"
	"net/http"
	"time"

	"github.com/custodia-labs/kbase/internal/adapters/driven/embedding/remote"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "nomic-embed-text"
	DefaultTimeout = 60 * time.Second
	// DefaultDimensions matches nomic-embed-text.
	DefaultDimensions = 768
	// DefaultBatchSize keeps a single /api/embed call within typical
	// local memory.
	DefaultBatchSize = 64
)

type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
	BatchSize  int
}

// EmbeddingService is an Ollama-backed driven.EmbeddingService.
type EmbeddingService struct {
	api        *remote.Client
	model      string
	dimensions int
	batchSize  int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// NewEmbeddingService fills unset Config fields with the defaults.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &EmbeddingService{
		api: &remote.Client{
			Provider: "ollama",
			BaseURL:  cfg.BaseURL,
			HTTP:     &http.Client{Timeout: cfg.Timeout},
		},
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
	}
}

func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for _, batch := range remote.Batches(texts, s.batchSize) {
		var resp embedResponse
		if err := s.api.PostJSON(ctx, "/api/embed", embedRequest{Model: s.model, Input: batch}, &resp); err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, s.api.Unavailable("got %d embeddings for %d inputs", len(resp.Embeddings), len(batch))
		}
		for _, e := range resp.Embeddings {
			out = append(out, remote.Float32(e))
		}
	}
	return out, nil
}

func (s *EmbeddingService) Dimensions() int   { return s.dimensions }
func (s *EmbeddingService) ModelName() string { return s.model }

// Ping hits /api/tags, which answers without loading a model.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.api.Reachable(ctx, "/api/tags")
}

func (s *EmbeddingService) Close() error { return nil }
