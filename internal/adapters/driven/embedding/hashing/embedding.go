// Package hashing provides an offline embedding service based on feature
// hashing.
//
// Each text is tokenised into runs of letters and digits. Every token
// contributes a word feature plus its character unigrams and bigrams, which
// keeps scripts without word separators (Chinese, Japanese) comparable at the
// sub-word level. Features are hashed into a fixed number of buckets and the
// vector is L2-normalised, so cosine similarity is a plain dot product.
//
// Similarity comes only from shared characters, so it drops as a passage
// grows past the query. The service suits offline use and tests; with
// ordinary chunk sizes it needs a lower retrieval.similarity_threshold than a
// model-backed provider.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultDimensions = 384
	ModelName         = "hashing-ngram"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// EmbeddingService generates deterministic feature-hashed embeddings.
type EmbeddingService struct {
	dimensions int
}

// NewEmbeddingService creates a hashing embedder with the given dimension.
// Non-positive values use DefaultDimensions.
func NewEmbeddingService(dimensions int) *EmbeddingService {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &EmbeddingService{dimensions: dimensions}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.vector(text), nil
}

// EmbedBatch embeds each text in order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = s.vector(text)
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return ModelName
}

// Ping always succeeds; there is nothing remote to reach.
func (s *EmbeddingService) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

func (s *EmbeddingService) vector(text string) []float32 {
	acc := make([]float64, s.dimensions)

	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		acc[s.bucket("w:"+tok)]++

		runes := []rune(tok)
		for i, r := range runes {
			acc[s.bucket("u:"+string(r))]++
			if i+1 < len(runes) {
				acc[s.bucket("b:"+string(runes[i:i+2]))]++
			}
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, s.dimensions)
	if norm == 0 {
		return vec
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

func (s *EmbeddingService) bucket(feature string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	return int(h.Sum64() % uint64(s.dimensions))
}
