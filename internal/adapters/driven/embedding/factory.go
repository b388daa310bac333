// Package embedding builds the configured embedding service.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/kbase/internal/adapters/driven/embedding/cache"
	"github.com/custodia-labs/kbase/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/kbase/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/kbase/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// New creates the embedding service described by settings, wrapped with the
// Redis cache when one is configured. An unreachable cache is logged and
// skipped.
func New(ctx context.Context, settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := create(settings)
	if err != nil {
		return nil, err
	}

	if settings.CacheRedisAddr == "" {
		return svc, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	rdb, err := cache.Dial(dialCtx, settings.CacheRedisAddr)
	if err != nil {
		logger.Warn("embedding cache disabled: %v", err)
		return svc, nil
	}
	return cache.New(svc, rdb, settings.CacheTTL), nil
}

// NewAndValidate creates the service and checks it is reachable.
func NewAndValidate(ctx context.Context, settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := New(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'kbase settings set embedding.provider hashing' to work offline",
			domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

func create(settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("embedding provider %q is not configured", settings.Provider)
	}

	switch settings.Provider {
	case domain.AIProviderHashing:
		return hashing.NewEmbeddingService(settings.Dimensions), nil

	case domain.AIProviderOllama:
		dimensions := domain.EmbeddingDimensions()[settings.Model]
		if dimensions == 0 {
			dimensions = settings.Dimensions
		}
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensions,
		}), nil

	case domain.AIProviderOpenAI:
		return openai.NewEmbeddingService(openai.Config{
			APIKey:            settings.APIKey,
			BaseURL:           settings.BaseURL,
			Model:             settings.Model,
			Dimensions:        domain.EmbeddingDimensions()[settings.Model],
			RequestsPerSecond: settings.RequestsPerSecond,
		})

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}
