// Package cache provides a Redis-backed caching decorator for embedding
// services. Cache failures never fail a request; they are logged and the
// wrapped service is called instead.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "kbase:emb:"

// Client is the subset of the Redis client used by the cache.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// EmbeddingService caches vectors produced by an inner service.
type EmbeddingService struct {
	inner  driven.EmbeddingService
	client Client
	ttl    time.Duration
}

// New wraps inner with a cache backed by client.
func New(inner driven.EmbeddingService, client Client, ttl time.Duration) *EmbeddingService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &EmbeddingService{inner: inner, client: client, ttl: ttl}
}

// Dial connects to Redis at addr and verifies it with a ping.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Embed returns the cached vector for text or computes and stores it.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch serves hits from the cache and embeds only the misses, in one
// call to the inner service.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if vec, ok := s.lookup(ctx, text); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	computed, err := s.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(computed) != len(missTexts) {
		return nil, fmt.Errorf("cache: inner service returned %d vectors for %d texts", len(computed), len(missTexts))
	}

	for j, i := range missIdx {
		out[i] = computed[j]
		s.store(ctx, missTexts[j], computed[j])
	}
	return out, nil
}

// Dimensions returns the wrapped service's vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the wrapped model name.
func (s *EmbeddingService) ModelName() string {
	return s.inner.ModelName()
}

// Ping checks the wrapped service only; the cache is optional.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close closes the Redis client and the wrapped service.
func (s *EmbeddingService) Close() error {
	return errors.Join(s.client.Close(), s.inner.Close())
}

func (s *EmbeddingService) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + s.inner.ModelName() + ":" + hex.EncodeToString(sum[:])
}

func (s *EmbeddingService) lookup(ctx context.Context, text string) ([]float32, bool) {
	raw, err := s.client.Get(ctx, s.key(text)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.Warn("embedding cache read failed: %v", err)
		return nil, false
	}
	vec, err := decode(raw)
	if err != nil {
		logger.Warn("embedding cache entry invalid: %v", err)
		return nil, false
	}
	return vec, true
}

func (s *EmbeddingService) store(ctx context.Context, text string, vec []float32) {
	if err := s.client.Set(ctx, s.key(text), encode(vec), s.ttl).Err(); err != nil {
		logger.Warn("embedding cache write failed: %v", err)
	}
}

// encode stores a vector as little-endian float32s.
func encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decode(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("length %d is not a multiple of 4", len(raw))
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vec, nil
}
