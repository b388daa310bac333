package services

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyChunkSize      = "ingestion.chunk_size"
	keyChunkOverlap   = "ingestion.chunk_overlap"
	keyMinChunkLength = "ingestion.min_chunk_length"
	keyPipeline       = "ingestion.pipeline"
	keyMaxFileSize    = "ingestion.max_file_size"
	keyWorkers        = "ingestion.workers"
	keyQueueSize      = "ingestion.queue_size"
	keyBatchSize      = "ingestion.batch_size"
	keyEmbedTimeout   = "ingestion.embed_timeout_seconds"
	keyIndexTimeout   = "ingestion.index_timeout_seconds"

	keyTopK      = "retrieval.top_k"
	keyThreshold = "retrieval.similarity_threshold"

	keyEmbedProvider    = "embedding.provider"
	keyEmbedModel       = "embedding.model"
	keyEmbedBaseURL     = "embedding.base_url"
	keyEmbedAPIKey      = "embedding.api_key"
	keyEmbedDims        = "embedding.dimensions"
	keyEmbedRPS         = "embedding.requests_per_second"
	keyEmbedCacheAddr   = "embedding.cache_redis_addr"
	keyEmbedCacheTTLMin = "embedding.cache_ttl_minutes"

	keyVectorBackend    = "vector_index.backend"
	keyVectorCollection = "vector_index.collection"
	keyQdrantHost       = "vector_index.qdrant_host"
	keyQdrantPort       = "vector_index.qdrant_port"
	keyQdrantAPIKey     = "vector_index.qdrant_api_key"
	keyQdrantTLS        = "vector_index.qdrant_tls"

	keyBlobBackend    = "storage.blob_backend"
	keyGCSBucket      = "storage.gcs_bucket"
	keyGCSCredentials = "storage.gcs_credentials_file"

	keyReconcileEnabled  = "reconcile.enabled"
	keyReconcileInterval = "reconcile.interval_minutes"

	keyHTTPAddr = "server.http_addr"
	keyInboxDir = "watch.inbox_dir"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindList
)

// settingSpec describes how SetValue parses and checks a key.
type settingSpec struct {
	kind  valueKind
	check func(v any) error
}

func positive(v any) error {
	if v.(int64) <= 0 {
		return errors.New("must be greater than zero")
	}
	return nil
}

func nonNegative(v any) error {
	switch n := v.(type) {
	case int64:
		if n < 0 {
			return errors.New("must not be negative")
		}
	case float64:
		if n < 0 {
			return errors.New("must not be negative")
		}
	}
	return nil
}

func unitInterval(v any) error {
	if f := v.(float64); f < 0 || f > 1 {
		return errors.New("must be between 0 and 1")
	}
	return nil
}

func oneOf(valid func(string) bool) func(any) error {
	return func(v any) error {
		if !valid(v.(string)) {
			return errors.New("unsupported value")
		}
		return nil
	}
}

var settingSpecs = map[string]settingSpec{
	keyChunkSize:      {kindInt, positive},
	keyChunkOverlap:   {kindInt, nonNegative},
	keyMinChunkLength: {kindInt, nonNegative},
	keyPipeline:       {kindList, nil},
	keyMaxFileSize:    {kindInt, positive},
	keyWorkers:        {kindInt, positive},
	keyQueueSize:      {kindInt, positive},
	keyBatchSize:      {kindInt, positive},
	keyEmbedTimeout:   {kindInt, positive},
	keyIndexTimeout:   {kindInt, positive},

	keyTopK:      {kindInt, positive},
	keyThreshold: {kindFloat, unitInterval},

	keyEmbedProvider:    {kindString, oneOf(func(s string) bool { return domain.AIProvider(s).IsValid() })},
	keyEmbedModel:       {kindString, nil},
	keyEmbedBaseURL:     {kindString, nil},
	keyEmbedAPIKey:      {kindString, nil},
	keyEmbedDims:        {kindInt, positive},
	keyEmbedRPS:         {kindFloat, nonNegative},
	keyEmbedCacheAddr:   {kindString, nil},
	keyEmbedCacheTTLMin: {kindInt, nonNegative},

	keyVectorBackend:    {kindString, oneOf(func(s string) bool { return domain.VectorBackend(s).IsValid() })},
	keyVectorCollection: {kindString, nil},
	keyQdrantHost:       {kindString, nil},
	keyQdrantPort:       {kindInt, positive},
	keyQdrantAPIKey:     {kindString, nil},
	keyQdrantTLS:        {kindBool, nil},

	keyBlobBackend:    {kindString, oneOf(func(s string) bool { return domain.BlobBackend(s).IsValid() })},
	keyGCSBucket:      {kindString, nil},
	keyGCSCredentials: {kindString, nil},

	keyReconcileEnabled:  {kindBool, nil},
	keyReconcileInterval: {kindInt, positive},

	keyHTTPAddr: {kindString, nil},
	keyInboxDir: {kindString, nil},
}

// SettingKeys returns every key accepted by SetValue, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingSpecs))
	for k := range settingSpecs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Ingestion: domain.IngestionSettings{
			ChunkSize:      s.getInt(keyChunkSize, d.Ingestion.ChunkSize),
			ChunkOverlap:   s.getInt(keyChunkOverlap, d.Ingestion.ChunkOverlap),
			MinChunkLength: s.getInt(keyMinChunkLength, d.Ingestion.MinChunkLength),
			Pipeline:       s.getStringSlice(keyPipeline, d.Ingestion.Pipeline),
			MaxFileSize:    int64(s.getInt(keyMaxFileSize, int(d.Ingestion.MaxFileSize))),
			Workers:        s.getInt(keyWorkers, d.Ingestion.Workers),
			QueueSize:      s.getInt(keyQueueSize, d.Ingestion.QueueSize),
			BatchSize:      s.getInt(keyBatchSize, d.Ingestion.BatchSize),
			EmbedTimeout:   s.getSeconds(keyEmbedTimeout, d.Ingestion.EmbedTimeout),
			IndexTimeout:   s.getSeconds(keyIndexTimeout, d.Ingestion.IndexTimeout),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:                s.getInt(keyTopK, d.Retrieval.TopK),
			SimilarityThreshold: s.getFloat(keyThreshold, d.Retrieval.SimilarityThreshold),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(d.Embedding.Provider),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			Dimensions:        s.getInt(keyEmbedDims, d.Embedding.Dimensions),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, d.Embedding.RequestsPerSecond),
			CacheRedisAddr:    s.configStore.GetString(keyEmbedCacheAddr),
			CacheTTL:          time.Duration(s.getInt(keyEmbedCacheTTLMin, int(d.Embedding.CacheTTL/time.Minute))) * time.Minute,
		},
		VectorIndex: domain.VectorIndexSettings{
			Backend:      s.getVectorBackend(d.VectorIndex.Backend),
			Collection:   s.getString(keyVectorCollection, d.VectorIndex.Collection),
			QdrantHost:   s.getString(keyQdrantHost, d.VectorIndex.QdrantHost),
			QdrantPort:   s.getInt(keyQdrantPort, d.VectorIndex.QdrantPort),
			QdrantAPIKey: s.configStore.GetString(keyQdrantAPIKey),
			QdrantTLS:    s.getBool(keyQdrantTLS, d.VectorIndex.QdrantTLS),
		},
		Storage: domain.StorageSettings{
			BlobBackend:        s.getBlobBackend(d.Storage.BlobBackend),
			GCSBucket:          s.configStore.GetString(keyGCSBucket),
			GCSCredentialsFile: s.configStore.GetString(keyGCSCredentials),
		},
		Reconcile: domain.ReconcileSettings{
			Enabled:  s.getBool(keyReconcileEnabled, d.Reconcile.Enabled),
			Interval: time.Duration(s.getInt(keyReconcileInterval, int(d.Reconcile.Interval/time.Minute))) * time.Minute,
		},
		Server: domain.ServerSettings{
			HTTPAddr: s.getString(keyHTTPAddr, d.Server.HTTPAddr),
		},
		Watch: domain.WatchSettings{
			InboxDir: s.configStore.GetString(keyInboxDir),
		},
	}

	// The model default follows the provider.
	defaultModel := domain.DefaultEmbeddingModels()[settings.Embedding.Provider]
	settings.Embedding.Model = s.getString(keyEmbedModel, defaultModel)

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key string
		val any
	}{
		{keyChunkSize, settings.Ingestion.ChunkSize},
		{keyChunkOverlap, settings.Ingestion.ChunkOverlap},
		{keyMinChunkLength, settings.Ingestion.MinChunkLength},
		{keyPipeline, settings.Ingestion.Pipeline},
		{keyMaxFileSize, settings.Ingestion.MaxFileSize},
		{keyWorkers, settings.Ingestion.Workers},
		{keyQueueSize, settings.Ingestion.QueueSize},
		{keyBatchSize, settings.Ingestion.BatchSize},
		{keyEmbedTimeout, int(settings.Ingestion.EmbedTimeout / time.Second)},
		{keyIndexTimeout, int(settings.Ingestion.IndexTimeout / time.Second)},
		{keyTopK, settings.Retrieval.TopK},
		{keyThreshold, settings.Retrieval.SimilarityThreshold},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyEmbedRPS, settings.Embedding.RequestsPerSecond},
		{keyEmbedCacheAddr, settings.Embedding.CacheRedisAddr},
		{keyEmbedCacheTTLMin, int(settings.Embedding.CacheTTL / time.Minute)},
		{keyVectorBackend, string(settings.VectorIndex.Backend)},
		{keyVectorCollection, settings.VectorIndex.Collection},
		{keyQdrantHost, settings.VectorIndex.QdrantHost},
		{keyQdrantPort, settings.VectorIndex.QdrantPort},
		{keyQdrantTLS, settings.VectorIndex.QdrantTLS},
		{keyBlobBackend, string(settings.Storage.BlobBackend)},
		{keyGCSBucket, settings.Storage.GCSBucket},
		{keyGCSCredentials, settings.Storage.GCSCredentialsFile},
		{keyReconcileEnabled, settings.Reconcile.Enabled},
		{keyReconcileInterval, int(settings.Reconcile.Interval / time.Minute)},
		{keyHTTPAddr, settings.Server.HTTPAddr},
		{keyInboxDir, settings.Watch.InboxDir},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.val); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Secrets are only written when provided.
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if settings.VectorIndex.QdrantAPIKey != "" {
		if err := s.configStore.Set(keyQdrantAPIKey, settings.VectorIndex.QdrantAPIKey); err != nil {
			return fmt.Errorf("save qdrant api_key: %w", err)
		}
	}

	return nil
}

// SetValue parses value according to the key's type, validates it and
// persists it.
func (s *SettingsService) SetValue(key, value string) error {
	spec, ok := settingSpecs[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	parsed, err := parseSetting(spec.kind, value)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	if spec.check != nil {
		if err := spec.check(parsed); err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
		}
	}

	return s.configStore.Set(key, parsed)
}

func parseSetting(kind valueKind, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch kind {
	case kindInt:
		return strconv.ParseInt(value, 10, 64)
	case kindFloat:
		return strconv.ParseFloat(value, 64)
	case kindBool:
		return strconv.ParseBool(value)
	case kindList:
		var items []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		return items, nil
	default:
		return value, nil
	}
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidInput, provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	switch provider {
	case domain.AIProviderOllama:
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = domain.DefaultOllamaBaseURL
		}
	default:
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	// Track the model's native size so the vector index matches.
	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Embedding.Dimensions = d
	}

	return s.Save(settings)
}

// Validate checks that the current settings are consistent.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if !settings.Embedding.IsConfigured() {
		errs = append(errs, fmt.Errorf("embedding provider %q is not configured", settings.Embedding.Provider))
	}
	if settings.Ingestion.ChunkSize <= 0 {
		errs = append(errs, errors.New("ingestion.chunk_size must be greater than zero"))
	}
	if t := settings.Retrieval.SimilarityThreshold; t < 0 || t > 1 {
		errs = append(errs, errors.New("retrieval.similarity_threshold must be between 0 and 1"))
	}
	if settings.Storage.BlobBackend == domain.BlobBackendGCS && settings.Storage.GCSBucket == "" {
		errs = append(errs, errors.New("storage.gcs_bucket is required for the gcs blob backend"))
	}
	if settings.VectorIndex.Backend == domain.VectorBackendQdrant && settings.VectorIndex.QdrantHost == "" {
		errs = append(errs, errors.New("vector_index.qdrant_host is required for the qdrant backend"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// GetSchedulerConfig derives the task schedule from the reconcile section.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	cfg := domain.DefaultSchedulerConfig()

	settings, err := s.Get()
	if err != nil {
		return cfg
	}

	reconcile := cfg.TaskConfigs[domain.TaskIDReconcile]
	reconcile.Enabled = settings.Reconcile.Enabled
	reconcile.Interval = settings.Reconcile.Interval
	cfg.TaskConfigs[domain.TaskIDReconcile] = reconcile

	return cfg
}

// Helper methods for reading config with defaults. A key that is present
// always wins, so explicit zeros are honoured.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getStringSlice(key string, defaultVal []string) []string {
	if val := s.configStore.GetStringSlice(key); len(val) > 0 {
		return val
	}
	return append([]string(nil), defaultVal...)
}

func (s *SettingsService) getSeconds(key string, defaultVal time.Duration) time.Duration {
	return time.Duration(s.getInt(key, int(defaultVal/time.Second))) * time.Second
}

func (s *SettingsService) getProvider(defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(keyEmbedProvider))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getVectorBackend(defaultVal domain.VectorBackend) domain.VectorBackend {
	backend := domain.VectorBackend(s.configStore.GetString(keyVectorBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func (s *SettingsService) getBlobBackend(defaultVal domain.BlobBackend) domain.BlobBackend {
	backend := domain.BlobBackend(s.configStore.GetString(keyBlobBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
