package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/kbase/internal/adapters/driven/config/coerce"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "KBASE_"

const fileName = "config.toml"

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// ConfigStore reads and writes ~/.kbase/config.toml.
type ConfigStore struct {
	mu     sync.RWMutex
	path   string
	flat   map[string]any
	getenv func(string) string
}

// NewConfigStore loads config.toml from configDir, creating the directory
// if needed. An empty configDir means ~/.kbase.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		configDir = filepath.Join(home, ".kbase")
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	s := &ConfigStore{
		path:   filepath.Join(configDir, fileName),
		flat:   map[string]any{},
		getenv: os.Getenv,
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// EnvKey names the variable that overrides key, e.g. KBASE_RETRIEVAL_TOP_K.
func EnvKey(key string) string {
	return EnvPrefix + strings.ToUpper(envKeyReplacer.Replace(key))
}

// override reports the raw environment value for key, if set.
func (s *ConfigStore) override(key string) (string, bool) {
	raw := s.getenv(EnvKey(key))
	return raw, raw != ""
}

// Get prefers an environment override, typed the way TOML would type it.
func (s *ConfigStore) Get(key string) (any, bool) {
	if raw, ok := s.override(key); ok {
		return parseEnvValue(raw), true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.flat[key]
	return v, ok
}

func (s *ConfigStore) value(key string) any {
	v, _ := s.Get(key)
	return v
}

// GetString returns an override verbatim, so "8080" stays a string.
func (s *ConfigStore) GetString(key string) string {
	if raw, ok := s.override(key); ok {
		return raw
	}
	return coerce.String(s.value(key))
}

func (s *ConfigStore) GetInt(key string) int       { return coerce.Int(s.value(key)) }
func (s *ConfigStore) GetFloat(key string) float64 { return coerce.Float(s.value(key)) }
func (s *ConfigStore) GetBool(key string) bool     { return coerce.Bool(s.value(key)) }

// GetStringSlice splits an override on commas.
func (s *ConfigStore) GetStringSlice(key string) []string {
	if raw, ok := s.override(key); ok {
		return coerce.SplitList(raw)
	}
	return coerce.Strings(s.value(key))
}

// Set writes the whole file after updating key.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flat[key] = value
	return s.writeLocked()
}

func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked()
}

func (s *ConfigStore) writeLocked() error {
	out, err := toml.Marshal(nestMap(s.flat))
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(s.path, out, 0600)
}

// Load replaces the in-memory settings with the file's. A missing file is
// an empty configuration.
func (s *ConfigStore) Load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	tables := map[string]any{}
	if len(raw) > 0 {
		if err := toml.Unmarshal(raw, &tables); err != nil {
			return fmt.Errorf("parsing %s: %w", s.path, err)
		}
	}

	s.mu.Lock()
	s.flat = flattenMap(tables, "")
	s.mu.Unlock()
	return nil
}

func (s *ConfigStore) Path() string {
	return s.path
}

// flattenMap turns [retrieval] top_k = 5 into "retrieval.top_k": 5.
func flattenMap(tables map[string]any, prefix string) map[string]any {
	flat := make(map[string]any, len(tables))
	for key, v := range tables {
		if prefix != "" {
			key = prefix + "." + key
		}
		if sub, ok := v.(map[string]any); ok {
			for k, leaf := range flattenMap(sub, key) {
				flat[k] = leaf
			}
			continue
		}
		flat[key] = v
	}
	return flat
}

// nestMap is the inverse of flattenMap.
func nestMap(flat map[string]any) map[string]any {
	root := map[string]any{}
	for key, v := range flat {
		table := root
		segments := strings.Split(key, ".")
		last := len(segments) - 1
		for _, seg := range segments[:last] {
			next, ok := table[seg].(map[string]any)
			if !ok {
				next = map[string]any{}
				table[seg] = next
			}
			table = next
		}
		table[segments[last]] = v
	}
	return root
}

// parseEnvValue tries bool, then int64, then float64, else keeps the string.
func parseEnvValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
