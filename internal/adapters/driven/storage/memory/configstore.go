package memory

import (
	"maps"
	"sync"

	"github.com/custodia-labs/kbase/internal/adapters/driven/config/coerce"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings in a map. Tests and the offline defaults
// use it so nothing is written to ~/.kbase.
type ConfigStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore copies initial, so later changes to it are not seen.
func NewConfigStore(initial map[string]any) *ConfigStore {
	values := maps.Clone(initial)
	if values == nil {
		values = make(map[string]any)
	}
	return &ConfigStore{values: values}
}

func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()
	return v, ok
}

func (s *ConfigStore) value(key string) any {
	v, _ := s.Get(key)
	return v
}

func (s *ConfigStore) GetString(key string) string        { return coerce.String(s.value(key)) }
func (s *ConfigStore) GetInt(key string) int              { return coerce.Int(s.value(key)) }
func (s *ConfigStore) GetFloat(key string) float64        { return coerce.Float(s.value(key)) }
func (s *ConfigStore) GetBool(key string) bool            { return coerce.Bool(s.value(key)) }
func (s *ConfigStore) GetStringSlice(key string) []string { return coerce.Strings(s.value(key)) }

func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

// Save and Load have nothing to sync with.
func (s *ConfigStore) Save() error { return nil }
func (s *ConfigStore) Load() error { return nil }

func (s *ConfigStore) Path() string { return ":memory:" }
