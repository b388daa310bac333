package extractors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry maps extensions to extractors.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]driven.Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[string]driven.Extractor),
	}
}

// Register adds e for each of its extensions. A later registration for the
// same extension replaces the earlier one.
func (r *Registry) Register(e driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ext := range e.SupportedExtensions() {
		r.extractors[domain.NormaliseExtension(ext)] = e
	}
}

// Extract dispatches to the extractor registered for ext.
func (r *Registry) Extract(ctx context.Context, data []byte, ext string) (*domain.Extraction, error) {
	ext = domain.NormaliseExtension(ext)

	r.mu.RLock()
	e, ok := r.extractors[ext]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("extension %q: %w", ext, domain.ErrUnsupportedFileType)
	}

	result, err := e.Extract(ctx, data)
	if err != nil {
		return nil, err
	}
	if result.Metadata == nil {
		result.Metadata = make(map[string]any)
	}
	if _, ok := result.Metadata[domain.MetaHasContent]; !ok {
		result.Metadata[domain.MetaHasContent] = result.Text != ""
	}
	return result, nil
}

// Supports reports whether an extractor is registered for ext.
func (r *Registry) Supports(ext string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.extractors[domain.NormaliseExtension(ext)]
	return ok
}

// Extensions returns every registered extension, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
