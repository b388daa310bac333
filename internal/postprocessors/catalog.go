package postprocessors

import (
	"fmt"
	"slices"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/postprocessors/chunker"
	"github.com/custodia-labs/kbase/internal/postprocessors/minlength"
)

// Stage names accepted in ingestion.pipeline.
const (
	StageChunker   = "chunker"
	StageMinLength = "min_length"
)

// Factory builds one stage from the ingestion settings.
type Factory func(domain.IngestionSettings) (driven.PostProcessor, error)

// Catalog maps stage names to factories.
type Catalog struct {
	factories map[string]Factory
}

// NewCatalog returns a catalog holding the built-in stages.
func NewCatalog() *Catalog {
	c := &Catalog{factories: map[string]Factory{}}
	c.Add(StageChunker, newChunker)
	c.Add(StageMinLength, newMinLength)
	return c
}

// Add registers or replaces a stage.
func (c *Catalog) Add(name string, f Factory) {
	c.factories[name] = f
}

// Stages lists the known stage names in sorted order.
func (c *Catalog) Stages() []string {
	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Pipeline assembles the stages listed in s.Pipeline. The chunker always
// runs first since later stages only filter or rewrite its output, and a
// stage named twice runs once.
func (c *Catalog) Pipeline(s domain.IngestionSettings) (*Pipeline, error) {
	order := []string{StageChunker}
	for _, name := range s.Pipeline {
		if !slices.Contains(order, name) {
			order = append(order, name)
		}
	}

	stages := make([]driven.PostProcessor, 0, len(order))
	for _, name := range order {
		f, ok := c.factories[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown pipeline stage %q (known: %v)", domain.ErrInvalidInput, name, c.Stages())
		}
		stage, err := f(s)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}
		stages = append(stages, stage)
	}
	return NewPipeline(stages...), nil
}

func newChunker(s domain.IngestionSettings) (driven.PostProcessor, error) {
	opts := []chunker.Option{chunker.WithOverlap(s.ChunkOverlap)}
	if s.ChunkSize > 0 {
		opts = append(opts, chunker.WithChunkSize(s.ChunkSize))
	}
	return chunker.New(opts...), nil
}

func newMinLength(s domain.IngestionSettings) (driven.PostProcessor, error) {
	if s.MinChunkLength < 0 {
		return nil, fmt.Errorf("%w: min_chunk_length %d is negative", domain.ErrInvalidInput, s.MinChunkLength)
	}
	return minlength.New(s.MinChunkLength), nil
}
