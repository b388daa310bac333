// Package postprocessors turns extracted text into chunk specs through an
// ordered pipeline of named stages.
package postprocessors

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline feeds each stage the previous stage's chunks. The first stage
// sees nil and is expected to produce them from the text.
type Pipeline struct {
	stages []driven.PostProcessor
}

func NewPipeline(stages ...driven.PostProcessor) *Pipeline {
	return &Pipeline{stages: stages}
}

// Process fails with domain.ErrChunkingFailure, naming the stage, when
// any stage fails or when there are no stages at all.
func (p *Pipeline) Process(ctx context.Context, text string) ([]domain.ChunkSpec, error) {
	if len(p.stages) == 0 {
		return nil, fmt.Errorf("%w: empty pipeline", domain.ErrChunkingFailure)
	}
	var specs []domain.ChunkSpec
	for _, stage := range p.stages {
		out, err := stage.Process(ctx, text, specs)
		if err != nil {
			return nil, chunkingError(stage.Name(), err)
		}
		specs = out
	}
	return specs, nil
}

func chunkingError(stage string, err error) error {
	if errors.Is(err, domain.ErrChunkingFailure) {
		return fmt.Errorf("stage %s: %w", stage, err)
	}
	return fmt.Errorf("%w: stage %s: %w", domain.ErrChunkingFailure, stage, err)
}

func (p *Pipeline) Add(stage driven.PostProcessor) {
	p.stages = append(p.stages, stage)
}

func (p *Pipeline) Len() int {
	return len(p.stages)
}

// Names lists stages in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name())
	}
	return names
}
