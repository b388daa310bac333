// Package minlength drops chunks that are too short to carry meaning,
// such as stray page numbers or table separators.
package minlength

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// Processor filters chunks by trimmed length.
type Processor struct {
	min int
}

// New creates a filter keeping chunks of at least min characters.
// A min of zero keeps everything.
func New(minLength int) *Processor {
	return &Processor{min: minLength}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "min_length"
}

// Process returns the chunks whose trimmed text has at least min characters.
func (p *Processor) Process(_ context.Context, _ string, chunks []domain.ChunkSpec) ([]domain.ChunkSpec, error) {
	if p.min <= 0 {
		return chunks, nil
	}

	kept := chunks[:0:0]
	for _, c := range chunks {
		if utf8.RuneCountInString(strings.TrimSpace(c.Text)) >= p.min {
			kept = append(kept, c)
		}
	}
	return kept, nil
}
