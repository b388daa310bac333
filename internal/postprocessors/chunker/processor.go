// Package chunker splits extracted text into overlapping, sentence-aware chunks.
//
// All sizes and offsets are measured in characters (Unicode code points).
package chunker

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// boundaryWindow is how far back from a window end the chunker looks for a
// sentence terminator.
const boundaryWindow = 100

// terminators end a sentence in either Chinese or Latin punctuation.
const terminators = "。！？.!?"

// Processor splits text into chunks. It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
// An overlap at or above the chunk size is kept as configured; Split still
// advances by at least one character per chunk.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured chunk size.
func (p *Processor) ChunkSize() int { return p.chunkSize }

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int { return p.overlap }

// Process splits text into chunks. Input chunks are ignored.
func (p *Processor) Process(ctx context.Context, text string, _ []domain.ChunkSpec) (specs []domain.ChunkSpec, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			specs = nil
			err = fmt.Errorf("%w: %v", domain.ErrChunkingFailure, r)
		}
	}()

	return Split(text, p.chunkSize, p.overlap), nil
}

// Split cuts text into chunks of at most maxSize characters.
//
// Text no longer than maxSize yields a single chunk. Otherwise a window of
// maxSize characters slides forward; a window that does not reach the end
// of the text is cut just after the last sentence terminator within its
// final 100 characters, if there is one. The next window starts at
// max(start+1, end-overlap). Whitespace-only chunks are dropped.
func Split(text string, maxSize, overlap int) []domain.ChunkSpec {
	if maxSize <= 0 {
		maxSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}

	runes := []rune(text)
	total := len(runes)
	if total == 0 {
		return nil
	}

	var specs []domain.ChunkSpec
	emit := func(start, end int) {
		s := string(runes[start:end])
		if strings.TrimSpace(s) == "" {
			return
		}
		specs = append(specs, domain.ChunkSpec{Text: s, StartOffset: start, EndOffset: end})
	}

	if total <= maxSize {
		emit(0, total)
		return specs
	}

	start := 0
	for start < total {
		end := min(start+maxSize, total)
		if end < total {
			end = sentenceCut(runes, start, end, maxSize)
		}

		emit(start, end)
		if end >= total {
			break
		}

		start = max(start+1, end-overlap)
	}

	return specs
}

// sentenceCut returns the position just after the last terminator in
// runes[lower:end], where lower is max(start, start+maxSize-boundaryWindow).
// It returns end unchanged when no terminator is found.
func sentenceCut(runes []rune, start, end, maxSize int) int {
	lower := max(start, start+maxSize-boundaryWindow)
	for i := end - 1; i >= lower; i-- {
		if strings.ContainsRune(terminators, runes[i]) {
			return i + 1
		}
	}
	return end
}

// Length returns the length of s in characters.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}
