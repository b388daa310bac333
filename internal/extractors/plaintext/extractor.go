package plaintext

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/extractors/textenc"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles plain text files in any supported encoding.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedExtensions returns the extensions this extractor handles.
func (e *Extractor) SupportedExtensions() []string {
	return []string{"txt"}
}

// Extract decodes the bytes and returns them unchanged otherwise.
func (e *Extractor) Extract(_ context.Context, data []byte) (*domain.Extraction, error) {
	text, enc, err := textenc.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCorruptFile, err)
	}

	lineCount := 0
	if text != "" {
		lineCount = strings.Count(text, "\n") + 1
		if strings.HasSuffix(text, "\n") {
			lineCount--
		}
	}

	return &domain.Extraction{
		Text: text,
		Metadata: map[string]any{
			"encoding":            enc,
			"line_count":          lineCount,
			domain.MetaHasContent: strings.TrimSpace(text) != "",
		},
	}, nil
}
