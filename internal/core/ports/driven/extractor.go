package driven

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// Extractor converts raw bytes of one file type into plain text.
// Each extractor handles a fixed set of extensions (e.g. "pdf", "docx").
type Extractor interface {
	// SupportedExtensions returns the lower-case extensions, without dots,
	// that this extractor handles.
	SupportedExtensions() []string

	// Extract decodes data into text and structural metadata.
	// Empty input is not an error: it yields empty text with has_content=false.
	Extract(ctx context.Context, data []byte) (*domain.Extraction, error)
}

// ExtractorRegistry dispatches extraction by declared extension.
type ExtractorRegistry interface {
	// Register adds an extractor for each of its extensions.
	Register(e Extractor)

	// Extract dispatches to the extractor registered for ext.
	// Returns domain.ErrUnsupportedFileType when none is registered.
	Extract(ctx context.Context, data []byte, ext string) (*domain.Extraction, error)

	// Supports reports whether an extractor is registered for ext.
	Supports(ext string) bool

	// Extensions returns every registered extension, sorted.
	Extensions() []string
}
