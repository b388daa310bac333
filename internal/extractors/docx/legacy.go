package docx

import (
	"bytes"
	"context"
	"fmt"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure LegacyExtractor implements the interface.
var _ driven.Extractor = (*LegacyExtractor)(nil)

var (
	zipMagic = []byte("PK\x03\x04")
	// Compound File Binary header used by Word 97-2003.
	cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// LegacyExtractor handles files uploaded with a .doc extension. Word saves
// many of these as Office Open XML, which is read like .docx. The binary
// Word 97-2003 format is rejected as unsupported.
type LegacyExtractor struct {
	modern *Extractor
}

// NewLegacy creates a .doc extractor.
func NewLegacy() *LegacyExtractor {
	return &LegacyExtractor{modern: New()}
}

// SupportedExtensions returns the extensions this extractor handles.
func (e *LegacyExtractor) SupportedExtensions() []string {
	return []string{"doc"}
}

// Extract sniffs the container and delegates zipped documents.
func (e *LegacyExtractor) Extract(ctx context.Context, data []byte) (*domain.Extraction, error) {
	switch {
	case len(data) == 0:
		return &domain.Extraction{Metadata: map[string]any{domain.MetaHasContent: false}}, nil
	case bytes.HasPrefix(data, zipMagic):
		return e.modern.Extract(ctx, data)
	case bytes.HasPrefix(data, cfbMagic):
		return nil, fmt.Errorf("%w: binary Word 97-2003 document, save it as .docx", domain.ErrUnsupportedFileType)
	default:
		return nil, fmt.Errorf("%w: not a Word document", domain.ErrCorruptFile)
	}
}
