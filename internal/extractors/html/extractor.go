package html

import (
	"context"
	"fmt"
	stdhtml "html"
	"regexp"
	"strings"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/extractors/textenc"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles HTML documents.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedExtensions returns the extensions this extractor handles.
func (e *Extractor) SupportedExtensions() []string {
	return []string{"html", "htm"}
}

// Extract decodes the page and returns its visible text.
func (e *Extractor) Extract(_ context.Context, data []byte) (*domain.Extraction, error) {
	raw, enc, err := textenc.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCorruptFile, err)
	}

	text := visibleText(raw)
	meta := map[string]any{
		"encoding":            enc,
		domain.MetaHasContent: text != "",
	}
	if title := pageTitle(raw); title != "" {
		meta["title"] = title
	}

	return &domain.Extraction{Text: text, Metadata: meta}, nil
}

var (
	titleTag      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	droppedBlocks = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`),
		regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`),
		regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`),
		regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`),
		regexp.MustCompile(`(?s)<!--.*?-->`),
	}
	cellClose     = regexp.MustCompile(`(?i)</t[dh]>`)
	blockTags     = regexp.MustCompile(`(?i)</?(p|div|h[1-6]|li|ul|ol|tr|table|blockquote|pre|section|article|header|footer|nav)(\s[^>]*)?>`)
	breakTags     = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t\x{00a0}]+`)
	trailingPipes = regexp.MustCompile(`\s*\|\s*$`)
)

// pageTitle returns the decoded contents of the title element.
func pageTitle(content string) string {
	m := titleTag.FindStringSubmatch(content)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(stdhtml.UnescapeString(m[1]))
}

// visibleText strips markup and returns one non-empty line per block.
func visibleText(content string) string {
	for _, re := range droppedBlocks {
		content = re.ReplaceAllString(content, "")
	}

	content = cellClose.ReplaceAllString(content, " | ")
	content = blockTags.ReplaceAllString(content, "\n")
	content = breakTags.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")
	content = stdhtml.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(trailingPipes.ReplaceAllString(line, ""))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
