// Package messages holds the tea.Msg types passed between the TUI views
// and the commands that call the core services.
package messages

import (
	"github.com/custodia-labs/kbase/internal/core/domain"
)

// SearchCompleted carries retrieval results back to the model.
type SearchCompleted struct {
	Query   string
	Results []domain.SearchResult
	Err     error
}

// DocumentsLoaded carries a fresh documents listing.
type DocumentsLoaded struct {
	Documents []domain.Document
	Err       error
}

// DocumentActionDone reports the outcome of a regenerate or delete.
type DocumentActionDone struct {
	Action     string
	DocumentID string
	Err        error
}

// StatsLoaded carries knowledge base totals for the header.
type StatsLoaded struct {
	Stats *domain.KnowledgeBaseStats
	Err   error
}

// ErrorOccurred reports an error not tied to a request.
type ErrorOccurred struct {
	Err error
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewSearch is the query input and results view.
	ViewSearch ViewType = iota
	// ViewDocuments lists documents with their ingestion status.
	ViewDocuments
)

// Next cycles search -> documents -> search.
func (v ViewType) Next() ViewType {
	if v == ViewDocuments {
		return ViewSearch
	}
	return ViewDocuments
}

func (v ViewType) String() string {
	switch v {
	case ViewSearch:
		return "search"
	case ViewDocuments:
		return "documents"
	default:
		return "unknown"
	}
}
