// Package tui is the interactive terminal front end: a search view over
// the knowledge base and a documents view for regenerate and delete.
package tui

import (
	"errors"

	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// ErrMissingRetrievalService is returned by NewApp without a retrieval port.
var ErrMissingRetrievalService = errors.New("tui: retrieval service is required")

// Ports aggregates the driving ports used by the TUI.
type Ports struct {
	// Retrieval answers queries. Required.
	Retrieval driving.RetrievalService

	// Documents lists documents and reports stats. Without it the
	// documents view and the header totals are disabled.
	Documents driving.DocumentService

	// Ingestion backs regenerate and delete in the documents view.
	Ingestion driving.IngestionOrchestrator
}

func (p *Ports) Validate() error {
	if p == nil || p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
