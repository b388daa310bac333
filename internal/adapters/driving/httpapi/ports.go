package httpapi

import (
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// Ports aggregates the driving ports the HTTP API calls into.
type Ports struct {
	// Ingestion accepts uploads and manages document lifecycles.
	Ingestion driving.IngestionOrchestrator

	// Retrieval answers search queries.
	Retrieval driving.RetrievalService

	// Documents provides listings, chunk details and stats.
	Documents driving.DocumentService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	switch {
	case p.Ingestion == nil:
		return ErrMissingIngestion
	case p.Retrieval == nil:
		return ErrMissingRetrieval
	case p.Documents == nil:
		return ErrMissingDocuments
	}
	return nil
}
