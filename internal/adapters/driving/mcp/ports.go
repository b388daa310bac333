package mcp

import (
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// Ports are the services the MCP adapter calls into.
type Ports struct {
	Retrieval driving.RetrievalService

	// Document backs the kbase://documents resources. When nil those
	// resources report no documents.
	Document driving.DocumentService
}

// Validate is safe to call on a nil *Ports.
func (p *Ports) Validate() error {
	if p == nil || p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
