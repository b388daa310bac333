// Package httpapi serves the knowledge base over HTTP: document intake,
// status, deletion, search and stats under /api/v1, plus health and
// Prometheus endpoints.
package httpapi

import "errors"

// Errors returned by NewServer when a required port is missing.
var (
	ErrMissingIngestion = errors.New("httpapi: ingestion orchestrator is required")
	ErrMissingRetrieval = errors.New("httpapi: retrieval service is required")
	ErrMissingDocuments = errors.New("httpapi: document service is required")
)
