// Package services implements the driving port interfaces: ingestion,
// retrieval, document views, settings and the maintenance scheduler.
// Services depend only on domain types and driven ports; adapters are
// injected by the caller.
package services
