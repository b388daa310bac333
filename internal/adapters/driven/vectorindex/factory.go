// Package vectorindex builds the configured vector index.
package vectorindex

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/kbase/internal/adapters/driven/vectorindex/memory"
	"github.com/custodia-labs/kbase/internal/adapters/driven/vectorindex/qdrant"
	"github.com/custodia-labs/kbase/internal/adapters/driven/vectorindex/sqlite"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// New creates the index selected by settings.Backend. db is only used by
// the sqlite backend and may be nil otherwise.
func New(ctx context.Context, settings domain.VectorIndexSettings, db *sql.DB) (driven.VectorIndex, error) {
	switch settings.Backend {
	case domain.VectorBackendMemory:
		return memory.New(), nil

	case domain.VectorBackendSQLite, "":
		if db == nil {
			return nil, fmt.Errorf("%w: sqlite backend needs a database", domain.ErrVectorIndexUnavailable)
		}
		idx, err := sqlite.New(ctx, db)
		if err != nil {
			return nil, err
		}
		return idx, nil

	case domain.VectorBackendQdrant:
		idx, err := qdrant.New(qdrant.Config{
			Host:       settings.QdrantHost,
			Port:       settings.QdrantPort,
			APIKey:     settings.QdrantAPIKey,
			UseTLS:     settings.QdrantTLS,
			Collection: settings.Collection,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil

	default:
		return nil, fmt.Errorf("%w: unknown vector backend %q", domain.ErrInvalidInput, settings.Backend)
	}
}
