// Package sqlite provides a VectorIndex stored in a SQLite table.
//
// Embeddings are little-endian float32 blobs next to their metadata. Queries
// select the candidate rows with the document filter pushed into SQL and
// score them in Go, which is exact and fast enough for a single-node
// knowledge base of moderate size.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/custodia-labs/kbase/internal/adapters/driven/vectorindex/cosine"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS vectors (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	chunk_size  INTEGER NOT NULL,
	upload_time INTEGER NOT NULL,
	text        TEXT NOT NULL,
	embedding   BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vectors_document_id ON vectors(document_id);
`

// Index is a SQLite-backed vector index. It does not own the database handle.
type Index struct {
	db *sql.DB
}

// New creates the vectors table if needed and returns an index over db.
func New(ctx context.Context, db *sql.DB) (*Index, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("%w: creating vectors table: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return &Index{db: db}, nil
}

// Upsert inserts or replaces entries in one transaction.
func (i *Index) Upsert(ctx context.Context, entries []domain.VectorEntry) error {
	for _, e := range entries {
		if e.ID == "" || len(e.Vector) == 0 {
			return fmt.Errorf("%w: entry %q has no id or vector", domain.ErrIndexWriteFailure, e.ID)
		}
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", domain.ErrIndexWriteFailure, err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (id, document_id, chunk_index, chunk_size, upload_time, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			chunk_index = excluded.chunk_index,
			chunk_size = excluded.chunk_size,
			upload_time = excluded.upload_time,
			text = excluded.text,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("%w: preparing statement: %w", domain.ErrIndexWriteFailure, err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, e.Metadata.DocumentID, e.Metadata.ChunkIndex,
			e.Metadata.ChunkSize, e.Metadata.UploadTime.UnixNano(), e.Text, encode(e.Vector)); err != nil {
			return fmt.Errorf("%w: writing %s: %w", domain.ErrIndexWriteFailure, e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing: %w", domain.ErrIndexWriteFailure, err)
	}
	return nil
}

// Query scores every row passing the filter and returns the k nearest.
func (i *Index) Query(ctx context.Context, vector []float32, k int, filter *domain.VectorFilter) ([]domain.VectorMatch, error) {
	if k <= 0 || (filter != nil && len(filter.DocumentIDs) == 0) {
		return []domain.VectorMatch{}, nil
	}

	where, args := whereClause(filter)
	rows, err := i.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, chunk_size, upload_time, text, embedding
		FROM vectors`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying vectors: %w", domain.ErrVectorIndexUnavailable, err)
	}
	defer rows.Close()

	var matches []domain.VectorMatch //nolint:prealloc // size unknown from query
	for rows.Next() {
		var m domain.VectorMatch
		var uploadNanos int64
		var blob []byte
		if err := rows.Scan(&m.ID, &m.Metadata.DocumentID, &m.Metadata.ChunkIndex,
			&m.Metadata.ChunkSize, &uploadNanos, &m.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}
		m.Metadata.UploadTime = time.Unix(0, uploadNanos).UTC()
		m.Distance = cosine.Distance(vector, decode(blob))
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

	if matches == nil {
		return []domain.VectorMatch{}, nil
	}
	return cosine.Nearest(matches, k), nil
}

// DeleteByFilter removes matching rows in a single transaction.
func (i *Index) DeleteByFilter(ctx context.Context, filter domain.VectorFilter) (int, error) {
	if len(filter.DocumentIDs) == 0 {
		return 0, nil
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: beginning transaction: %w", domain.ErrVectorIndexUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck

	where, args := whereClause(&filter)
	res, err := tx.ExecContext(ctx, "DELETE FROM vectors"+where, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting vectors: %w", domain.ErrVectorIndexUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted vectors: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing delete: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return int(n), nil
}

// CountByFilter counts matching rows.
func (i *Index) CountByFilter(ctx context.Context, filter *domain.VectorFilter) (int, error) {
	if filter != nil && len(filter.DocumentIDs) == 0 {
		return 0, nil
	}

	where, args := whereClause(filter)
	var n int
	if err := i.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting vectors: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return n, nil
}

// DocumentIDs lists distinct document ids, sorted.
func (i *Index) DocumentIDs(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, "SELECT DISTINCT document_id FROM vectors ORDER BY document_id")
	if err != nil {
		return nil, fmt.Errorf("%w: listing document ids: %w", domain.ErrVectorIndexUnavailable, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document ids: %w", err)
	}
	return ids, nil
}

// Close is a no-op; the owner of the database handle closes it.
func (i *Index) Close() error {
	return nil
}

// whereClause renders the document filter. A nil filter yields no clause.
func whereClause(filter *domain.VectorFilter) (string, []any) {
	if filter == nil {
		return "", nil
	}
	placeholders := make([]string, len(filter.DocumentIDs))
	args := make([]any, len(filter.DocumentIDs))
	for i, id := range filter.DocumentIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	return " WHERE document_id IN (" + strings.Join(placeholders, ", ") + ")", args
}

func encode(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decode(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
