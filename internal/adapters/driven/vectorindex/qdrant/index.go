// Package qdrant provides a VectorIndex backed by a Qdrant collection over
// gRPC.
package qdrant

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Payload keys stored with every point.
const (
	payloadVectorID   = "vector_id"
	payloadDocumentID = "document_id"
	payloadChunkIndex = "chunk_index"
	payloadChunkSize  = "chunk_size"
	payloadUploadTime = "upload_time"
	payloadText       = "text"
)

const scrollPageSize = 256

// pointNamespace derives stable point UUIDs from vector ids.
var pointNamespace = uuid.MustParse("6f1c1f4e-5a0b-4c39-9d0e-2f7b6a3c8d41")

// Config holds connection settings.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// collectionAdmin is the part of the client that manages the collection.
type collectionAdmin interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	CreateFieldIndex(ctx context.Context, req *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
}

// Index is a Qdrant-backed vector index.
type Index struct {
	client     *qdrant.Client
	admin      collectionAdmin
	collection string

	mu    sync.Mutex
	ready bool
}

// New connects to Qdrant. The collection is created on first write, once the
// vector dimension is known.
func New(cfg Config) (*Index, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: qdrant collection name is required", domain.ErrInvalidInput)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant: %w", domain.ErrVectorIndexUnavailable, err)
	}

	return &Index{client: client, admin: client, collection: cfg.Collection}, nil
}

// Upsert writes points and waits for the write to be applied.
func (i *Index) Upsert(ctx context.Context, entries []domain.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" || len(e.Vector) == 0 {
			return fmt.Errorf("%w: entry %q has no id or vector", domain.ErrIndexWriteFailure, e.ID)
		}
		points = append(points, toPoint(e))
	}

	if err := i.ensureCollection(ctx, uint64(len(entries[0].Vector))); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexWriteFailure, err)
	}

	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant upsert: %w", domain.ErrIndexWriteFailure, err)
	}
	return nil
}

// Query returns the k nearest points. Qdrant's cosine score is converted to
// distance as 1 - score.
func (i *Index) Query(ctx context.Context, vector []float32, k int, filter *domain.VectorFilter) ([]domain.VectorMatch, error) {
	if k <= 0 || (filter != nil && len(filter.DocumentIDs) == 0) {
		return []domain.VectorMatch{}, nil
	}
	ok, err := i.exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.VectorMatch{}, nil
	}

	points, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		Filter:         toFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant query: %w", domain.ErrVectorIndexUnavailable, err)
	}

	matches := make([]domain.VectorMatch, 0, len(points))
	for _, p := range points {
		matches = append(matches, toMatch(p.GetPayload(), p.GetScore()))
	}
	return matches, nil
}

// DeleteByFilter removes matching points. The count is taken before the
// delete since Qdrant does not report it.
func (i *Index) DeleteByFilter(ctx context.Context, filter domain.VectorFilter) (int, error) {
	if len(filter.DocumentIDs) == 0 {
		return 0, nil
	}
	n, err := i.CountByFilter(ctx, &filter)
	if err != nil || n == 0 {
		return 0, err
	}

	_, err = i.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: i.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(toFilter(&filter)),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: qdrant delete: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return n, nil
}

// CountByFilter returns an exact count of matching points.
func (i *Index) CountByFilter(ctx context.Context, filter *domain.VectorFilter) (int, error) {
	if filter != nil && len(filter.DocumentIDs) == 0 {
		return 0, nil
	}
	ok, err := i.exists(ctx)
	if err != nil || !ok {
		return 0, err
	}

	n, err := i.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: i.collection,
		Filter:         toFilter(filter),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: qdrant count: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return int(n), nil
}

// DocumentIDs scrolls the collection collecting distinct document ids.
func (i *Index) DocumentIDs(ctx context.Context) ([]string, error) {
	ok, err := i.exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}

	seen := make(map[string]struct{})
	var offset *qdrant.PointId
	for {
		resp, err := i.client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: i.collection,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude(payloadDocumentID),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: qdrant scroll: %w", domain.ErrVectorIndexUnavailable, err)
		}
		for _, p := range resp.GetResult() {
			if id := p.GetPayload()[payloadDocumentID].GetStringValue(); id != "" {
				seen[id] = struct{}{}
			}
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close closes the gRPC connection.
func (i *Index) Close() error {
	return i.client.Close()
}

func (i *Index) exists(ctx context.Context) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.existsLocked(ctx)
}

func (i *Index) existsLocked(ctx context.Context) (bool, error) {
	if i.ready {
		return true, nil
	}
	ok, err := i.admin.CollectionExists(ctx, i.collection)
	if err != nil {
		return false, fmt.Errorf("%w: qdrant: %w", domain.ErrVectorIndexUnavailable, err)
	}
	i.ready = ok
	return ok, nil
}

// ensureCollection creates the collection once. The lock is held across the
// check and the create so concurrent writers in this process create it at
// most once; a create that loses to another process is accepted when the
// collection exists afterwards.
func (i *Index) ensureCollection(ctx context.Context, dims uint64) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	ok, err := i.existsLocked(ctx)
	if err != nil || ok {
		return err
	}

	err = i.admin.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dims,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		if ok, _ := i.admin.CollectionExists(ctx, i.collection); !ok {
			return fmt.Errorf("qdrant create collection %s: %w", i.collection, err)
		}
	}

	_, err = i.admin.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: i.collection,
		FieldName:      payloadDocumentID,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("qdrant create payload index: %w", err)
	}

	i.ready = true
	return nil
}

// pointID maps a vector id to a deterministic UUID, since Qdrant only
// accepts UUIDs or integers as point ids.
func pointID(vectorID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(vectorID)).String()
}

func toPoint(e domain.VectorEntry) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewID(pointID(e.ID)),
		Vectors: qdrant.NewVectors(e.Vector...),
		Payload: toPayload(e),
	}
}

func toPayload(e domain.VectorEntry) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		payloadVectorID:   qdrant.NewValueString(e.ID),
		payloadDocumentID: qdrant.NewValueString(e.Metadata.DocumentID),
		payloadChunkIndex: qdrant.NewValueInt(int64(e.Metadata.ChunkIndex)),
		payloadChunkSize:  qdrant.NewValueInt(int64(e.Metadata.ChunkSize)),
		payloadUploadTime: qdrant.NewValueInt(e.Metadata.UploadTime.UnixNano()),
		payloadText:       qdrant.NewValueString(e.Text),
	}
}

func toMatch(payload map[string]*qdrant.Value, score float32) domain.VectorMatch {
	return domain.VectorMatch{
		ID:   payload[payloadVectorID].GetStringValue(),
		Text: payload[payloadText].GetStringValue(),
		Metadata: domain.VectorMetadata{
			DocumentID: payload[payloadDocumentID].GetStringValue(),
			ChunkIndex: int(payload[payloadChunkIndex].GetIntegerValue()),
			ChunkSize:  int(payload[payloadChunkSize].GetIntegerValue()),
			UploadTime: time.Unix(0, payload[payloadUploadTime].GetIntegerValue()).UTC(),
		},
		Distance: 1 - float64(score),
	}
}

// toFilter renders a document filter. A nil filter matches everything.
func toFilter(filter *domain.VectorFilter) *qdrant.Filter {
	if filter == nil {
		return nil
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatchKeywords(payloadDocumentID, filter.DocumentIDs...),
		},
	}
}
