package driven

import "context"

// BlobStore keeps the raw bytes of uploaded files so that documents can be
// re-ingested later.
type BlobStore interface {
	// Put stores data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the bytes stored under key.
	// Returns domain.ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every key under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
