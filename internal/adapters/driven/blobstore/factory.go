// Package blobstore builds the configured blob store.
package blobstore

import (
	"context"
	"fmt"

	"github.com/custodia-labs/kbase/internal/adapters/driven/blobstore/filesystem"
	"github.com/custodia-labs/kbase/internal/adapters/driven/blobstore/gcs"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// New returns the blob store selected by settings. localDir is used by the
// filesystem backend; empty means ~/.kbase/blobs.
func New(ctx context.Context, settings domain.StorageSettings, localDir string) (driven.BlobStore, error) {
	switch settings.BlobBackend {
	case domain.BlobBackendFilesystem, "":
		s, err := filesystem.New(localDir)
		if err != nil {
			return nil, err
		}
		return s, nil

	case domain.BlobBackendGCS:
		s, err := gcs.New(ctx, gcs.Config{
			Bucket:          settings.GCSBucket,
			CredentialsFile: settings.GCSCredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("%w: unknown blob backend %q", domain.ErrInvalidInput, settings.BlobBackend)
	}
}
