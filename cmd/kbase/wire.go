package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/custodia-labs/kbase/internal/adapters/driven/blobstore"
	"github.com/custodia-labs/kbase/internal/adapters/driven/config/file"
	"github.com/custodia-labs/kbase/internal/adapters/driven/embedding"
	"github.com/custodia-labs/kbase/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/kbase/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/kbase/internal/adapters/driving/cli"
	"github.com/custodia-labs/kbase/internal/core/services"
	"github.com/custodia-labs/kbase/internal/extractors"
	"github.com/custodia-labs/kbase/internal/logger"
	"github.com/custodia-labs/kbase/internal/postprocessors"
)

// build assembles the services for one command invocation.
func build(ctx context.Context, opts cli.Options) (svc *cli.Services, err error) {
	cfgStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(cfgStore)
	if opts.SettingsOnly {
		return &cli.Services{Settings: settingsService}, nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	// closers run in reverse on failure or Close.
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	defer func() {
		if err != nil {
			_ = closeAll()
		}
	}()

	store, err := sqlite.NewStore(opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	closers = append(closers, store.Close)

	embedder, err := embedding.New(ctx, settings.Embedding)
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	closers = append(closers, embedder.Close)

	index, err := vectorindex.New(ctx, settings.VectorIndex, store.DB())
	if err != nil {
		return nil, fmt.Errorf("opening vector index: %w", err)
	}
	closers = append(closers, index.Close)

	blobs, err := blobstore.New(ctx, settings.Storage, filepath.Join(filepath.Dir(store.Path()), "blobs"))
	if err != nil {
		return nil, fmt.Errorf("opening blob store: %w", err)
	}
	if c, ok := blobs.(io.Closer); ok {
		closers = append(closers, c.Close)
	}

	pipeline, err := postprocessors.NewCatalog().Pipeline(settings.Ingestion)
	if err != nil {
		return nil, fmt.Errorf("building pipeline: %w", err)
	}

	docs := store.DocumentStore()
	logs := store.RetrievalLogStore()
	orchestrator := services.NewIngestionOrchestrator(
		extractors.NewDefaultRegistry(), pipeline, embedder, index, docs, blobs, settings.Ingestion,
	)
	scheduler := services.NewScheduler(settingsService.GetSchedulerConfig(), store.SchedulerStore(), orchestrator)

	logger.Debug("Loaded %s embeddings, %s vector index, %s blobs",
		embedder.ModelName(), settings.VectorIndex.Backend, settings.Storage.BlobBackend)

	return &cli.Services{
		Ingestion: orchestrator,
		Retrieval: services.NewRetrievalService(embedder, index, docs, logs, settings.Retrieval),
		Documents: services.NewDocumentService(docs, logs, index, embedder),
		Settings:  settingsService,
		Scheduler: scheduler,
		Workers:   orchestrator,
		Close:     closeAll,
	}, nil
}
