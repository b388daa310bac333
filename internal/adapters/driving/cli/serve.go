package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbase/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with background ingestion",
	Long: `Starts the ingestion workers, the maintenance scheduler and the HTTP API.

Routes live under /api/v1; /healthz and /metrics sit at the root.
Logs are written as JSON.`,
	RunE: runServe,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Remove orphaned vectors, chunks and stored bytes",
	RunE:  runReconcile,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from settings)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reconcileCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil || retrievalService == nil || documentService == nil {
		return notConfigured("ingestion")
	}
	logger.Init(logger.ModeProduction)
	defer logger.Sync()

	settings, err := currentSettings()
	if err != nil {
		return err
	}
	addr := serveAddr
	if addr == "" {
		addr = settings.Server.HTTPAddr
	}

	server, err := httpapi.NewServer(&httpapi.Ports{
		Ingestion: ingestionService,
		Retrieval: retrievalService,
		Documents: documentService,
	}, httpapi.Options{MaxUploadBytes: settings.Ingestion.MaxFileSize})
	if err != nil {
		return err
	}

	ctx, stop, err := startBackground(cmd.Context())
	if err != nil {
		return err
	}
	defer stop()

	return server.Run(ctx, addr)
}

// startBackground starts the ingestion workers and, when configured, the
// maintenance scheduler. The returned stop cancels both.
func startBackground(parent context.Context) (context.Context, func(), error) {
	ctx, cancel := context.WithCancel(parent)
	if err := startWorkers(ctx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("starting ingestion: %w", err)
	}
	if scheduler == nil {
		return ctx, cancel, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("scheduler stopped: %v", err)
		}
	}()
	return ctx, func() {
		cancel()
		if err := scheduler.Stop(); err != nil {
			logger.Warn("scheduler stop error: %v", err)
		}
		<-done
	}, nil
}

func currentSettings() (*domain.AppSettings, error) {
	if settingsService == nil {
		defaults := domain.DefaultAppSettings()
		return &defaults, nil
	}
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings, nil
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return notConfigured("scheduler")
	}
	report, err := scheduler.RunNow(cmd.Context(), domain.TaskIDReconcile)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	if !report.Success {
		return fmt.Errorf("reconcile failed: %s", report.Error)
	}
	cmd.Printf("Reconciled %d item(s).\n", report.ItemsProcessed)
	return nil
}
