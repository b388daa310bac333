// Package cli provides the kbase command-line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Command annotations controlling how much of the stack is loaded.
const (
	annotationLoad   = "kbase/load"
	loadNone         = "none"
	loadSettingsOnly = "settings"
)

// Options carries the global flags to the service loader.
type Options struct {
	ConfigDir string
	DataDir   string

	// SettingsOnly asks the loader for the settings service alone.
	SettingsOnly bool
}

// Lifecycle starts and stops the background ingestion workers.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
}

// Services holds the driving ports used by the commands. Any field may be
// nil when the loader was asked for less.
type Services struct {
	Ingestion driving.IngestionOrchestrator
	Retrieval driving.RetrievalService
	Documents driving.DocumentService
	Settings  driving.SettingsService
	Scheduler driving.Scheduler
	Workers   Lifecycle

	// Close releases databases and network clients.
	Close func() error
}

// Loader builds the services for one invocation.
type Loader func(ctx context.Context, opts Options) (*Services, error)

var (
	version = "dev"

	configDir string
	dataDir   string
	verbose   bool

	loader  Loader
	release func() error

	ingestionService driving.IngestionOrchestrator
	retrievalService driving.RetrievalService
	documentService  driving.DocumentService
	settingsService  driving.SettingsService
	scheduler        driving.Scheduler
	workers          Lifecycle
)

var rootCmd = &cobra.Command{
	Use:   "kbase",
	Short: "Knowledge base ingestion and retrieval",
	Long: `kbase ingests documents (PDF, DOCX, HTML, Markdown, CSV, XLSX, text),
splits them into overlapping chunks, embeds them and answers similarity
queries over the resulting vectors.

Run "kbase serve" for the HTTP API, "kbase mcp" for AI assistants, or use
the commands below directly.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadServices,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.kbase)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.kbase/data)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetVersion sets the version reported by "kbase version".
func SetVersion(v string) {
	version = v
}

// SetLoader installs the function that builds services before a command runs.
func SetLoader(l Loader) {
	loader = l
}

// SetServices installs already-built services, bypassing the loader.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	ingestionService = s.Ingestion
	retrievalService = s.Retrieval
	documentService = s.Documents
	settingsService = s.Settings
	scheduler = s.Scheduler
	workers = s.Workers
	release = s.Close
}

// Execute runs the root command and releases whatever it loaded.
func Execute(ctx context.Context) error {
	defer releaseServices()
	return rootCmd.ExecuteContext(ctx)
}

func loadServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	mode := loadMode(cmd)
	if loader == nil || mode == loadNone {
		return nil
	}

	svc, err := loader(cmd.Context(), Options{
		ConfigDir:    configDir,
		DataDir:      dataDir,
		SettingsOnly: mode == loadSettingsOnly,
	})
	if err != nil {
		return err
	}
	SetServices(svc)
	return nil
}

// loadMode returns the nearest load annotation on cmd or its parents.
func loadMode(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		if mode, ok := c.Annotations[annotationLoad]; ok {
			return mode
		}
	}
	return ""
}

func releaseServices() {
	if workers != nil {
		if err := workers.Stop(); err != nil {
			logger.Warn("stopping ingestion workers: %v", err)
		}
	}
	if release != nil {
		if err := release(); err != nil {
			logger.Warn("closing services: %v", err)
		}
		release = nil
	}
}

// startWorkers launches the ingestion pool for commands that upload.
func startWorkers(ctx context.Context) error {
	if workers == nil {
		return nil
	}
	return workers.Start(ctx)
}

func notConfigured(name string) error {
	return errors.New(name + " service not configured")
}
