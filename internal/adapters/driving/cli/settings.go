package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change ingestion, retrieval, embedding and storage settings.

Settings live in config.toml inside the config directory. Any key can be
overridden with an environment variable, e.g. KBASE_RETRIEVAL_TOP_K=8.`,
	Annotations: map[string]string{annotationLoad: loadSettingsOnly},
	RunE:        runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one setting by its dotted key, for example:

  kbase settings set retrieval.similarity_threshold 0.75
  kbase settings set ingestion.pipeline chunker,min_length
  kbase settings set vector_index.backend qdrant`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Interactively choose the embedding provider, model and API key.`,
	RunE:  runSettingsEmbedding,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	values := settingValues(settings)
	sections := make(map[string][]string)
	var order []string
	for key := range values {
		section, _, _ := strings.Cut(key, ".")
		if _, ok := sections[section]; !ok {
			order = append(order, section)
		}
		sections[section] = append(sections[section], key)
	}
	sort.Strings(order)

	cmd.Println("Current Settings")
	cmd.Println("================")
	for _, section := range order {
		cmd.Println()
		cmd.Printf("[%s]\n", section)
		keys := sections[section]
		sort.Strings(keys)
		for _, key := range keys {
			_, name, _ := strings.Cut(key, ".")
			cmd.Printf("  %s = %s\n", name, values[key])
		}
	}
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'kbase settings embedding' to fix the embedding configuration.")
	} else {
		cmd.Println("Configuration is valid.")
	}
	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	value, ok := settingValues(settings)[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, args[0])
	}
	cmd.Println(value)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}

	if err := settingsService.SetValue(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	cmd.Printf("%s updated.\n", args[0])
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}

	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	provider := providers[idx-1]

	defaultModel := domain.DefaultEmbeddingModels()[provider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if provider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetEmbeddingProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	cmd.Printf("Embedding provider configured: %s (%s)\n", provider.Description(), model)
	cmd.Println("Existing documents keep their old vectors; run 'kbase regenerate <id>' to re-embed them.")
	return nil
}

// settingValues renders every settable key. Secrets are masked.
func settingValues(s *domain.AppSettings) map[string]string {
	itoa := strconv.Itoa
	btoa := strconv.FormatBool
	secs := func(d time.Duration) string { return strconv.Itoa(int(d / time.Second)) }
	mins := func(d time.Duration) string { return strconv.Itoa(int(d / time.Minute)) }

	return map[string]string{
		"ingestion.chunk_size":            itoa(s.Ingestion.ChunkSize),
		"ingestion.chunk_overlap":         itoa(s.Ingestion.ChunkOverlap),
		"ingestion.min_chunk_length":      itoa(s.Ingestion.MinChunkLength),
		"ingestion.pipeline":              strings.Join(s.Ingestion.Pipeline, ","),
		"ingestion.max_file_size":         strconv.FormatInt(s.Ingestion.MaxFileSize, 10),
		"ingestion.workers":               itoa(s.Ingestion.Workers),
		"ingestion.queue_size":            itoa(s.Ingestion.QueueSize),
		"ingestion.batch_size":            itoa(s.Ingestion.BatchSize),
		"ingestion.embed_timeout_seconds": secs(s.Ingestion.EmbedTimeout),
		"ingestion.index_timeout_seconds": secs(s.Ingestion.IndexTimeout),

		"retrieval.top_k":                itoa(s.Retrieval.TopK),
		"retrieval.similarity_threshold": strconv.FormatFloat(s.Retrieval.SimilarityThreshold, 'f', -1, 64),

		"embedding.provider":            s.Embedding.Provider.String(),
		"embedding.model":               s.Embedding.Model,
		"embedding.base_url":            s.Embedding.BaseURL,
		"embedding.api_key":             maskAPIKey(s.Embedding.APIKey),
		"embedding.dimensions":          itoa(s.Embedding.Dimensions),
		"embedding.requests_per_second": strconv.FormatFloat(s.Embedding.RequestsPerSecond, 'f', -1, 64),
		"embedding.cache_redis_addr":    s.Embedding.CacheRedisAddr,
		"embedding.cache_ttl_minutes":   mins(s.Embedding.CacheTTL),

		"vector_index.backend":        string(s.VectorIndex.Backend),
		"vector_index.collection":     s.VectorIndex.Collection,
		"vector_index.qdrant_host":    s.VectorIndex.QdrantHost,
		"vector_index.qdrant_port":    itoa(s.VectorIndex.QdrantPort),
		"vector_index.qdrant_api_key": maskAPIKey(s.VectorIndex.QdrantAPIKey),
		"vector_index.qdrant_tls":     btoa(s.VectorIndex.QdrantTLS),

		"storage.blob_backend":         string(s.Storage.BlobBackend),
		"storage.gcs_bucket":           s.Storage.GCSBucket,
		"storage.gcs_credentials_file": s.Storage.GCSCredentialsFile,

		"reconcile.enabled":          btoa(s.Reconcile.Enabled),
		"reconcile.interval_minutes": mins(s.Reconcile.Interval),

		"server.http_addr": s.Server.HTTPAddr,
		"watch.inbox_dir":  s.Watch.InboxDir,
	}
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when in is a terminal.
func readPassword(in io.Reader, fallback *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(fallback)
}

func maskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
