package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

var (
	searchTopK int
	searchDocs []string
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base",
	Long: `Embeds the query and returns the most similar passages, best first.
Passages below the configured similarity threshold are dropped.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var batchSearchCmd = &cobra.Command{
	Use:   "batch-search <query>...",
	Short: "Run several queries at once",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBatchSearch,
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, batchSearchCmd} {
		c.Flags().IntVarP(&searchTopK, "top-k", "n", 0, "number of passages (0 = configured default)")
		c.Flags().StringSliceVar(&searchDocs, "doc", nil, "restrict to these document IDs")
		c.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	}
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(batchSearchCmd)
}

func searchOptions() (domain.SearchOptions, error) {
	if searchTopK < 0 {
		return domain.SearchOptions{}, fmt.Errorf("%w: --top-k must not be negative", domain.ErrInvalidInput)
	}
	return domain.SearchOptions{TopK: searchTopK, DocumentIDs: searchDocs}, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return notConfigured("retrieval")
	}
	opts, err := searchOptions()
	if err != nil {
		return err
	}

	results, err := retrievalService.Search(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if searchJSON {
		if results == nil {
			results = []domain.SearchResult{}
		}
		return printJSON(cmd, results)
	}
	outputSearchResults(cmd, results)
	return nil
}

func runBatchSearch(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return notConfigured("retrieval")
	}
	opts, err := searchOptions()
	if err != nil {
		return err
	}

	out, err := retrievalService.BatchSearch(cmd.Context(), args, opts)
	if err != nil {
		return fmt.Errorf("batch search failed: %w", err)
	}
	for i := range out {
		if out[i] == nil {
			out[i] = []domain.SearchResult{}
		}
	}
	if searchJSON {
		return printJSON(cmd, out)
	}
	for i, results := range out {
		cmd.Printf("== %s\n", args[i])
		outputSearchResults(cmd, results)
	}
	return nil
}

func outputSearchResults(cmd *cobra.Command, results []domain.SearchResult) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		cmd.Println()
		return
	}
	for i := range results {
		r := &results[i]
		cmd.Printf("  [%d] %s #%d (%.3f)\n", r.Rank, r.FileName, r.ChunkIndex, r.Similarity)
		cmd.Printf("      %s\n", preview(r.Text, 160))
		cmd.Println()
	}
}
