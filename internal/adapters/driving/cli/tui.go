package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbase/internal/adapters/driving/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Search the knowledge base and manage documents interactively.

Controls:
  enter      Search / expand result
  ↑/k, ↓/j   Navigate
  /          New query
  tab        Switch between search and documents
  r g d      Reload, regenerate, delete (documents view)
  q          Quit (outside the query box); ctrl+c always quits`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().IntVarP(&searchTopK, "top-k", "n", 0, "number of passages (0 = configured default)")
	tuiCmd.Flags().StringSliceVar(&searchDocs, "doc", nil, "restrict search to these document IDs")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	opts, err := searchOptions()
	if err != nil {
		return err
	}
	app, err := tui.NewApp(&tui.Ports{
		Retrieval: retrievalService,
		Documents: documentService,
		Ingestion: ingestionService,
	})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	// Regenerate runs on this process's workers.
	ctx, stop, err := startBackground(cmd.Context())
	if err != nil {
		return err
	}
	defer stop()

	if err := app.WithContext(ctx).WithSearchOptions(opts).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
