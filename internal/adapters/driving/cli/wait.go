package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/progress"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

type waitItem = progress.Item

// waitForDocuments blocks until every item is terminal. This process owns
// the workers, so it cannot exit earlier. When report is set the outcome is
// printed, on a terminal with a live progress view, and any failure makes
// the command fail.
func waitForDocuments(cmd *cobra.Command, items []waitItem, report bool) error {
	ctx := cmd.Context()
	if !report {
		for _, it := range items {
			if _, err := ingestionService.Wait(ctx, it.DocumentID); err != nil {
				return fmt.Errorf("waiting for %s: %w", it.DocumentID, err)
			}
		}
		return nil
	}

	var statuses []*driving.DocumentStatus
	if isTerminal(cmd.OutOrStdout()) {
		var err error
		statuses, err = progress.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), ingestionService, items)
		if err != nil {
			return err
		}
		// The view reports terminal statuses; a parked attempt may still follow.
		for _, it := range items {
			if _, err := ingestionService.Wait(ctx, it.DocumentID); err != nil {
				return fmt.Errorf("waiting for %s: %w", it.DocumentID, err)
			}
		}
	} else {
		for _, it := range items {
			st, err := ingestionService.Wait(ctx, it.DocumentID)
			if err != nil {
				return fmt.Errorf("waiting for %s: %w", it.DocumentID, err)
			}
			statuses = append(statuses, st)
			printOutcome(cmd, it, st)
		}
	}

	failed := 0
	for _, st := range statuses {
		if st == nil || st.Status == domain.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d document(s) failed", failed, len(items))
	}
	return nil
}

func printOutcome(cmd *cobra.Command, it waitItem, st *driving.DocumentStatus) {
	label := it.Label
	if label == "" {
		label = it.DocumentID
	}
	if st.Status == domain.StatusFailed {
		cmd.Printf("%s  failed at %s: %s\n", label, st.FailedStage, st.Error)
		return
	}
	d := domain.Document{Metadata: st.Metadata}
	cmd.Printf("%s  %s  %d chunks\n", label, st.Status, d.MetadataInt(domain.MetaChunkCount))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
