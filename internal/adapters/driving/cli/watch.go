package cli

import (
	"errors"
	"sync"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbase/internal/adapters/driving/watcher"
	"github.com/custodia-labs/kbase/internal/core/domain"
)

var watchDebounce = watcher.DefaultDebounce

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Upload files dropped into an inbox directory",
	Long: `Watches a directory and uploads every file created or rewritten in it,
once the file has been quiet for the debounce period. Hidden files are
ignored. Without an argument the inbox from settings (watch.inbox_dir) is
used. Runs until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "quiet period before a file is uploaded")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return notConfigured("ingestion")
	}

	dir := ""
	if len(args) == 1 {
		dir = args[0]
	} else {
		settings, err := currentSettings()
		if err != nil {
			return err
		}
		dir = settings.Watch.InboxDir
	}
	if dir == "" {
		return errors.New("no directory given and watch.inbox_dir is not set")
	}

	var outMu sync.Mutex
	w, err := watcher.New(dir, ingestionService,
		watcher.WithDebounce(watchDebounce),
		watcher.OnUpload(func(path string, receipt *domain.UploadReceipt, err error) {
			outMu.Lock()
			defer outMu.Unlock()
			if err != nil {
				cmd.PrintErrf("%s: %v\n", path, err)
				return
			}
			cmd.Printf("%s  %s  %s\n", receipt.DocumentID, receipt.Status, path)
		}),
	)
	if err != nil {
		return err
	}

	ctx, stop, err := startBackground(cmd.Context())
	if err != nil {
		return err
	}
	defer stop()

	cmd.Printf("Watching %s (ctrl+c to stop)\n", dir)
	return w.Run(ctx)
}
