package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

var (
	uploadWait     bool
	regenerateWait bool
	statusJSON     bool
	listStatus     string
	listLimit      int
	listJSON       bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload documents into the knowledge base",
	Long: `Stores each file and runs it through extraction, chunking, embedding and
indexing. The command stays up until every file has finished processing.

With --wait the live stage of each document is shown and the command exits
non-zero if any document failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show a document's ingestion status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents, newest first",
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a document, its chunks, vectors and stored bytes",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate <id>",
	Short: "Re-run the pipeline from the stored bytes",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegenerate,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise documents, vectors and queries",
	RunE:  runStats,
}

func init() {
	uploadCmd.Flags().BoolVarP(&uploadWait, "wait", "w", false, "show progress and fail if any document fails")
	regenerateCmd.Flags().BoolVarP(&regenerateWait, "wait", "w", false, "show progress and fail if the document fails")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	listCmd.Flags().StringVar(&listStatus, "status", "", "only documents in this status")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "maximum number of documents (0 = all)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(regenerateCmd)
	rootCmd.AddCommand(statsCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return notConfigured("ingestion")
	}
	ctx := cmd.Context()
	if err := startWorkers(ctx); err != nil {
		return fmt.Errorf("starting ingestion: %w", err)
	}

	var items []waitItem
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		receipt, err := ingestionService.Upload(ctx, domain.UploadRequest{
			Data:     data,
			FileName: filepath.Base(path),
		})
		if err != nil {
			return fmt.Errorf("uploading %s: %w", path, err)
		}
		cmd.Printf("%s  %s  %s\n", receipt.DocumentID, receipt.Status, filepath.Base(path))
		items = append(items, waitItem{DocumentID: receipt.DocumentID, Label: filepath.Base(path)})
	}

	return waitForDocuments(cmd, items, uploadWait)
}

func runRegenerate(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return notConfigured("ingestion")
	}
	ctx := cmd.Context()
	if err := startWorkers(ctx); err != nil {
		return fmt.Errorf("starting ingestion: %w", err)
	}
	if err := ingestionService.Regenerate(ctx, args[0]); err != nil {
		return fmt.Errorf("regenerate failed: %w", err)
	}
	cmd.Printf("%s  %s\n", args[0], domain.ReceiptStatusProcessing)
	return waitForDocuments(cmd, []waitItem{{DocumentID: args[0]}}, regenerateWait)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return notConfigured("ingestion")
	}
	st, err := ingestionService.Status(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}
	if statusJSON {
		return printJSON(cmd, st)
	}
	printStatus(cmd, st)
	return nil
}

func printStatus(cmd *cobra.Command, st *driving.DocumentStatus) {
	cmd.Printf("Document: %s\n", st.DocumentID)
	cmd.Printf("Status:   %s\n", st.Status)
	if st.Status == domain.StatusFailed {
		cmd.Printf("Stage:    %s\n", st.FailedStage)
		cmd.Printf("Error:    %s\n", st.Error)
	}
	if st.InFlight {
		cmd.Println("An ingestion attempt is in progress.")
	}
}

func runList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return notConfigured("document")
	}
	if listLimit < 0 {
		return fmt.Errorf("%w: --limit must not be negative", domain.ErrInvalidInput)
	}
	docs, err := documentService.List(cmd.Context(), domain.ListOptions{
		Status: domain.Status(listStatus),
		Limit:  listLimit,
	})
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	if listJSON {
		if docs == nil {
			docs = []domain.Document{}
		}
		return printJSON(cmd, docs)
	}
	if len(docs) == 0 {
		cmd.Println("No documents.")
		return nil
	}
	for i := range docs {
		d := &docs[i]
		cmd.Printf("%s  %-10s  %6d  %s\n", d.ID, d.Status, d.MetadataInt(domain.MetaChunkCount), d.FileName)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return notConfigured("document")
	}
	details, err := documentService.GetDetails(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("show failed: %w", err)
	}

	d := &details.Document
	cmd.Printf("ID:        %s\n", d.ID)
	cmd.Printf("File:      %s (%s, %d bytes)\n", d.FileName, d.FileType, d.Size)
	cmd.Printf("Status:    %s\n", d.Status)
	if d.Status == domain.StatusFailed {
		cmd.Printf("Failed:    %s: %s\n", d.FailedStage, d.Error)
	}
	cmd.Printf("SHA-256:   %s\n", d.ContentHash)
	cmd.Printf("Uploaded:  %s\n", d.UploadedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("Chunks:    %d\n", len(details.Chunks))
	for i := range details.Chunks {
		c := &details.Chunks[i]
		cmd.Printf("  #%-4d [%d-%d] %s\n", c.Index, c.StartOffset, c.EndOffset, preview(c.Content, 72))
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return notConfigured("ingestion")
	}
	if err := ingestionService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	cmd.Printf("Deleted %s\n", args[0])
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return notConfigured("document")
	}
	stats, err := documentService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}

	cmd.Printf("Documents:       %d\n", stats.TotalDocuments)
	for _, s := range domain.AllStatuses() {
		if n := stats.ByStatus[s]; n > 0 {
			cmd.Printf("  %-13s  %d\n", s, n)
		}
	}
	cmd.Printf("Vectors:         %d\n", stats.TotalVectors)
	cmd.Printf("Queries:         %d\n", stats.TotalQueries)
	cmd.Printf("Avg response:    %.1f ms\n", stats.AvgResponseMS)
	cmd.Printf("Embedding model: %s\n", stats.EmbeddingModel)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// preview flattens text onto one line and cuts it to n runes.
func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return text
}
