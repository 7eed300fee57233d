package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/docidx/internal/retriever"
)

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Run one indexing cycle over pending documents",
	Long: `Run one indexing cycle: fetch unindexed ERP attachments, extract and
chunk their text, embed each chunk, and store the vectors.

Examples:
  docidx index
  docidx index --batch-size 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		batchSize, _ := cmd.Flags().GetInt("batch-size")
		if batchSize > 0 {
			a.setBatchSize(batchSize)
		}

		printStep("Indexing pending documents...")
		stats, err := a.indexer.RunCycle(ctx)
		if err != nil {
			return err
		}

		if stats.Pending == 0 {
			printSuccess("Nothing to index")
			return nil
		}
		printSuccess("Indexed %d of %d documents (%d embeddings, %d failed) in %s",
			stats.Succeeded, stats.Pending, stats.Embeddings, stats.Failed,
			stats.Duration.Round(time.Millisecond))
		return nil
	},
}

// --- watch ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously index pending documents at an interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		printStep("Watching for pending documents every %s (Ctrl-C to stop)", a.cfg.Indexing.WatchInterval)
		a.indexer.Watch(ctx, a.cfg.Indexing.WatchInterval)
		printSuccess("Stopped")
		return nil
	},
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantically search indexed documents",
	Long: `Semantically search indexed documents.

Examples:
  docidx search "warranty policy for pumps"
  docidx search --max-results 3 --threshold 0.6 "maintenance schedule"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		threshold, _ := cmd.Flags().GetFloat64("threshold")
		maxResults, _ := cmd.Flags().GetInt("max-results")
		asJSON, _ := cmd.Flags().GetBool("json")

		results, err := a.retriever.Search(ctx, args[0], retriever.Options{
			Threshold:  threshold,
			MaxResults: maxResults,
		})
		if err != nil {
			return err
		}

		if asJSON {
			return json.NewEncoder(os.Stdout).Encode(results)
		}

		if len(results) == 0 {
			printSuccess("No matches")
			return nil
		}
		for i, r := range results {
			fmt.Printf("%s %s\n", colorize(colorBold, fmt.Sprintf("%d.", i+1)),
				colorize(colorCyan, fmt.Sprintf("document %d chunk %d (similarity %.3f)", r.DocumentID, r.ChunkIndex, r.Similarity)))
			fmt.Printf("   %s\n\n", r.Content)
		}
		return nil
	},
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.vectors.Stats(ctx)
		if err != nil {
			return err
		}

		printStatus("Embeddings", "%d", stats.TotalEmbeddings)
		printStatus("Documents", "%d", stats.UniqueDocuments)
		printStatus("Avg chunk length", "%.0f chars", stats.AvgChunkLength)
		if !stats.Oldest.IsZero() {
			printStatus("Oldest", "%s", stats.Oldest.Format(time.RFC3339))
			printStatus("Newest", "%s", stats.Newest.Format(time.RFC3339))
		}
		return nil
	},
}

// --- purge ---

var purgeCmd = &cobra.Command{
	Use:   "purge <document-id>",
	Short: "Delete a document's embeddings and queue it for re-indexing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid document id %q", args[0])
		}

		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		deleted, err := a.Purge(ctx, id)
		if err != nil {
			return err
		}

		printSuccess("Purged %d embeddings for document %d; it will be re-indexed on the next cycle", deleted, id)
		return nil
	},
}

func init() {
	indexCmd.Flags().Int("batch-size", 0, "maximum documents to process this cycle")
	searchCmd.Flags().Float64("threshold", 0, "minimum similarity score (default 0.7)")
	searchCmd.Flags().Int("max-results", 0, "maximum number of results (default 10)")
	searchCmd.Flags().Bool("json", false, "print raw JSON results")
}
