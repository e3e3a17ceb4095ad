package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"policy-manual-ai/internal/indexer"
)

var importBatchSize int

var importCmd = &cobra.Command{
	Use:   "import [run-log]",
	Short: "Import a run log into SQLite, Qdrant and Bleve",
	Long: `Imports the given run log, or the most recent one in the chunks
directory. Passages already imported are skipped, so re-running is safe.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		return importPath(cmd, path)
	},
}

func init() {
	importCmd.Flags().IntVar(&importBatchSize, "batch-size", indexer.DefaultBatchSize, "passages embedded and stored per batch")
	rootCmd.AddCommand(importCmd)
}

// importPath imports path, or the latest run log when path is empty.
func importPath(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = st.Close()
	}()

	importer := indexer.NewImporter(st.runs, st.passages, st.embedder, st.vectors, st.lexical, cfg.QdrantCollection).
		WithVectorSize(cfg.QdrantVectorSize).
		WithBatchSize(importBatchSize)

	var stats *indexer.ImportStats
	if path == "" {
		slog.Info("Importing latest run log", "dir", cfg.ChunksDir())
		stats, err = importer.ImportLatest(ctx, cfg.ChunksDir())
	} else {
		slog.Info("Importing run log", "path", path)
		stats, err = importer.ImportFile(ctx, path)
	}
	if errors.Is(err, indexer.ErrIncompleteImport) {
		if perr := printJSON(cmd, stats); perr != nil {
			slog.Warn("failed to print import stats", "error", perr)
		}
		return err
	}
	if err != nil {
		return err
	}
	return printJSON(cmd, stats)
}
