package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

// StatusReport summarizes what the stores hold.
type StatusReport struct {
	Runs       []RunStatus `json:"runs"`
	Collection string      `json:"collection"`
	Points     int         `json:"points"`
	VectorSize int         `json:"vector_size"`
	Qdrant     string      `json:"qdrant_status"`
	Keyword    uint64      `json:"keyword_documents"`
}

// RunStatus is one registered ingestion run.
type RunStatus struct {
	ID         string     `json:"id"`
	LogPath    string     `json:"log_path"`
	Passages   int        `json:"passages"`
	ImportedAt *time.Time `json:"imported_at,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registered runs and index sizes",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = st.Close()
	}()

	report := StatusReport{Collection: cfg.QdrantCollection, Runs: []RunStatus{}}

	runs, err := st.runs.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		n, err := st.passages.CountByRun(ctx, r.ID)
		if err != nil {
			return err
		}
		report.Runs = append(report.Runs, RunStatus{ID: r.ID, LogPath: r.LogPath, Passages: n, ImportedAt: r.ImportedAt})
	}

	if report.Keyword, err = st.lexical.DocCount(); err != nil {
		return err
	}

	// Qdrant being down still leaves the rest of the report useful.
	info, err := st.vectors.GetCollectionInfo(ctx, cfg.QdrantCollection)
	if err != nil {
		slog.Warn("Qdrant collection unavailable", "collection", cfg.QdrantCollection, "error", err)
		report.Qdrant = "unavailable"
	} else {
		report.Points = info.PointsCount
		report.VectorSize = info.VectorSize
		report.Qdrant = info.Status
	}

	return printJSON(cmd, report)
}
