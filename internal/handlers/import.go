package handlers

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"policy-manual-ai/internal/contextutil"
	"policy-manual-ai/internal/indexer"
)

// LogImporter loads the newest run log in a directory into the stores.
type LogImporter interface {
	ImportLatest(ctx context.Context, dir string) (*indexer.ImportStats, error)
}

// ImportHandler triggers a background import of the latest scrape run.
type ImportHandler struct {
	importer LogImporter
	dataDir  string
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewImportHandler creates a new ImportHandler reading run logs from dataDir.
func NewImportHandler(importer LogImporter, dataDir string) *ImportHandler {
	return &ImportHandler{
		importer: importer,
		dataDir:  dataDir,
	}
}

// ImportResponse represents the response from the import endpoint.
type ImportResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ServeHTTP handles POST /api/import. Only one import runs at a time; a
// request made while one is in flight gets 409.
func (h *ImportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if !h.running.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "Import already in progress")
		return
	}

	logger.InfoContext(ctx, "import triggered via API", "dir", h.dataDir)

	// The import outlives the request.
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.running.Store(false)

		importCtx := contextutil.WithLogger(context.Background(), logger)
		stats, err := h.importer.ImportLatest(importCtx, h.dataDir)
		if err != nil {
			logger.ErrorContext(importCtx, "import failed", "error", err)
			return
		}
		logger.InfoContext(importCtx, "import completed",
			"run_id", stats.RunID,
			"imported", stats.Imported,
			"duplicates", stats.Duplicates,
			"failed", stats.Failed,
		)
	}()

	writeJSON(ctx, w, http.StatusAccepted, ImportResponse{
		Message: "Import started. Check server logs for progress.",
		Status:  "accepted",
	})
}

// Wait blocks until any in-flight import finishes.
func (h *ImportHandler) Wait() {
	h.wg.Wait()
}
