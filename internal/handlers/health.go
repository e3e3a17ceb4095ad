package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"policy-manual-ai/internal/contextutil"
	"policy-manual-ai/internal/storage"
	"policy-manual-ai/internal/vectorstore"
)

// ModelChecker reports whether the model service has a model available.
type ModelChecker interface {
	HasModel(ctx context.Context, modelName string) (bool, error)
}

// RunLookup returns the run queries are answered from.
type RunLookup interface {
	Latest(ctx context.Context) (*storage.RunRecord, error)
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	vectorStore        vectorstore.VectorStore
	models             ModelChecker
	runs               RunLookup
	modelName          string
	collectionName     string
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. models may be nil, in which
// case the generation model is not checked.
func NewHealthHandler(vectorStore vectorstore.VectorStore, models ModelChecker, modelName, collectionName string) *HealthHandler {
	return &HealthHandler{
		vectorStore:        vectorStore,
		models:             models,
		modelName:          modelName,
		collectionName:     collectionName,
		healthCheckTimeout: 5 * time.Second,
	}
}

// WithRuns enables the index check: with no imported run every question is
// answered with "no information", so the service reports degraded.
func (h *HealthHandler) WithRuns(runs RunLookup) *HealthHandler {
	h.runs = runs
	return h
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Overall health status: "healthy", "degraded", or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if status is degraded or unhealthy)
	Issues []string `json:"issues,omitempty"`

	// Run ID of the imported run answers are drawn from
	RunID string `json:"run_id,omitempty"`
}

// ServeHTTP handles GET /api/health.
//
// The vector store is the critical dependency: without it the service is
// unhealthy (503). A missing generation model only degrades it, since
// questions still get a well-formed error answer.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string
	status := "healthy"
	httpStatus := http.StatusOK

	if h.checkVectorStore(checkCtx, logger) {
		checks["vector_store"] = "ok"
	} else {
		checks["vector_store"] = "error"
		issues = append(issues, "vector_store_unavailable")
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	if h.models != nil {
		if h.checkModel(checkCtx, logger) {
			checks["llm"] = "ok"
		} else {
			checks["llm"] = "error"
			issues = append(issues, "llm_model_unavailable")
			if status == "healthy" {
				status = "degraded"
			}
		}
	}

	var runID string
	if h.runs != nil {
		if id, ok := h.checkIndex(checkCtx, logger); ok {
			checks["index"] = "ok"
			runID = id
		} else {
			checks["index"] = "empty"
			issues = append(issues, "no_imported_run")
			if status == "healthy" {
				status = "degraded"
			}
		}
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Issues:    issues,
		RunID:     runID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.ErrorContext(ctx, "failed to encode health response", "error", err)
	}
}

// checkVectorStore checks if the vector store is accessible.
func (h *HealthHandler) checkVectorStore(ctx context.Context, logger *slog.Logger) bool {
	exists, err := h.vectorStore.CollectionExists(ctx, h.collectionName)
	if err != nil {
		logger.WarnContext(ctx, "vector store health check failed", "error", err)
		return false
	}
	if !exists {
		logger.WarnContext(ctx, "vector store collection does not exist", "collection", h.collectionName)
		return false
	}
	return true
}

func (h *HealthHandler) checkModel(ctx context.Context, logger *slog.Logger) bool {
	ok, err := h.models.HasModel(ctx, h.modelName)
	if err != nil {
		logger.WarnContext(ctx, "model health check failed", "error", err)
		return false
	}
	if !ok {
		logger.WarnContext(ctx, "generation model not available", "model", h.modelName)
	}
	return ok
}

func (h *HealthHandler) checkIndex(ctx context.Context, logger *slog.Logger) (string, bool) {
	run, err := h.runs.Latest(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.WarnContext(ctx, "run registry health check failed", "error", err)
		}
		return "", false
	}
	return run.ID, true
}
