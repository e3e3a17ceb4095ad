package main

import (
	"context"
	_ "embed"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"policy-manual-ai/internal/config"
	"policy-manual-ai/internal/http"
	"policy-manual-ai/internal/indexer"
	"policy-manual-ai/internal/keyword"
	"policy-manual-ai/internal/llm"
	"policy-manual-ai/internal/rag"
	"policy-manual-ai/internal/service"
	"policy-manual-ai/internal/session"
	"policy-manual-ai/internal/storage"
	"policy-manual-ai/internal/vectorstore"
)

// General API information
//
// This API answers questions about the USCIS Policy Manual from an indexed
// copy of its chapters, citing the chapters it drew on.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Policy Manual AI API
//   version: 1.0.0
// schemes:
//   - http
// consumes:
//   - application/json
// produces:
//   - application/json

//go:embed static/index.html
var indexHTML string

const sessionPruneInterval = 10 * time.Minute

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	runRepo := storage.NewRunRepo(db)
	passageRepo := storage.NewPassageRepo(db)

	lexical, err := keyword.NewBleveIndex(cfg.BlevePath)
	if err != nil {
		log.Fatalf("Failed to open keyword index: %v", err)
	}
	defer func() {
		_ = lexical.Close()
	}()

	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}
	defer func() {
		_ = vectorStore.Close()
	}()

	// A missing collection does not block start; questions are answered
	// with "no information" until an import runs.
	if exists, err := vectorStore.CollectionExists(ctx, cfg.QdrantCollection); err != nil {
		slog.Warn("Qdrant unavailable; retrieval will return no results", "error", err)
	} else if !exists {
		slog.Warn("Qdrant collection missing; run an import first", "collection", cfg.QdrantCollection)
	} else {
		slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection)
	}

	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize, cfg.LLMTimeout)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMModelName, cfg.LLMTimeout)

	index := rag.NewIndex(embedder, vectorStore, lexical, passageRepo, cfg.QdrantCollection)
	ragEngine := rag.NewEngine(
		rag.NewRetriever(index),
		llmClient,
		rag.NewFormatter(cfg.CitationMode, rag.HostFromBaseURL(cfg.SourceBaseURL)),
	)
	slog.Info("RAG engine initialized", "model", cfg.LLMModelName, "citation_mode", cfg.CitationMode)

	importer := indexer.NewImporter(runRepo, passageRepo, embedder, vectorStore, lexical, cfg.QdrantCollection).
		WithVectorSize(cfg.QdrantVectorSize)

	sessions := session.NewStore()
	go pruneSessions(ctx, sessions, cfg.SessionIdleTimeout)

	router := http.NewRouter(&http.Deps{
		ChatService:    service.NewChatService(ragEngine),
		Sessions:       sessions,
		VectorStore:    vectorStore,
		ModelChecker:   llm.NewModelChecker(cfg.LLMBaseURL),
		ModelName:      cfg.LLMModelName,
		CollectionName: cfg.QdrantCollection,
		Runs:           runRepo,
		Importer:       importer,
		DataDir:        cfg.ChunksDir(),
		IndexHTML:      indexHTML,
	})

	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("API server shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting API server", "addr", server.Addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		log.Fatalf("API server failed to start: %v", err)
	}
	slog.Info("API server stopped")
}

// pruneSessions drops idle conversation sessions until ctx ends.
func pruneSessions(ctx context.Context, sessions *session.Store, maxIdle time.Duration) {
	ticker := time.NewTicker(sessionPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Prune(maxIdle); n > 0 {
				slog.Debug("Pruned idle sessions", "removed", n, "remaining", sessions.Len())
			}
		}
	}
}
