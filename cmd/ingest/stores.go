package main

import (
	"database/sql"
	"errors"
	"fmt"

	"policy-manual-ai/internal/config"
	"policy-manual-ai/internal/keyword"
	"policy-manual-ai/internal/llm"
	"policy-manual-ai/internal/storage"
	"policy-manual-ai/internal/vectorstore"
)

// stores are the backing services shared by import, search and status.
type stores struct {
	db       *sql.DB
	runs     *storage.RunRepo
	passages *storage.PassageRepo
	lexical  *keyword.BleveIndex
	vectors  *vectorstore.QdrantStore
	embedder *llm.EmbeddingsClient
}

func openStores(cfg *config.Config) (*stores, error) {
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	lexical, err := keyword.NewBleveIndex(cfg.BlevePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open keyword index: %w", err)
	}

	vectors, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		_ = lexical.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &stores{
		db:       db,
		runs:     storage.NewRunRepo(db),
		passages: storage.NewPassageRepo(db),
		lexical:  lexical,
		vectors:  vectors,
		embedder: llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize, cfg.LLMTimeout),
	}, nil
}

func (s *stores) Close() error {
	return errors.Join(s.vectors.Close(), s.lexical.Close(), s.db.Close())
}
