package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_hybrid_index.go -package=mocks policy-manual-ai/internal/rag HybridIndex

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"policy-manual-ai/internal/contextutil"
	"policy-manual-ai/internal/keyword"
	"policy-manual-ai/internal/llm"
	"policy-manual-ai/internal/storage"
	"policy-manual-ai/internal/vectorstore"
)

// overfetch is how many candidates each half of the index returns per
// requested result before fusion.
const overfetch = 3

// HybridIndex answers combined lexical and semantic queries.
type HybridIndex interface {
	Query(ctx context.Context, q HybridQuery) ([]RetrievedChunk, error)
}

// LexicalSearcher is the keyword half of the hybrid index.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, fields []string, limit int) ([]keyword.Result, error)
}

var _ HybridIndex = (*Index)(nil)

// Index fuses Qdrant similarity and Bleve keyword scores over the passages
// registered in SQLite. Only current passages are returned: for each page,
// those of the newest imported run that scraped it.
type Index struct {
	embedder   llm.Embedder
	vectors    vectorstore.VectorStore
	lexical    LexicalSearcher
	passages   storage.PassageStore
	collection string
}

// NewIndex creates a new hybrid Index.
func NewIndex(
	embedder llm.Embedder,
	vectors vectorstore.VectorStore,
	lexical LexicalSearcher,
	passages storage.PassageStore,
	collection string,
) *Index {
	return &Index{
		embedder:   embedder,
		vectors:    vectors,
		lexical:    lexical,
		passages:   passages,
		collection: collection,
	}
}

type candidate struct {
	semantic    float64
	hasSemantic bool
	lexical     float64
}

// Query runs both halves of the index and blends their scores as
// weight*semantic + (1-weight)*lexical, with lexical scores normalized by
// the best lexical hit that is still current. Results are ordered by fused
// score.
func (ix *Index) Query(ctx context.Context, q HybridQuery) ([]RetrievedChunk, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if q.Limit <= 0 {
		return []RetrievedChunk{}, nil
	}

	embeddings, err := ix.embedder.EmbedTexts(ctx, []string{q.QueryText})
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned for question")
	}

	fetch := q.Limit * overfetch

	semantic, err := ix.vectors.Search(ctx, ix.collection, embeddings[0], fetch, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector store: %w", err)
	}

	lexical, err := ix.lexical.Search(ctx, q.QueryText, q.TextFields, fetch)
	if err != nil && !errors.Is(err, keyword.ErrEmptyQuery) {
		return nil, fmt.Errorf("failed to search keyword index: %w", err)
	}

	candidates := make(map[string]*candidate, len(semantic)+len(lexical))
	order := make([]string, 0, len(semantic)+len(lexical))
	get := func(id string) *candidate {
		c, ok := candidates[id]
		if !ok {
			c = &candidate{}
			candidates[id] = c
			order = append(order, id)
		}
		return c
	}

	for _, r := range semantic {
		c := get(r.PointID)
		c.semantic = float64(r.Score)
		c.hasSemantic = true
	}

	for _, r := range lexical {
		get(r.ID)
	}

	records, err := ix.passages.GetCurrentByIDs(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to load passages: %w", err)
	}

	// Superseded hits must not set the scale for current ones.
	var maxLexical float64
	for _, r := range lexical {
		if records[r.ID] != nil && r.Score > maxLexical {
			maxLexical = r.Score
		}
	}
	if maxLexical > 0 {
		for _, r := range lexical {
			if records[r.ID] != nil {
				candidates[r.ID].lexical = r.Score / maxLexical
			}
		}
	}

	weight := q.SemanticWeight
	chunks := make([]RetrievedChunk, 0, len(order))
	for _, id := range order {
		rec, ok := records[id]
		if !ok {
			logger.DebugContext(ctx, "dropping candidate that is not a current passage", "passage_id", id)
			continue
		}

		c := candidates[id]
		sem := clamp01(c.semantic)
		chunk := NewRetrievedChunk(rec.Passage())
		chunk.SemanticScore = sem
		chunk.LexicalScore = c.lexical
		if q.wants(SignalScore) {
			chunk.RelevanceScore = Score(weight*sem + (1-weight)*c.lexical)
		}
		if c.hasSemantic {
			if q.wants(SignalCertainty) {
				chunk.Certainty = Score((1 + c.semantic) / 2)
			}
			if q.wants(SignalDistance) {
				chunk.Distance = Score(1 - c.semantic)
			}
		}
		chunks = append(chunks, chunk)
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].RelevanceScore == chunks[j].RelevanceScore {
			return chunks[i].PassageID < chunks[j].PassageID
		}
		return chunks[i].RelevanceScore > chunks[j].RelevanceScore
	})
	if len(chunks) > q.Limit {
		chunks = chunks[:q.Limit]
	}

	logger.DebugContext(ctx, "hybrid query completed",
		"semantic_hits", len(semantic),
		"lexical_hits", len(lexical),
		"results", len(chunks),
	)
	return chunks, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
