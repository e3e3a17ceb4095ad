package rag

import (
	"context"

	"policy-manual-ai/internal/contextutil"
	"policy-manual-ai/internal/manual"
)

// Retriever issues the hybrid query for a question.
type Retriever struct {
	index          HybridIndex
	semanticWeight float64
	limit          int
}

// NewRetriever creates a Retriever with the default blend weight and limit.
func NewRetriever(index HybridIndex) *Retriever {
	return &Retriever{
		index:          index,
		semanticWeight: DefaultSemanticWeight,
		limit:          MaxCandidates,
	}
}

// WithSemanticWeight overrides the blend weight. Values outside [0,1] are ignored.
func (r *Retriever) WithSemanticWeight(w float64) *Retriever {
	if w >= 0 && w <= 1 {
		r.semanticWeight = w
	}
	return r
}

// Search returns at most MaxCandidates chunks for question. Index failures
// yield an empty, non-nil slice along with a transient error; callers treat
// the empty result as "no grounding available".
func (r *Retriever) Search(ctx context.Context, question string) ([]RetrievedChunk, error) {
	logger := contextutil.LoggerFromContext(ctx)

	q := NewHybridQuery(question)
	q.SemanticWeight = r.semanticWeight
	q.Limit = r.limit

	chunks, err := r.index.Query(ctx, q)
	if err != nil {
		logger.ErrorContext(ctx, "hybrid search failed", "error", err)
		return []RetrievedChunk{}, manual.Transient("hybrid search", err)
	}
	if chunks == nil {
		chunks = []RetrievedChunk{}
	}
	if len(chunks) > MaxCandidates {
		chunks = chunks[:MaxCandidates]
	}

	logger.InfoContext(ctx, "hybrid search completed", "chunks", len(chunks))
	return chunks, nil
}
