package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks policy-manual-ai/internal/vectorstore VectorStore

import "context"

// Point represents a vector point with its payload.
type Point struct {
	ID      string
	Vec     []float32
	Payload map[string]any
}

// SearchResult represents one hit of a similarity search.
// Score is the cosine similarity of the point to the query.
type SearchResult struct {
	PointID string
	Score   float32
	Payload map[string]any
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a similarity search. Every filter entry must match the
	// payload value exactly.
	Search(ctx context.Context, collection string, query []float32, k int, filters map[string]string) ([]SearchResult, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error

	// CollectionExists reports whether the collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// EnsureCollection creates the collection with cosine vectors of
	// vectorSize when it does not exist yet.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error
}
