package driven

import "context"

// VectorIndex stores document embeddings for nearest-neighbour search.
// Upserts are per-document exclusive: the orchestrator's one-run-per-
// document invariant guarantees no two concurrent upserts share an ID.
type VectorIndex interface {
	// Upsert inserts or replaces the vector for a document.
	// Returns *domain.DimensionMismatchError when the vector length
	// does not match the configured dimension.
	Upsert(ctx context.Context, documentID string, embedding []float32) error

	// Query finds at most k nearest neighbours to the query vector,
	// ordered best-first. Removed documents are never returned.
	Query(ctx context.Context, embedding []float32, k int) ([]VectorHit, error)

	// Remove deletes the vector for a document.
	Remove(ctx context.Context, documentID string) error

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// DocumentID is the matched document.
	DocumentID string

	// Score is the similarity score. Cosine scores lie in [0,1];
	// distance metrics report negated distance so higher is always
	// better.
	Score float64
}
