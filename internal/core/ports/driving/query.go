package driving

import (
	"context"

	"github.com/archiva-labs/doclens/internal/core/domain"
)

// QueryEngine answers semantic search and aggregation requests against
// persisted documents and the vector index.
type QueryEngine interface {
	// SemanticSearch embeds the query text, retrieves up to limit
	// candidates from the vector index and returns those at or above
	// threshold, ordered by descending similarity with ties broken by
	// ascending document ID.
	SemanticSearch(ctx context.Context, query string, limit int, threshold float64) ([]domain.SearchResult, error)

	// Aggregate groups persisted documents by the requested dimensions
	// and computes the requested metrics. Pure read-side reduction.
	Aggregate(ctx context.Context, opts domain.AggregateOptions) (*domain.Aggregation, error)

	// Timeline buckets persisted documents by upload period.
	Timeline(ctx context.Context, bucket domain.TimelineBucket) ([]domain.TimelineEntry, error)
}
