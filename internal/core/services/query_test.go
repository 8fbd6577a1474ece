package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archiva-labs/doclens/internal/core/domain"
	"github.com/archiva-labs/doclens/internal/core/ports/driven"
)

type queryFixture struct {
	query    *QueryService
	provider *fakeProvider
	store    *fakeStore
	index    *fakeIndex
	cache    *fakeCache
}

func newQueryFixture(t *testing.T) *queryFixture {
	t.Helper()

	provider := &fakeProvider{}
	store := newFakeStore()
	index := newFakeIndex()
	cache := newFakeCache()

	runner := NewStageRunner(stageTestConfig(), provider, cache)
	runner.sleep = func(context.Context, time.Duration) error { return nil }

	return &queryFixture{
		query:    NewQueryService(stageTestConfig(), runner, store, index, cache),
		provider: provider,
		store:    store,
		index:    index,
		cache:    cache,
	}
}

func (f *queryFixture) seed(t *testing.T, doc domain.Document) {
	t.Helper()
	require.NoError(t, f.store.SaveDocument(context.Background(), &doc))
}

func TestQueryService_SemanticSearch_FiltersBelowThreshold(t *testing.T) {
	f := newQueryFixture(t)
	f.seed(t, domain.Document{ID: "doc-a"})
	f.seed(t, domain.Document{ID: "doc-b"})
	f.seed(t, domain.Document{ID: "doc-c"})
	f.index.hits = []driven.VectorHit{
		{DocumentID: "doc-b", Score: 0.95},
		{DocumentID: "doc-a", Score: 0.82},
		{DocumentID: "doc-c", Score: 0.41},
	}

	results, err := f.query.SemanticSearch(context.Background(), "decreto di pagamento", 10, 0.7)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc-b", results[0].Document.ID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "doc-a", results[1].Document.ID)
	assert.Equal(t, 2, results[1].Rank)
}

func TestQueryService_SemanticSearch_TiesBreakByDocumentID(t *testing.T) {
	f := newQueryFixture(t)
	f.seed(t, domain.Document{ID: "doc-b"})
	f.seed(t, domain.Document{ID: "doc-a"})
	f.index.hits = []driven.VectorHit{
		{DocumentID: "doc-b", Score: 0.9},
		{DocumentID: "doc-a", Score: 0.9},
	}

	results, err := f.query.SemanticSearch(context.Background(), "decreto", 10, 0.7)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc-a", results[0].Document.ID)
	assert.Equal(t, "doc-b", results[1].Document.ID)
}

func TestQueryService_SemanticSearch_EmptyQueryShortCircuits(t *testing.T) {
	f := newQueryFixture(t)

	results, err := f.query.SemanticSearch(context.Background(), "   ", 10, 0.7)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, f.provider.embeddings())
}

func TestQueryService_SemanticSearch_CachesResultSet(t *testing.T) {
	f := newQueryFixture(t)
	f.seed(t, domain.Document{ID: "doc-a"})
	f.index.hits = []driven.VectorHit{{DocumentID: "doc-a", Score: 0.9}}

	ctx := context.Background()
	first, err := f.query.SemanticSearch(ctx, "decreto", 10, 0.7)
	require.NoError(t, err)
	second, err := f.query.SemanticSearch(ctx, "decreto", 10, 0.7)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.index.queries)
	assert.Equal(t, 1, f.provider.embeddings())
}

func TestQueryService_SemanticSearch_DifferentThresholdMissesCache(t *testing.T) {
	f := newQueryFixture(t)
	f.seed(t, domain.Document{ID: "doc-a"})
	f.index.hits = []driven.VectorHit{{DocumentID: "doc-a", Score: 0.9}}

	ctx := context.Background()
	_, err := f.query.SemanticSearch(ctx, "decreto", 10, 0.7)
	require.NoError(t, err)
	_, err = f.query.SemanticSearch(ctx, "decreto", 10, 0.8)
	require.NoError(t, err)

	assert.Equal(t, 2, f.index.queries)
}

func TestQueryService_SemanticSearch_SkipsDeletedDocuments(t *testing.T) {
	f := newQueryFixture(t)
	f.seed(t, domain.Document{ID: "doc-a"})
	f.index.hits = []driven.VectorHit{
		{DocumentID: "ghost", Score: 0.95},
		{DocumentID: "doc-a", Score: 0.9},
	}

	results, err := f.query.SemanticSearch(context.Background(), "decreto", 10, 0.7)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-a", results[0].Document.ID)
	assert.Equal(t, 1, results[0].Rank)
}

func TestQueryService_SemanticSearch_NegativeThresholdUsesDefault(t *testing.T) {
	f := newQueryFixture(t)
	f.seed(t, domain.Document{ID: "doc-a"})
	f.seed(t, domain.Document{ID: "doc-b"})
	f.index.hits = []driven.VectorHit{
		{DocumentID: "doc-a", Score: 0.75},
		{DocumentID: "doc-b", Score: 0.5},
	}

	// Default similarity threshold is 0.7; only doc-a clears it.
	results, err := f.query.SemanticSearch(context.Background(), "decreto", 10, -1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-a", results[0].Document.ID)
}

func TestQueryService_Aggregate_GroupsByType(t *testing.T) {
	f := newQueryFixture(t)
	f.seed(t, domain.Document{ID: "d1", Type: domain.TypeDecreto})
	f.seed(t, domain.Document{ID: "d2", Type: domain.TypeDecreto})
	f.seed(t, domain.Document{ID: "d3", Type: domain.TypeSentenza})
	f.seed(t, domain.Document{ID: "d4"})

	agg, err := f.query.Aggregate(context.Background(), domain.AggregateOptions{
		GroupBy: []domain.GroupDimension{domain.GroupByType},
		Metrics: []domain.MetricKind{domain.MetricCount},
	})
	require.NoError(t, err)

	assert.Equal(t, map[domain.DocumentType]int{
		domain.TypeDecreto:  2,
		domain.TypeSentenza: 1,
	}, agg.ByType)
	assert.Equal(t, 4, agg.Metrics.Count)
}

func TestQueryService_Aggregate_SumsItalianFormattedAmounts(t *testing.T) {
	f := newQueryFixture(t)
	f.seed(t, domain.Document{
		ID:       "d1",
		Entities: &domain.EntitySet{Amounts: []string{"1.000,00", "500,00"}},
	})
	f.seed(t, domain.Document{
		ID:       "d2",
		Entities: &domain.EntitySet{Amounts: []string{"250,50", "not an amount"}},
	})

	agg, err := f.query.Aggregate(context.Background(), domain.AggregateOptions{
		Metrics: []domain.MetricKind{domain.MetricTotalAmount},
	})
	require.NoError(t, err)

	assert.InDelta(t, 1750.50, agg.Metrics.TotalAmount, 1e-9)
	assert.InDelta(t, 583.50, agg.Metrics.AvgAmount, 1e-9)
}

func TestQueryService_Aggregate_AveragesConfidence(t *testing.T) {
	f := newQueryFixture(t)
	f.seed(t, domain.Document{
		ID:             "d1",
		Classification: &domain.Classification{Category: domain.TypeDecreto, Confidence: 0.9},
	})
	f.seed(t, domain.Document{
		ID:             "d2",
		Classification: &domain.Classification{Category: domain.TypeSentenza, Confidence: 0.7},
	})
	f.seed(t, domain.Document{ID: "d3"})

	agg, err := f.query.Aggregate(context.Background(), domain.AggregateOptions{
		Metrics: []domain.MetricKind{domain.MetricAvgConfidence},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, agg.Metrics.AvgConfidence, 1e-9)
}

func TestQueryService_Aggregate_GroupsByEntity(t *testing.T) {
	f := newQueryFixture(t)
	f.seed(t, domain.Document{
		ID: "d1",
		Entities: &domain.EntitySet{
			People:        []string{"Mario Rossi"},
			Organizations: []string{"Tribunale di Milano"},
		},
	})
	f.seed(t, domain.Document{
		ID:       "d2",
		Entities: &domain.EntitySet{People: []string{"Mario Rossi", "Anna Bianchi"}},
	})

	agg, err := f.query.Aggregate(context.Background(), domain.AggregateOptions{
		GroupBy: []domain.GroupDimension{domain.GroupByEntity},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, agg.ByEntity["people"]["Mario Rossi"])
	assert.Equal(t, 1, agg.ByEntity["people"]["Anna Bianchi"])
	assert.Equal(t, 1, agg.ByEntity["organizations"]["Tribunale di Milano"])
}

func TestQueryService_Aggregate_RejectsUnknownDimension(t *testing.T) {
	f := newQueryFixture(t)

	_, err := f.query.Aggregate(context.Background(), domain.AggregateOptions{
		GroupBy: []domain.GroupDimension{"colour"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestQueryService_Aggregate_RejectsUnknownMetric(t *testing.T) {
	f := newQueryFixture(t)

	_, err := f.query.Aggregate(context.Background(), domain.AggregateOptions{
		Metrics: []domain.MetricKind{"median"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestQueryService_Timeline_BucketsByMonth(t *testing.T) {
	f := newQueryFixture(t)
	jan := time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2023, 2, 5, 0, 0, 0, 0, time.UTC)

	f.seed(t, domain.Document{
		ID: "d1", Type: domain.TypeDecreto, UploadedAt: jan,
		Entities: &domain.EntitySet{People: []string{"Mario Rossi"}},
	})
	f.seed(t, domain.Document{
		ID: "d2", Type: domain.TypeSentenza, UploadedAt: jan,
		Entities: &domain.EntitySet{People: []string{"Mario Rossi", "Anna Bianchi"}},
	})
	f.seed(t, domain.Document{ID: "d3", Type: domain.TypeDecreto, UploadedAt: feb})

	entries, err := f.query.Timeline(context.Background(), domain.TimelineByMonth)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "2023-01", entries[0].Period)
	assert.Equal(t, 2, entries[0].Count)
	assert.Equal(t, map[domain.DocumentType]int{
		domain.TypeDecreto:  1,
		domain.TypeSentenza: 1,
	}, entries[0].ByType)
	assert.Equal(t, []string{"Anna Bianchi", "Mario Rossi"}, entries[0].People)

	assert.Equal(t, "2023-02", entries[1].Period)
	assert.Equal(t, 1, entries[1].Count)
}

func TestQueryService_Timeline_BucketsByWeek(t *testing.T) {
	f := newQueryFixture(t)
	f.seed(t, domain.Document{
		ID: "d1", UploadedAt: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
	})

	entries, err := f.query.Timeline(context.Background(), domain.TimelineByWeek)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2023-W01", entries[0].Period)
}

func TestQueryService_Timeline_RejectsUnknownBucket(t *testing.T) {
	f := newQueryFixture(t)

	_, err := f.query.Timeline(context.Background(), "quarter")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
