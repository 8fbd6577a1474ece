package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/archiva-labs/doclens/internal/core/domain"
	"github.com/archiva-labs/doclens/internal/core/ports/driven"
	"github.com/archiva-labs/doclens/internal/core/ports/driving"
	"github.com/archiva-labs/doclens/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryEngine = (*QueryService)(nil)

// QueryService answers semantic search and aggregation requests. It
// shares the stage runner (and therefore its cache and retry policy)
// for query embeddings, and memoizes whole result sets under the
// search TTL.
type QueryService struct {
	cfg         domain.Config
	stages      *StageRunner
	docStore    driven.DocumentStore
	vectorIndex driven.VectorIndex
	cache       driven.ResultCache
}

// NewQueryService creates the query engine.
func NewQueryService(
	cfg domain.Config,
	stages *StageRunner,
	docStore driven.DocumentStore,
	vectorIndex driven.VectorIndex,
	cache driven.ResultCache,
) *QueryService {
	return &QueryService{
		cfg:         cfg,
		stages:      stages,
		docStore:    docStore,
		vectorIndex: vectorIndex,
		cache:       cache,
	}
}

// SemanticSearch embeds the query, retrieves candidates from the
// vector index and returns results at or above the threshold, ordered
// by descending similarity with ties broken by ascending document ID.
func (s *QueryService) SemanticSearch(
	ctx context.Context, query string, limit int, threshold float64,
) ([]domain.SearchResult, error) {
	logger.Section("Semantic Search")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.SearchResult{}, nil
	}

	if limit <= 0 || limit > s.cfg.MaxResults {
		limit = s.cfg.MaxResults
	}
	if threshold < 0 {
		threshold = s.cfg.SimilarityThreshold
	}

	cacheKey := searchFingerprint(s.cfg.EmbeddingModel, query, limit, threshold)
	if cached, ok := s.cache.Get(ctx, cacheKey); ok {
		if results, ok := cached.([]domain.SearchResult); ok {
			logger.Debug("Cache hit for search")
			return results, nil
		}
	}

	embedding, err := s.stages.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.vectorIndex.Query(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	logger.Debug("Vector index: %d candidates", len(hits))

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < threshold {
			continue
		}

		doc, err := s.docStore.GetDocument(ctx, hit.DocumentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Document removed after indexing; skip.
				continue
			}
			return nil, fmt.Errorf("get document %s: %w", hit.DocumentID, err)
		}

		results = append(results, domain.SearchResult{
			Document: *doc,
			Score:    hit.Score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
	for i := range results {
		results[i].Rank = i + 1
	}

	logger.Info("Search: %d results at or above %.2f", len(results), threshold)
	s.cache.Put(ctx, cacheKey, results, s.cfg.SearchTTL)
	return results, nil
}

// Aggregate groups persisted documents by the requested dimensions and
// computes the requested metrics. A pure read-side reduction with no
// side effects.
func (s *QueryService) Aggregate(ctx context.Context, opts domain.AggregateOptions) (*domain.Aggregation, error) {
	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	agg := &domain.Aggregation{}

	for _, dim := range opts.GroupBy {
		switch dim {
		case domain.GroupByType:
			agg.ByType = groupByType(docs)
		case domain.GroupByPeriod:
			agg.ByPeriod = groupByPeriod(docs)
		case domain.GroupByEntity:
			agg.ByEntity = groupByEntity(docs)
		default:
			return nil, fmt.Errorf("%w: unknown group dimension %q", domain.ErrInvalidConfig, dim)
		}
	}

	for _, metric := range opts.Metrics {
		switch metric {
		case domain.MetricCount:
			agg.Metrics.Count = len(docs)
		case domain.MetricTotalAmount:
			agg.Metrics.TotalAmount, agg.Metrics.AvgAmount = amountMetrics(docs)
		case domain.MetricAvgConfidence:
			agg.Metrics.AvgConfidence = avgConfidence(docs)
		default:
			return nil, fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidConfig, metric)
		}
	}

	return agg, nil
}

// Timeline buckets persisted documents by upload period, with a type
// breakdown and the union of mentioned entities per period.
func (s *QueryService) Timeline(ctx context.Context, bucket domain.TimelineBucket) ([]domain.TimelineEntry, error) {
	if !bucket.IsValid() {
		return nil, fmt.Errorf("%w: unknown timeline bucket %q", domain.ErrInvalidConfig, bucket)
	}

	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	groups := make(map[string][]domain.Document)
	for _, doc := range docs {
		key := periodLabel(doc, bucket)
		groups[key] = append(groups[key], doc)
	}

	periods := make([]string, 0, len(groups))
	for period := range groups {
		periods = append(periods, period)
	}
	sort.Strings(periods)

	entries := make([]domain.TimelineEntry, 0, len(periods))
	for _, period := range periods {
		group := groups[period]
		entry := domain.TimelineEntry{
			Period: period,
			Count:  len(group),
			ByType: groupByType(group),
		}

		var people, orgs, locations []string
		for _, doc := range group {
			if doc.Entities == nil {
				continue
			}
			people = append(people, doc.Entities.People...)
			orgs = append(orgs, doc.Entities.Organizations...)
			locations = append(locations, doc.Entities.Locations...)
		}
		entry.People = dedupe(people)
		entry.Organizations = dedupe(orgs)
		entry.Locations = dedupe(locations)

		entries = append(entries, entry)
	}

	return entries, nil
}

// searchFingerprint builds the cache key for a search result set.
func searchFingerprint(model, query string, limit int, threshold float64) string {
	content := fmt.Sprintf("%s|%d|%g", query, limit, threshold)
	return "search:" + Fingerprint(domain.StageEmbed, model, content)
}

// groupByType counts documents per classification category.
func groupByType(docs []domain.Document) map[domain.DocumentType]int {
	counts := make(map[domain.DocumentType]int)
	for _, doc := range docs {
		if doc.Type == "" {
			continue
		}
		counts[doc.Type]++
	}
	return counts
}

// groupByPeriod counts documents per upload month.
func groupByPeriod(docs []domain.Document) map[string]int {
	counts := make(map[string]int)
	for _, doc := range docs {
		counts[doc.UploadedAt.Format("2006-01")]++
	}
	return counts
}

// groupByEntity counts occurrences per entity value within each slot.
func groupByEntity(docs []domain.Document) map[string]map[string]int {
	counts := map[string]map[string]int{
		"people":        {},
		"organizations": {},
		"locations":     {},
	}
	for _, doc := range docs {
		if doc.Entities == nil {
			continue
		}
		for _, v := range doc.Entities.People {
			counts["people"][v]++
		}
		for _, v := range doc.Entities.Organizations {
			counts["organizations"][v]++
		}
		for _, v := range doc.Entities.Locations {
			counts["locations"][v]++
		}
	}
	return counts
}

// amountMetrics sums the monetary amounts extracted from documents.
// Amounts are stored verbatim in Italian formatting ("1.000,00");
// values that fail to parse are skipped.
func amountMetrics(docs []domain.Document) (total, avg float64) {
	count := 0
	for _, doc := range docs {
		if doc.Entities == nil {
			continue
		}
		for _, raw := range doc.Entities.Amounts {
			value, err := parseAmount(raw)
			if err != nil {
				continue
			}
			total += value
			count++
		}
	}
	if count > 0 {
		avg = total / float64(count)
	}
	return total, avg
}

// parseAmount converts an Italian-formatted amount to a float.
func parseAmount(raw string) (float64, error) {
	normalised := strings.ReplaceAll(raw, ".", "")
	normalised = strings.ReplaceAll(normalised, ",", ".")
	return strconv.ParseFloat(normalised, 64)
}

// avgConfidence averages classification confidence over classified
// documents.
func avgConfidence(docs []domain.Document) float64 {
	var sum float64
	count := 0
	for _, doc := range docs {
		if doc.Classification == nil {
			continue
		}
		sum += doc.Classification.Confidence
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// periodLabel formats a document's upload time into the bucket label.
func periodLabel(doc domain.Document, bucket domain.TimelineBucket) string {
	t := doc.UploadedAt
	switch bucket {
	case domain.TimelineByDay:
		return t.Format("2006-01-02")
	case domain.TimelineByWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case domain.TimelineByYear:
		return t.Format("2006")
	default:
		return t.Format("2006-01")
	}
}
