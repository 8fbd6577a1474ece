package domain

// SearchResult represents a single semantic search hit.
// Results are produced per-query and never persisted.
type SearchResult struct {
	// Document is the matched document.
	Document Document

	// Score is the similarity score. For the cosine metric it lies in
	// [0,1]; for distance metrics it is an unbounded distance.
	Score float64

	// Rank is the 1-based position in the result list.
	Rank int
}

// GroupDimension selects a grouping axis for aggregation.
type GroupDimension string

// Available grouping dimensions.
const (
	// GroupByType groups documents by classification category.
	GroupByType GroupDimension = "type"

	// GroupByPeriod groups documents by upload month (YYYY-MM).
	GroupByPeriod GroupDimension = "period"

	// GroupByEntity groups occurrence counts by extracted entity.
	GroupByEntity GroupDimension = "entity"
)

// MetricKind selects a computed metric for aggregation.
type MetricKind string

// Available metrics.
const (
	// MetricCount is the number of documents.
	MetricCount MetricKind = "count"

	// MetricTotalAmount sums the monetary amounts extracted from
	// documents.
	MetricTotalAmount MetricKind = "total_amount"

	// MetricAvgConfidence averages classification confidence.
	MetricAvgConfidence MetricKind = "avg_confidence"
)

// AggregateOptions configures an aggregation request.
type AggregateOptions struct {
	// GroupBy lists the requested grouping dimensions.
	GroupBy []GroupDimension

	// Metrics lists the requested computed metrics.
	Metrics []MetricKind
}

// Aggregation is the read-side reduction over persisted documents.
type Aggregation struct {
	// ByType maps document type to document count.
	ByType map[DocumentType]int

	// ByPeriod maps upload period (YYYY-MM) to document count.
	ByPeriod map[string]int

	// ByEntity maps entity slot name to per-value occurrence counts.
	ByEntity map[string]map[string]int

	// Metrics holds the computed metric values.
	Metrics AggregateMetrics
}

// AggregateMetrics holds scalar metric results.
type AggregateMetrics struct {
	// Count is the number of documents considered.
	Count int

	// TotalAmount is the sum of all extracted monetary amounts.
	TotalAmount float64

	// AvgAmount is the mean extracted amount.
	AvgAmount float64

	// AvgConfidence is the mean classification confidence over
	// classified documents.
	AvgConfidence float64
}

// TimelineBucket selects the period width for timeline generation.
type TimelineBucket string

// Available timeline buckets.
const (
	TimelineByDay   TimelineBucket = "day"
	TimelineByWeek  TimelineBucket = "week"
	TimelineByMonth TimelineBucket = "month"
	TimelineByYear  TimelineBucket = "year"
)

// IsValid returns true if the bucket is recognised.
func (b TimelineBucket) IsValid() bool {
	switch b {
	case TimelineByDay, TimelineByWeek, TimelineByMonth, TimelineByYear:
		return true
	default:
		return false
	}
}

// TimelineEntry summarises the documents uploaded in one period.
type TimelineEntry struct {
	// Period is the bucket label, e.g. "2023-01".
	Period string

	// Count is the number of documents in the period.
	Count int

	// ByType maps document type to count within the period.
	ByType map[DocumentType]int

	// People is the union of people mentioned in the period.
	People []string

	// Organizations is the union of organizations mentioned.
	Organizations []string

	// Locations is the union of locations mentioned.
	Locations []string
}
