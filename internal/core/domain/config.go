package domain

import (
	"fmt"
	"time"
)

// DistanceMetric selects how vector similarity is computed.
type DistanceMetric string

// Supported distance metrics.
const (
	// MetricCosine is cosine similarity (higher is closer, [0,1]).
	MetricCosine DistanceMetric = "cosine"

	// MetricL2 is Euclidean distance (lower is closer, unbounded).
	MetricL2 DistanceMetric = "l2"

	// MetricDot is the inner product (higher is closer, unbounded).
	MetricDot DistanceMetric = "dot"
)

// IsValid returns true if the metric is recognised.
func (m DistanceMetric) IsValid() bool {
	switch m {
	case MetricCosine, MetricL2, MetricDot:
		return true
	default:
		return false
	}
}

// Config is the immutable configuration consumed by the pipeline core.
// It is built once at startup and passed into each component at
// construction; there is no ambient global lookup.
type Config struct {
	// ChunkSize is the maximum chunk length in bytes.
	ChunkSize int

	// ChunkOverlap is the fixed overlap between consecutive chunks.
	// Must be smaller than ChunkSize.
	ChunkOverlap int

	// EmbeddingTTL is the cache lifetime for embedding results.
	EmbeddingTTL time.Duration

	// AnalysisTTL is the cache lifetime for classification, entity and
	// summary results.
	AnalysisTTL time.Duration

	// SearchTTL is the cache lifetime for search result sets.
	SearchTTL time.Duration

	// CacheCapacity is the maximum number of cached entries before
	// oldest-insertion-first eviction kicks in.
	CacheCapacity int

	// RetryAttempts is the maximum number of provider calls per stage.
	RetryAttempts int

	// RetryDelay is the base interval for exponential backoff.
	RetryDelay time.Duration

	// ClassificationThreshold flags classification results below this
	// confidence as low-confidence.
	ClassificationThreshold float64

	// SimilarityThreshold filters search results below this score.
	SimilarityThreshold float64

	// MaxResults caps the number of search results returned.
	MaxResults int

	// VectorDimension is the embedding dimension, fixed per deployment.
	VectorDimension int

	// Metric is the vector index distance metric.
	Metric DistanceMetric

	// IndexLists is the number of coarse cells in the vector index.
	IndexLists int

	// IndexProbes is the number of cells probed per query. Higher
	// values trade latency for recall.
	IndexProbes int

	// MaxTokens bounds the token budget per provider call.
	MaxTokens int

	// Temperature is the sampling temperature for generation stages.
	Temperature float64

	// Model is the language model identifier. It is part of every
	// cache fingerprint so results never survive a model change.
	Model string

	// EmbeddingModel is the embedding model identifier.
	EmbeddingModel string

	// SupportedFormats lists accepted file extensions, lower case with
	// leading dot (".pdf", ".txt").
	SupportedFormats []string

	// MaxFileSizeBytes rejects larger uploads before extraction.
	MaxFileSizeBytes int64

	// StageTimeout bounds each external call (extraction, provider,
	// index I/O).
	StageTimeout time.Duration

	// RunTimeout bounds a whole analysis run. When exceeded the run is
	// cancelled and the document transitions to ERROR.
	RunTimeout time.Duration
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:               1000,
		ChunkOverlap:            200,
		EmbeddingTTL:            24 * time.Hour,
		AnalysisTTL:             24 * time.Hour,
		SearchTTL:               15 * time.Minute,
		CacheCapacity:           10000,
		RetryAttempts:           3,
		RetryDelay:              time.Second,
		ClassificationThreshold: 0.6,
		SimilarityThreshold:     0.7,
		MaxResults:              50,
		VectorDimension:         1536,
		Metric:                  MetricCosine,
		IndexLists:              100,
		IndexProbes:             4,
		MaxTokens:               2000,
		Temperature:             0,
		Model:                   "gpt-4",
		EmbeddingModel:          "text-embedding-3-small",
		SupportedFormats:        []string{".pdf", ".txt", ".md"},
		MaxFileSizeBytes:        10 << 20,
		StageTimeout:            60 * time.Second,
		RunTimeout:              10 * time.Minute,
	}
}

// Validate checks the configuration for programmer/operator errors.
// Violations are reported immediately and never retried.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be in [0, chunk size %d)", ErrInvalidConfig, c.ChunkOverlap, c.ChunkSize)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("%w: retry attempts must be at least 1", ErrInvalidConfig)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay must not be negative", ErrInvalidConfig)
	}
	if c.ClassificationThreshold < 0 || c.ClassificationThreshold > 1 {
		return fmt.Errorf("%w: classification threshold must be in [0,1]", ErrInvalidConfig)
	}
	if c.VectorDimension <= 0 {
		return fmt.Errorf("%w: vector dimension must be positive", ErrInvalidConfig)
	}
	if !c.Metric.IsValid() {
		return fmt.Errorf("%w: unknown distance metric %q", ErrInvalidConfig, c.Metric)
	}
	if c.IndexLists <= 0 {
		return fmt.Errorf("%w: index lists must be positive", ErrInvalidConfig)
	}
	if c.IndexProbes <= 0 || c.IndexProbes > c.IndexLists {
		return fmt.Errorf("%w: index probes must be in [1, lists]", ErrInvalidConfig)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max tokens must be positive", ErrInvalidConfig)
	}
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("%w: cache capacity must be positive", ErrInvalidConfig)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("%w: max results must be positive", ErrInvalidConfig)
	}
	return nil
}

// TTLFor returns the cache lifetime for a stage result.
func (c Config) TTLFor(stage StageKind) time.Duration {
	if stage == StageEmbed {
		return c.EmbeddingTTL
	}
	return c.AnalysisTTL
}

// SupportsFormat reports whether a file extension is accepted.
func (c Config) SupportsFormat(ext string) bool {
	for _, f := range c.SupportedFormats {
		if f == ext {
			return true
		}
	}
	return false
}
