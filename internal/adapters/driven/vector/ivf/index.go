// Package ivf provides an in-memory inverted-file (IVF-flat) vector
// index for approximate nearest-neighbour search.
package ivf

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/archiva-labs/doclens/internal/core/domain"
	"github.com/archiva-labs/doclens/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Config holds the index tuning parameters. Lists is the number of
// coarse cells; Probes is the number of cells visited per query and
// trades recall for latency.
type Config struct {
	// Dimension is the fixed embedding dimension.
	Dimension int

	// Metric is the distance metric.
	Metric domain.DistanceMetric

	// Lists is the number of coarse cells.
	Lists int

	// Probes is the number of cells probed per query.
	Probes int
}

// Index is an in-memory IVF-flat index. Vectors are assigned to the
// nearest coarse centroid on insert; queries scan only the probed
// cells. The first Lists inserts seed the centroids.
type Index struct {
	mu        sync.RWMutex
	cfg       Config
	centroids [][]float32
	cells     [][]string
	vectors   map[string][]float32
	cellOf    map[string]int
	closed    bool
}

// New creates an IVF index. Configuration errors surface immediately
// and are never retried.
func New(cfg Config) (*Index, error) {
	if cfg.Dimension <= 0 {
		return nil, errors.New("ivf: dimension must be positive")
	}
	if !cfg.Metric.IsValid() {
		return nil, errors.New("ivf: unknown distance metric")
	}
	if cfg.Lists <= 0 {
		return nil, errors.New("ivf: lists must be positive")
	}
	if cfg.Probes <= 0 || cfg.Probes > cfg.Lists {
		return nil, errors.New("ivf: probes must be in [1, lists]")
	}

	return &Index{
		cfg:     cfg,
		vectors: make(map[string][]float32),
		cellOf:  make(map[string]int),
	}, nil
}

// Upsert inserts or replaces the vector for a document. The embedding
// dimension is enforced at write time.
func (idx *Index) Upsert(_ context.Context, documentID string, embedding []float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errors.New("ivf: index is closed")
	}
	if len(embedding) != idx.cfg.Dimension {
		return &domain.DimensionMismatchError{Want: idx.cfg.Dimension, Got: len(embedding)}
	}

	if _, exists := idx.vectors[documentID]; exists {
		idx.detach(documentID)
	}

	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	idx.vectors[documentID] = vec

	var cell int
	if len(idx.centroids) < idx.cfg.Lists {
		// Seed a new cell with this vector as its centroid.
		centroid := make([]float32, len(vec))
		copy(centroid, vec)
		idx.centroids = append(idx.centroids, centroid)
		idx.cells = append(idx.cells, nil)
		cell = len(idx.centroids) - 1
	} else {
		cell = idx.nearestCell(vec)
	}

	idx.cells[cell] = append(idx.cells[cell], documentID)
	idx.cellOf[documentID] = cell
	return nil
}

// Query returns at most k nearest neighbours from the probed cells,
// best-first, ties broken by ascending document ID.
func (idx *Index) Query(_ context.Context, embedding []float32, k int) ([]driven.VectorHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, errors.New("ivf: index is closed")
	}
	if len(embedding) != idx.cfg.Dimension {
		return nil, &domain.DimensionMismatchError{Want: idx.cfg.Dimension, Got: len(embedding)}
	}
	if k <= 0 || len(idx.vectors) == 0 {
		return nil, nil
	}

	hits := make([]driven.VectorHit, 0, k)
	for _, cell := range idx.probeCells(embedding) {
		for _, id := range idx.cells[cell] {
			hits = append(hits, driven.VectorHit{
				DocumentID: id,
				Score:      idx.score(embedding, idx.vectors[id]),
			})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Remove deletes the vector for a document. Removing an absent
// document is not an error.
func (idx *Index) Remove(_ context.Context, documentID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errors.New("ivf: index is closed")
	}

	idx.detach(documentID)
	delete(idx.vectors, documentID)
	return nil
}

// Close releases resources.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	idx.vectors = nil
	idx.centroids = nil
	idx.cells = nil
	idx.cellOf = nil
	return nil
}

// Len returns the number of indexed vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// detach removes a document from its cell. Caller holds the lock.
func (idx *Index) detach(documentID string) {
	cell, ok := idx.cellOf[documentID]
	if !ok {
		return
	}
	members := idx.cells[cell]
	for i, id := range members {
		if id == documentID {
			idx.cells[cell] = append(members[:i], members[i+1:]...)
			break
		}
	}
	delete(idx.cellOf, documentID)
}

// nearestCell returns the cell whose centroid is closest to the
// vector. Caller holds the lock; at least one centroid exists.
func (idx *Index) nearestCell(vec []float32) int {
	best := 0
	bestScore := idx.score(vec, idx.centroids[0])
	for i := 1; i < len(idx.centroids); i++ {
		if s := idx.score(vec, idx.centroids[i]); s > bestScore {
			best = i
			bestScore = s
		}
	}
	return best
}

// probeCells returns the indices of the cells to scan, ranked by
// centroid proximity, capped at the configured probe count.
func (idx *Index) probeCells(vec []float32) []int {
	type rankedCell struct {
		cell  int
		score float64
	}

	ranked := make([]rankedCell, len(idx.centroids))
	for i, centroid := range idx.centroids {
		ranked[i] = rankedCell{cell: i, score: idx.score(vec, centroid)}
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	probes := idx.cfg.Probes
	if probes > len(ranked) {
		probes = len(ranked)
	}

	cells := make([]int, probes)
	for i := 0; i < probes; i++ {
		cells[i] = ranked[i].cell
	}
	return cells
}

// score computes the similarity between two vectors. Higher is always
// better: cosine similarity is clamped to [0,1], Euclidean distance is
// negated, the inner product is reported raw.
func (idx *Index) score(a, b []float32) float64 {
	switch idx.cfg.Metric {
	case domain.MetricL2:
		return -l2Distance(a, b)
	case domain.MetricDot:
		return dotProduct(a, b)
	default:
		sim := cosineSimilarity(a, b)
		if sim < 0 {
			return 0
		}
		return sim
	}
}

// cosineSimilarity computes the cosine of the angle between vectors.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// l2Distance computes the Euclidean distance between vectors.
func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// dotProduct computes the inner product of two vectors.
func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
