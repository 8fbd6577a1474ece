// Package chunker splits extracted text into overlapping windows for
// embedding and classification.
package chunker

import (
	"fmt"

	"github.com/archiva-labs/doclens/internal/core/domain"
)

// Chunker splits document text into fixed-size chunks with a fixed
// overlap. Output is deterministic for identical inputs: offsets are
// contiguous and chunk IDs derive from the document ID and position.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker. Returns domain.ErrInvalidConfig when the
// overlap is negative or not smaller than the chunk size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive", domain.ErrInvalidConfig)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, chunk size %d)", domain.ErrInvalidConfig, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk splits text into ordered chunks covering the full text with no
// gaps. Text shorter than the chunk size yields exactly one chunk with
// zero overlap. Empty text yields no chunks.
func (c *Chunker) Chunk(documentID, text string) []domain.Chunk {
	if text == "" {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]domain.Chunk, 0, len(text)/step+1)

	position := 0
	start := 0
	for start < len(text) {
		end := start + c.size
		if end > len(text) {
			end = len(text)
		}

		overlap := 0
		if position > 0 {
			overlap = c.overlap
		}

		chunks = append(chunks, domain.Chunk{
			ID:                  fmt.Sprintf("%s-%d", documentID, position),
			DocumentID:          documentID,
			Content:             text[start:end],
			Position:            position,
			StartOffset:         start,
			EndOffset:           end,
			OverlapWithPrevious: overlap,
		})
		position++

		if end == len(text) {
			break
		}
		start += step
	}

	return chunks
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int {
	return c.size
}

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int {
	return c.overlap
}
