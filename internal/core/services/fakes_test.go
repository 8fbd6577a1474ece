package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/archiva-labs/doclens/internal/core/domain"
	"github.com/archiva-labs/doclens/internal/core/ports/driven"
)

// fakeProvider scripts completion and embedding responses and counts
// every call.
type fakeProvider struct {
	mu            sync.Mutex
	completeFn    func(prompt string) (string, error)
	embedFn       func(text string) ([]float32, error)
	completeCalls int
	embedCalls    int
	prompts       []string
}

var _ driven.ModelProvider = (*fakeProvider)(nil)

func (p *fakeProvider) Complete(_ context.Context, prompt string, _ driven.CompletionOptions) (string, error) {
	p.mu.Lock()
	p.completeCalls++
	p.prompts = append(p.prompts, prompt)
	fn := p.completeFn
	p.mu.Unlock()

	if fn == nil {
		return "", fmt.Errorf("no completion scripted")
	}
	return fn(prompt)
}

func (p *fakeProvider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.embedCalls++
	fn := p.embedFn
	p.mu.Unlock()

	if fn == nil {
		return []float32{1, 0, 0}, nil
	}
	return fn(text)
}

func (p *fakeProvider) ModelName() string          { return "fake-model" }
func (p *fakeProvider) EmbeddingModelName() string { return "fake-embedding" }
func (p *fakeProvider) Ping(context.Context) error { return nil }
func (p *fakeProvider) Close() error               { return nil }

func (p *fakeProvider) completions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completeCalls
}

func (p *fakeProvider) embeddings() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.embedCalls
}

// promptsWithPrefix counts recorded prompts starting with the marker.
func (p *fakeProvider) promptsWithPrefix(prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, prompt := range p.prompts {
		if len(prompt) >= len(prefix) && prompt[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// fakeCache is a map-backed cache that never expires.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]any
	puts    int
}

var _ driven.ResultCache = (*fakeCache)(nil)

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]any)}
}

func (c *fakeCache) Get(_ context.Context, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *fakeCache) Put(_ context.Context, key string, value any, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.puts++
}

func (c *fakeCache) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// fakeStore is a map-backed document store.
type fakeStore struct {
	mu      sync.Mutex
	docs    map[string]domain.Document
	saveErr error
}

var _ driven.DocumentStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]domain.Document)}
}

func (s *fakeStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.docs[doc.ID] = *doc
	return nil
}

func (s *fakeStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	copied := doc
	return &copied, nil
}

func (s *fakeStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc)
	}
	return out, nil
}

func (s *fakeStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

// fakeIndex records upserts and removals and returns scripted hits.
type fakeIndex struct {
	mu      sync.Mutex
	vectors map[string][]float32
	hits    []driven.VectorHit
	queries int
}

var _ driven.VectorIndex = (*fakeIndex)(nil)

func newFakeIndex() *fakeIndex {
	return &fakeIndex{vectors: make(map[string][]float32)}
}

func (i *fakeIndex) Upsert(_ context.Context, documentID string, embedding []float32) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.vectors[documentID] = embedding
	return nil
}

func (i *fakeIndex) Query(_ context.Context, _ []float32, k int) ([]driven.VectorHit, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.queries++
	if len(i.hits) > k {
		return i.hits[:k], nil
	}
	return i.hits, nil
}

func (i *fakeIndex) Remove(_ context.Context, documentID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.vectors, documentID)
	return nil
}

func (i *fakeIndex) Close() error { return nil }

func (i *fakeIndex) has(documentID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.vectors[documentID]
	return ok
}

// fakeExtractor returns scripted text for any file reference.
type fakeExtractor struct {
	text string
	err  error
}

var _ driven.TextExtractor = (*fakeExtractor)(nil)

func (e *fakeExtractor) ExtractText(context.Context, string, driven.OCROptions) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return e.text, nil
}
