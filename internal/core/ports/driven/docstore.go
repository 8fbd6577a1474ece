package driven

import (
	"context"

	"github.com/archiva-labs/doclens/internal/core/domain"
)

// DocumentStore persists document records.
// SaveDocument is an atomic upsert of the full record; the orchestrator
// uses it to commit all stage results of a run in one write.
type DocumentStore interface {
	// SaveDocument stores or replaces a document record.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns all persisted documents.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// DeleteDocument removes a document record.
	DeleteDocument(ctx context.Context, id string) error
}
