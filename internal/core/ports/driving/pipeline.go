package driving

import (
	"context"

	"github.com/archiva-labs/doclens/internal/core/domain"
)

// AnalysisPipeline orchestrates document processing runs.
type AnalysisPipeline interface {
	// Register creates a PENDING document record for a stored file.
	Register(ctx context.Context, filename, fileRef string) (*domain.Document, error)

	// StartAnalysis runs the pipeline for a PENDING document.
	// Returns domain.ErrAlreadyProcessing if a run is active for the
	// document; a second caller is rejected, never queued silently.
	StartAnalysis(ctx context.Context, documentID string, opts domain.AnalysisOptions) error

	// RetryAnalysis reruns only the stages that previously failed for
	// a document in ERROR state.
	RetryAnalysis(ctx context.Context, documentID string) error

	// Cancel requests cancellation of an active run. The run stops at
	// the next stage boundary and the document transitions to ERROR
	// with a Cancelled cause; completed-stage results are preserved.
	Cancel(ctx context.Context, documentID string) error

	// Status returns the current document record including processing
	// state and any failure detail.
	Status(ctx context.Context, documentID string) (*domain.Document, error)
}
