package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/archiva-labs/doclens/internal/chunker"
	"github.com/archiva-labs/doclens/internal/core/domain"
	"github.com/archiva-labs/doclens/internal/core/ports/driven"
	"github.com/archiva-labs/doclens/internal/core/ports/driving"
	"github.com/archiva-labs/doclens/internal/logger"
)

// Ensure Pipeline implements the interface.
var _ driving.AnalysisPipeline = (*Pipeline)(nil)

// Pipeline orchestrates document analysis runs. It owns the processing
// state machine: PENDING -> PROCESSING -> COMPLETED/ERROR, with
// ERROR -> PROCESSING permitted only through RetryAnalysis. At most one
// run is active per document at any time.
type Pipeline struct {
	cfg         domain.Config
	extractor   driven.TextExtractor
	chunker     *chunker.Chunker
	stages      *StageRunner
	docStore    driven.DocumentStore
	vectorIndex driven.VectorIndex

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewPipeline creates the analysis pipeline. The configuration must be
// valid; the chunker is built from its chunk size and overlap.
func NewPipeline(
	cfg domain.Config,
	extractor driven.TextExtractor,
	stages *StageRunner,
	docStore driven.DocumentStore,
	vectorIndex driven.VectorIndex,
) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:         cfg,
		extractor:   extractor,
		chunker:     ch,
		stages:      stages,
		docStore:    docStore,
		vectorIndex: vectorIndex,
		active:      make(map[string]context.CancelFunc),
	}, nil
}

// Register creates a PENDING document record for a stored file.
func (p *Pipeline) Register(ctx context.Context, filename, fileRef string) (*domain.Document, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !p.cfg.SupportsFormat(ext) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, ext)
	}

	now := time.Now()
	doc := &domain.Document{
		ID:         uuid.New().String(),
		Filename:   filename,
		FileRef:    fileRef,
		State:      domain.StatePending,
		UploadedAt: now,
		UpdatedAt:  now,
	}

	if err := p.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	logger.Info("Registered document %s (%s)", doc.ID, filename)
	return doc, nil
}

// StartAnalysis runs the pipeline for a PENDING document. A second
// call while a run is active is rejected with ErrAlreadyProcessing,
// never queued.
func (p *Pipeline) StartAnalysis(ctx context.Context, documentID string, opts domain.AnalysisOptions) error {
	doc, err := p.claim(ctx, documentID, domain.StatePending, opts)
	if err != nil {
		return err
	}
	return p.run(ctx, doc, false)
}

// RetryAnalysis reruns a failed document. Only stages without a
// preserved result are executed; everything that already succeeded is
// skipped.
func (p *Pipeline) RetryAnalysis(ctx context.Context, documentID string) error {
	doc, err := p.claim(ctx, documentID, domain.StateError, domain.AnalysisOptions{})
	if err != nil {
		return err
	}
	return p.run(ctx, doc, true)
}

// Cancel requests cancellation of an active run. The run stops at the
// next stage boundary.
func (p *Pipeline) Cancel(_ context.Context, documentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cancel, ok := p.active[documentID]
	if !ok {
		return fmt.Errorf("%w: no active run for document %s", domain.ErrNotFound, documentID)
	}
	cancel()
	return nil
}

// Status returns the current document record.
func (p *Pipeline) Status(ctx context.Context, documentID string) (*domain.Document, error) {
	return p.docStore.GetDocument(ctx, documentID)
}

// claim transitions a document into PROCESSING under the per-document
// mutual exclusion lock and records the run's requested options. The
// fromState distinguishes a fresh start from a retry.
func (p *Pipeline) claim(
	ctx context.Context, documentID string, fromState domain.ProcessingState, opts domain.AnalysisOptions,
) (*domain.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, running := p.active[documentID]; running {
		return nil, fmt.Errorf("%w: document %s", domain.ErrAlreadyProcessing, documentID)
	}

	doc, err := p.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	if doc.State == domain.StateProcessing {
		return nil, fmt.Errorf("%w: document %s", domain.ErrAlreadyProcessing, documentID)
	}
	if doc.State != fromState || !doc.State.CanTransitionTo(domain.StateProcessing) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, doc.State, domain.StateProcessing)
	}

	if fromState == domain.StatePending {
		doc.Options = opts
	}
	doc.State = domain.StateProcessing
	doc.UpdatedAt = time.Now()
	if err := p.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	// Placeholder cancel; replaced once the run context exists.
	p.active[documentID] = func() {}
	return doc, nil
}

// run executes the fixed stage order for a claimed document:
// extraction -> chunking -> classification -> entities -> summary ->
// embedding. Stage results are committed atomically in one document
// write at the end of the run; partial results obtained before a
// failure are preserved on the ERROR record.
//
//nolint:gocyclo // Sequential pipeline with per-stage failure handling
func (p *Pipeline) run(ctx context.Context, doc *domain.Document, isRetry bool) error {
	var runCtx context.Context
	var cancel context.CancelFunc
	if p.cfg.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	p.mu.Lock()
	p.active[doc.ID] = cancel
	p.mu.Unlock()
	defer p.release(doc.ID)

	logger.Section("Analysis Run")
	logger.Info("Document %s: starting %s", doc.ID, runLabel(isRetry))

	// Extraction. Skipped on retry when text is already present.
	if doc.Content == "" {
		text, err := p.extract(runCtx, doc)
		if err != nil {
			return p.fail(ctx, doc, domain.StageExtract, err)
		}
		doc.Content = text
	}

	if err := p.checkpoint(runCtx); err != nil {
		return p.fail(ctx, doc, domain.StageExtract, err)
	}

	// Chunking. Chunks are ephemeral: they exist for this run only.
	chunks := p.chunker.Chunk(doc.ID, doc.Content)
	if len(chunks) == 0 {
		return p.fail(ctx, doc, domain.StageChunk, fmt.Errorf("%w: no text extracted", domain.ErrExtractionFailed))
	}
	logger.Debug("Document %s: %d chunks", doc.ID, len(chunks))

	for _, stage := range doc.Options.Stages() {
		if err := p.checkpoint(runCtx); err != nil {
			return p.fail(ctx, doc, stage, err)
		}
		if isRetry && doc.HasResult(stage) {
			logger.Debug("Document %s: skipping %s (result preserved)", doc.ID, stage)
			continue
		}
		if err := p.runStage(runCtx, doc, chunks, stage); err != nil {
			return p.fail(ctx, doc, stage, err)
		}
	}

	// Embedding is indexed before the commit so a completed document is
	// immediately searchable; the index entry is rolled back if the
	// commit itself fails.
	if doc.Options.Embed && len(doc.Embedding) > 0 {
		if err := p.vectorIndex.Upsert(runCtx, doc.ID, doc.Embedding); err != nil {
			return p.fail(ctx, doc, domain.StageEmbed, err)
		}
	}

	doc.State = domain.StateCompleted
	doc.FailedStage = ""
	doc.ErrorDetail = ""
	doc.ProcessedAt = time.Now()
	doc.UpdatedAt = doc.ProcessedAt
	if err := p.docStore.SaveDocument(ctx, doc); err != nil {
		if doc.Options.Embed {
			if rmErr := p.vectorIndex.Remove(ctx, doc.ID); rmErr != nil {
				logger.Warn("Document %s: index rollback failed: %v", doc.ID, rmErr)
			}
		}
		return fmt.Errorf("commit results: %w", err)
	}

	logger.Info("Document %s: completed", doc.ID)
	return nil
}

// runStage executes one AI stage and attaches its result to the
// working copy of the document.
func (p *Pipeline) runStage(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, stage domain.StageKind) error {
	logger.Debug("Document %s: running %s", doc.ID, stage)

	switch stage {
	case domain.StageClassify:
		// Classification reads the opening of the document; the first
		// chunk is enough to identify the type.
		result, err := p.stages.Classify(ctx, chunks[0].Content)
		if err != nil {
			return err
		}
		doc.Classification = result
		doc.Type = result.Category
		if result.LowConfidence {
			logger.Warn("Document %s: low-confidence classification %s (%.2f)",
				doc.ID, result.Category, result.Confidence)
		}

	case domain.StageEntities:
		result, err := p.stages.ExtractEntities(ctx, doc.Content)
		if err != nil {
			return err
		}
		doc.Entities = result

	case domain.StageSummarize:
		result, err := p.stages.Summarize(ctx, doc.Content)
		if err != nil {
			return err
		}
		doc.Summary = result

	case domain.StageEmbed:
		embedding, err := p.stages.Embed(ctx, doc.Content)
		if err != nil {
			return err
		}
		doc.Embedding = embedding

	default:
		return fmt.Errorf("unknown stage %q", stage)
	}

	return nil
}

// extract converts the stored file to plain text under the stage
// timeout.
func (p *Pipeline) extract(ctx context.Context, doc *domain.Document) (string, error) {
	callCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.StageTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, p.cfg.StageTimeout)
		defer cancel()
	}

	text, err := p.extractor.ExtractText(callCtx, doc.FileRef, driven.OCROptions{Language: "ita"})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty text", domain.ErrExtractionFailed)
	}
	return text, nil
}

// checkpoint reports cancellation between stage boundaries. A run is
// never interrupted mid-stage.
func (p *Pipeline) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}
	return nil
}

// fail commits the ERROR state with the failing stage and cause.
// Partial results already attached to the document are preserved, so a
// later retry reruns only what is missing.
func (p *Pipeline) fail(ctx context.Context, doc *domain.Document, stage domain.StageKind, cause error) error {
	if se, ok := domain.AsStageError(cause); ok {
		stage = se.Stage
	}

	doc.State = domain.StateError
	doc.FailedStage = stage
	doc.ErrorDetail = cause.Error()
	doc.ProcessedAt = time.Now()
	doc.UpdatedAt = doc.ProcessedAt

	if saveErr := p.docStore.SaveDocument(ctx, doc); saveErr != nil {
		logger.Warn("Document %s: failed to persist error state: %v", doc.ID, saveErr)
	}

	logger.Warn("Document %s: stage %s failed: %v", doc.ID, stage, cause)
	return cause
}

// release clears the active-run slot for a document.
func (p *Pipeline) release(documentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, documentID)
}

// runLabel names the run kind for logs.
func runLabel(isRetry bool) string {
	if isRetry {
		return "retry"
	}
	return "analysis"
}
