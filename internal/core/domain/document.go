package domain

import "time"

// ProcessingState tracks a document through the analysis pipeline.
type ProcessingState string

// Processing states. Transitions only move forward, except that an
// errored document may be re-queued via an explicit retry.
const (
	// StatePending means the document is registered but not yet analysed.
	StatePending ProcessingState = "pending"

	// StateProcessing means an analysis run is in progress.
	StateProcessing ProcessingState = "processing"

	// StateCompleted means all requested stages succeeded.
	StateCompleted ProcessingState = "completed"

	// StateError means a stage failed; partial results are preserved.
	StateError ProcessingState = "error"
)

// IsValid returns true if the state is recognised.
func (s ProcessingState) IsValid() bool {
	switch s {
	case StatePending, StateProcessing, StateCompleted, StateError:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no run is active in this state.
func (s ProcessingState) IsTerminal() bool {
	return s == StateCompleted || s == StateError
}

// CanTransitionTo reports whether a transition to the target state is legal.
// The only backward edge is ERROR -> PROCESSING, taken on explicit retry.
func (s ProcessingState) CanTransitionTo(target ProcessingState) bool {
	switch s {
	case StatePending:
		return target == StateProcessing
	case StateProcessing:
		return target == StateCompleted || target == StateError
	case StateError:
		return target == StateProcessing
	default:
		return false
	}
}

// String returns the string representation.
func (s ProcessingState) String() string {
	return string(s)
}

// DocumentType classifies the kind of legal/financial document.
type DocumentType string

// Known document types.
const (
	TypeDecreto     DocumentType = "decreto"
	TypeIngiunzione DocumentType = "ingiunzione"
	TypeSentenza    DocumentType = "sentenza"
	TypePerizia     DocumentType = "perizia"
	TypeAltro       DocumentType = "altro"
)

// IsValid returns true if the document type is recognised.
func (t DocumentType) IsValid() bool {
	switch t {
	case TypeDecreto, TypeIngiunzione, TypeSentenza, TypePerizia, TypeAltro:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t DocumentType) String() string {
	return string(t)
}

// Document is the canonical record produced by the analysis pipeline.
// It is owned exclusively by the orchestrator while State is PROCESSING
// and read-shared afterwards.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Filename is the original upload name.
	Filename string

	// FileRef is the location of the raw file in object storage.
	FileRef string

	// MimeType is the detected content type of the raw file.
	MimeType string

	// SizeBytes is the raw file size.
	SizeBytes int64

	// FileHash is the SHA-256 of the raw file, hex encoded.
	FileHash string

	// Content is the extracted plain text. Empty until extraction ran.
	Content string

	// Type is the classification category. Empty until classified.
	Type DocumentType

	// State is the current processing state.
	State ProcessingState

	// Options records the stages requested for the last run, so a
	// retry reruns only what was originally asked for.
	Options AnalysisOptions

	// Classification holds the full classification result, if produced.
	Classification *Classification

	// Entities holds extracted entities, if produced.
	Entities *EntitySet

	// Summary holds the generated summary, if produced.
	Summary *Summary

	// Embedding is the document vector. Present iff State is COMPLETED
	// and the embedding stage was requested.
	Embedding []float32

	// FailedStage names the stage that caused State to become ERROR.
	FailedStage StageKind

	// ErrorDetail is a human-readable cause for the last failure.
	ErrorDetail string

	// UploadedAt is when the document was registered.
	UploadedAt time.Time

	// ProcessedAt is when the last run finished, successfully or not.
	ProcessedAt time.Time

	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time
}

// HasResult reports whether the result for the given stage is already
// attached to the document. Used on retry to skip completed stages.
func (d *Document) HasResult(stage StageKind) bool {
	switch stage {
	case StageClassify:
		return d.Classification != nil
	case StageEntities:
		return d.Entities != nil
	case StageSummarize:
		return d.Summary != nil
	case StageEmbed:
		return len(d.Embedding) > 0
	default:
		return false
	}
}

// Chunk is an ordered fragment of a document's extracted text.
// Chunks exist only for the duration of a processing run.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent document.
	DocumentID string

	// Content is the text of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// StartOffset is the byte offset of the chunk start in the full text.
	StartOffset int

	// EndOffset is the byte offset one past the chunk end.
	EndOffset int

	// OverlapWithPrevious is the number of bytes shared with the
	// preceding chunk. Zero for the first chunk.
	OverlapWithPrevious int
}

// AnalysisOptions selects which stages a run executes. A disabled stage
// is skipped entirely and its result field remains unset.
type AnalysisOptions struct {
	// Classify enables document type classification.
	Classify bool

	// ExtractEntities enables entity extraction.
	ExtractEntities bool

	// Summarize enables summary generation.
	Summarize bool

	// Embed enables embedding generation and vector indexing.
	Embed bool
}

// DefaultAnalysisOptions enables every stage.
func DefaultAnalysisOptions() AnalysisOptions {
	return AnalysisOptions{
		Classify:        true,
		ExtractEntities: true,
		Summarize:       true,
		Embed:           true,
	}
}

// Stages returns the enabled stages in the fixed pipeline order.
// Embedding is always last: indexing depends on the final text.
func (o AnalysisOptions) Stages() []StageKind {
	var stages []StageKind
	if o.Classify {
		stages = append(stages, StageClassify)
	}
	if o.ExtractEntities {
		stages = append(stages, StageEntities)
	}
	if o.Summarize {
		stages = append(stages, StageSummarize)
	}
	if o.Embed {
		stages = append(stages, StageEmbed)
	}
	return stages
}
