package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archiva-labs/doclens/internal/core/domain"
)

const sampleDecreto = "Decreto del Tribunale di Milano, 15/01/2023, importo €1.000,00, Mario Rossi"

// scriptedCompletion answers each stage prompt with well-formed JSON.
func scriptedCompletion(prompt string) (string, error) {
	switch {
	case strings.HasPrefix(prompt, "Classify"):
		return `{"category": "decreto", "confidence": 0.9, "explanation": "payment decree"}`, nil
	case strings.HasPrefix(prompt, "Analyse"):
		return `{"dates": ["15/01/2023"], "amounts": ["1.000,00"], "people": ["Mario Rossi"], "organizations": ["Tribunale di Milano"], "locations": ["Milano"], "references": []}`, nil
	case strings.HasPrefix(prompt, "Summarise"):
		return `{"summary": "Payment decree issued by the Milan court.", "key_points": ["€1.000,00 ordered"], "word_count": 7}`, nil
	default:
		return "", errors.New("unexpected prompt")
	}
}

type pipelineFixture struct {
	pipeline  *Pipeline
	provider  *fakeProvider
	store     *fakeStore
	index     *fakeIndex
	extractor *fakeExtractor
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	provider := &fakeProvider{completeFn: scriptedCompletion}
	store := newFakeStore()
	index := newFakeIndex()
	extractor := &fakeExtractor{text: sampleDecreto}

	runner := NewStageRunner(stageTestConfig(), provider, newFakeCache())
	runner.sleep = func(context.Context, time.Duration) error { return nil }

	pipeline, err := NewPipeline(stageTestConfig(), extractor, runner, store, index)
	require.NoError(t, err)

	return &pipelineFixture{
		pipeline:  pipeline,
		provider:  provider,
		store:     store,
		index:     index,
		extractor: extractor,
	}
}

// seed persists a document directly in the store.
func (f *pipelineFixture) seed(t *testing.T, doc domain.Document) {
	t.Helper()
	require.NoError(t, f.store.SaveDocument(context.Background(), &doc))
}

func TestPipeline_Register_CreatesPendingDocument(t *testing.T) {
	f := newPipelineFixture(t)

	doc, err := f.pipeline.Register(context.Background(), "decreto.pdf", "files/decreto.pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, domain.StatePending, doc.State)
	assert.False(t, doc.UploadedAt.IsZero())

	stored, err := f.pipeline.Status(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, stored.State)
}

func TestPipeline_Register_RejectsUnsupportedFormat(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.pipeline.Register(context.Background(), "archive.zip", "files/archive.zip")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestPipeline_StartAnalysis_CompletesAllStages(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	doc, err := f.pipeline.Register(ctx, "decreto.pdf", "files/decreto.pdf")
	require.NoError(t, err)

	err = f.pipeline.StartAnalysis(ctx, doc.ID, domain.DefaultAnalysisOptions())
	require.NoError(t, err)

	final, err := f.pipeline.Status(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, final.State)
	assert.Equal(t, domain.TypeDecreto, final.Type)
	assert.Equal(t, sampleDecreto, final.Content)

	require.NotNil(t, final.Classification)
	assert.Equal(t, 0.9, final.Classification.Confidence)

	require.NotNil(t, final.Entities)
	assert.Contains(t, final.Entities.Amounts, "1.000,00")
	assert.Contains(t, final.Entities.People, "Mario Rossi")

	require.NotNil(t, final.Summary)
	assert.NotEmpty(t, final.Summary.Text)

	assert.NotEmpty(t, final.Embedding)
	assert.True(t, f.index.has(doc.ID))
	assert.False(t, final.ProcessedAt.IsZero())
}

func TestPipeline_StartAnalysis_UnknownDocument(t *testing.T) {
	f := newPipelineFixture(t)

	err := f.pipeline.StartAnalysis(context.Background(), "missing", domain.DefaultAnalysisOptions())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPipeline_StartAnalysis_RejectsCompletedDocument(t *testing.T) {
	f := newPipelineFixture(t)
	f.seed(t, domain.Document{ID: "done", State: domain.StateCompleted})

	err := f.pipeline.StartAnalysis(context.Background(), "done", domain.DefaultAnalysisOptions())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPipeline_StartAnalysis_RejectsConcurrentRun(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	f.provider.completeFn = func(prompt string) (string, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return scriptedCompletion(prompt)
	}

	doc, err := f.pipeline.Register(ctx, "decreto.pdf", "files/decreto.pdf")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- f.pipeline.StartAnalysis(ctx, doc.ID, domain.DefaultAnalysisOptions())
	}()

	<-started
	err = f.pipeline.StartAnalysis(ctx, doc.ID, domain.DefaultAnalysisOptions())
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessing)

	close(release)
	require.NoError(t, <-done)
}

func TestPipeline_StartAnalysis_PreservesPartialResultsOnFailure(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	f.provider.completeFn = func(prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Analyse") {
			return "", errors.New("model refused")
		}
		return scriptedCompletion(prompt)
	}

	doc, err := f.pipeline.Register(ctx, "decreto.pdf", "files/decreto.pdf")
	require.NoError(t, err)

	err = f.pipeline.StartAnalysis(ctx, doc.ID, domain.DefaultAnalysisOptions())
	require.Error(t, err)

	failed, err := f.pipeline.Status(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateError, failed.State)
	assert.Equal(t, domain.StageEntities, failed.FailedStage)
	assert.NotEmpty(t, failed.ErrorDetail)

	// Classification succeeded before the failure and must survive.
	require.NotNil(t, failed.Classification)
	assert.Nil(t, failed.Entities)
	assert.Nil(t, failed.Summary)
	assert.False(t, f.index.has(doc.ID))
}

func TestPipeline_RetryAnalysis_RerunsOnlyMissingStages(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	f.provider.completeFn = func(prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Summarise") {
			return "", errors.New("model refused")
		}
		return scriptedCompletion(prompt)
	}

	doc, err := f.pipeline.Register(ctx, "decreto.pdf", "files/decreto.pdf")
	require.NoError(t, err)
	require.Error(t, f.pipeline.StartAnalysis(ctx, doc.ID, domain.DefaultAnalysisOptions()))

	classifyCalls := f.provider.promptsWithPrefix("Classify")
	f.provider.completeFn = scriptedCompletion

	require.NoError(t, f.pipeline.RetryAnalysis(ctx, doc.ID))

	final, err := f.pipeline.Status(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, final.State)
	assert.Empty(t, string(final.FailedStage))
	assert.Empty(t, final.ErrorDetail)
	require.NotNil(t, final.Summary)

	// Preserved stages are skipped on retry.
	assert.Equal(t, classifyCalls, f.provider.promptsWithPrefix("Classify"))
}

func TestPipeline_RetryAnalysis_RejectsNonErroredDocument(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	doc, err := f.pipeline.Register(ctx, "decreto.pdf", "files/decreto.pdf")
	require.NoError(t, err)

	err = f.pipeline.RetryAnalysis(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPipeline_RetryAnalysis_KeepsOriginalStageSelection(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	f.provider.completeFn = func(prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Classify") {
			return "", errors.New("model refused")
		}
		return scriptedCompletion(prompt)
	}

	doc, err := f.pipeline.Register(ctx, "decreto.pdf", "files/decreto.pdf")
	require.NoError(t, err)

	opts := domain.AnalysisOptions{Classify: true}
	require.Error(t, f.pipeline.StartAnalysis(ctx, doc.ID, opts))

	f.provider.completeFn = scriptedCompletion
	require.NoError(t, f.pipeline.RetryAnalysis(ctx, doc.ID))

	final, err := f.pipeline.Status(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, final.State)
	require.NotNil(t, final.Classification)

	// Stages never requested stay unset even after the retry.
	assert.Nil(t, final.Entities)
	assert.Nil(t, final.Summary)
	assert.Empty(t, final.Embedding)
}

func TestPipeline_StartAnalysis_DisabledStagesStayUnset(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	doc, err := f.pipeline.Register(ctx, "decreto.txt", "files/decreto.txt")
	require.NoError(t, err)

	opts := domain.AnalysisOptions{Classify: true, Embed: true}
	require.NoError(t, f.pipeline.StartAnalysis(ctx, doc.ID, opts))

	final, err := f.pipeline.Status(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, final.State)
	require.NotNil(t, final.Classification)
	assert.Nil(t, final.Entities)
	assert.Nil(t, final.Summary)
	assert.NotEmpty(t, final.Embedding)
}

func TestPipeline_StartAnalysis_EmptyExtractionFails(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	f.extractor.text = "   "

	doc, err := f.pipeline.Register(ctx, "blank.pdf", "files/blank.pdf")
	require.NoError(t, err)

	err = f.pipeline.StartAnalysis(ctx, doc.ID, domain.DefaultAnalysisOptions())
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)

	failed, err := f.pipeline.Status(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateError, failed.State)
	assert.Equal(t, domain.StageExtract, failed.FailedStage)
}

func TestPipeline_Cancel_NoActiveRun(t *testing.T) {
	f := newPipelineFixture(t)

	err := f.pipeline.Cancel(context.Background(), "idle-doc")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPipeline_Cancel_StopsRunAtStageBoundary(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	f.provider.completeFn = func(prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Classify") {
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
		}
		return scriptedCompletion(prompt)
	}

	doc, err := f.pipeline.Register(ctx, "decreto.pdf", "files/decreto.pdf")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- f.pipeline.StartAnalysis(ctx, doc.ID, domain.DefaultAnalysisOptions())
	}()

	<-started
	require.NoError(t, f.pipeline.Cancel(ctx, doc.ID))
	close(release)

	err = <-done
	assert.ErrorIs(t, err, domain.ErrCancelled)

	failed, getErr := f.pipeline.Status(ctx, doc.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StateError, failed.State)

	// The classification stage finished before the cancellation point
	// and its result is preserved.
	assert.NotNil(t, failed.Classification)
}
