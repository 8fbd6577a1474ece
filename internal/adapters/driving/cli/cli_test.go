package cli

import (
	"bytes"
	"context"

	"github.com/archiva-labs/doclens/internal/core/domain"
	"github.com/archiva-labs/doclens/internal/core/ports/driving"
)

// mockPipeline is a canned pipeline for command tests.
type mockPipeline struct {
	doc      *domain.Document
	startErr error
	retryErr error
}

var _ driving.AnalysisPipeline = (*mockPipeline)(nil)

func (m *mockPipeline) Register(_ context.Context, filename, fileRef string) (*domain.Document, error) {
	doc := *m.doc
	doc.Filename = filename
	doc.FileRef = fileRef
	m.doc = &doc
	return &doc, nil
}

func (m *mockPipeline) StartAnalysis(context.Context, string, domain.AnalysisOptions) error {
	return m.startErr
}

func (m *mockPipeline) RetryAnalysis(context.Context, string) error {
	return m.retryErr
}

func (m *mockPipeline) Cancel(context.Context, string) error { return nil }

func (m *mockPipeline) Status(context.Context, string) (*domain.Document, error) {
	return m.doc, nil
}

// mockQuery is a canned query engine for command tests.
type mockQuery struct {
	results  []domain.SearchResult
	agg      *domain.Aggregation
	timeline []domain.TimelineEntry
	err      error
}

var _ driving.QueryEngine = (*mockQuery)(nil)

func (m *mockQuery) SemanticSearch(context.Context, string, int, float64) ([]domain.SearchResult, error) {
	return m.results, m.err
}

func (m *mockQuery) Aggregate(context.Context, domain.AggregateOptions) (*domain.Aggregation, error) {
	return m.agg, m.err
}

func (m *mockQuery) Timeline(context.Context, domain.TimelineBucket) ([]domain.TimelineEntry, error) {
	return m.timeline, m.err
}

// setupTestServices installs mock services and returns a cleanup that
// restores the previous ones.
func setupTestServices(pipeline driving.AnalysisPipeline, query driving.QueryEngine) func() {
	oldPipeline, oldQuery := pipelineService, queryService
	pipelineService = pipeline
	queryService = query
	return func() {
		pipelineService = oldPipeline
		queryService = oldQuery
	}
}

// execute runs the root command with args and captures output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
