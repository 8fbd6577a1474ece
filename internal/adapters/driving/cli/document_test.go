package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archiva-labs/doclens/internal/core/domain"
)

func pendingDocument() *domain.Document {
	return &domain.Document{
		ID:       "doc-1",
		Filename: "decreto.pdf",
		State:    domain.StatePending,
	}
}

func TestAnalyzeCmd_Definition(t *testing.T) {
	assert.Equal(t, "analyze [file]", analyzeCmd.Use)
	assert.NotEmpty(t, analyzeCmd.Short)

	for _, name := range []string{"no-classify", "no-entities", "no-summary", "no-embed"} {
		flag := analyzeCmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, "false", flag.DefValue, name)
	}
}

func TestAnalyzeCmd_Execute_PrintsResult(t *testing.T) {
	doc := pendingDocument()
	doc.State = domain.StateCompleted
	doc.Classification = &domain.Classification{Category: domain.TypeDecreto, Confidence: 0.92}
	doc.Summary = &domain.Summary{Text: "Decreto del tribunale.", KeyPoints: []string{"importo 1.000,00"}}
	doc.Embedding = []float32{0.1, 0.2, 0.3}

	cleanup := setupTestServices(&mockPipeline{doc: doc}, nil)
	defer cleanup()

	out, err := execute("analyze", "testdata/decreto.pdf")
	require.NoError(t, err)

	assert.Contains(t, out, "Registered decreto.pdf as doc-1")
	assert.Contains(t, out, "State: completed")
	assert.Contains(t, out, "Type:  decreto (0.92)")
	assert.Contains(t, out, "Summary: Decreto del tribunale.")
	assert.Contains(t, out, "- importo 1.000,00")
	assert.Contains(t, out, "Embedding: 3 dimensions")
}

func TestAnalyzeCmd_Execute_StartFails(t *testing.T) {
	cleanup := setupTestServices(&mockPipeline{
		doc:      pendingDocument(),
		startErr: domain.ErrProviderUnavailable,
	}, nil)
	defer cleanup()

	_, err := execute("analyze", "testdata/decreto.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestAnalysisOptions_SkipFlags(t *testing.T) {
	skipEntities = true
	skipEmbed = true
	defer func() {
		skipEntities = false
		skipEmbed = false
	}()

	opts := analysisOptions()
	assert.True(t, opts.Classify)
	assert.False(t, opts.ExtractEntities)
	assert.True(t, opts.Summarize)
	assert.False(t, opts.Embed)
}

func TestStatusCmd_Execute_ErrorState(t *testing.T) {
	doc := pendingDocument()
	doc.State = domain.StateError
	doc.FailedStage = domain.StageEntities
	doc.ErrorDetail = "rate limited"
	doc.Classification = &domain.Classification{Category: domain.TypeSentenza, Confidence: 0.45, LowConfidence: true}

	cleanup := setupTestServices(&mockPipeline{doc: doc}, nil)
	defer cleanup()

	out, err := execute("status", "doc-1")
	require.NoError(t, err)

	assert.Contains(t, out, "State: error")
	assert.Contains(t, out, "Failed stage: entities")
	assert.Contains(t, out, "Error: rate limited")
	assert.Contains(t, out, "[low confidence]")
}

func TestStatusCmd_Execute_Entities(t *testing.T) {
	doc := pendingDocument()
	doc.State = domain.StateCompleted
	doc.Entities = &domain.EntitySet{
		Dates:   []string{"15/01/2023"},
		Amounts: []string{"1.000,00"},
		People:  []string{"Mario Rossi"},
	}

	cleanup := setupTestServices(&mockPipeline{doc: doc}, nil)
	defer cleanup()

	out, err := execute("status", "doc-1")
	require.NoError(t, err)

	assert.Contains(t, out, "Entities:")
	assert.Contains(t, out, "Dates:")
	assert.Contains(t, out, "- 15/01/2023")
	assert.Contains(t, out, "- Mario Rossi")
	assert.NotContains(t, out, "Locations:")
}

func TestRetryCmd_Execute(t *testing.T) {
	doc := pendingDocument()
	doc.State = domain.StateCompleted

	cleanup := setupTestServices(&mockPipeline{doc: doc}, nil)
	defer cleanup()

	out, err := execute("retry", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "State: completed")
}

func TestRetryCmd_Execute_Fails(t *testing.T) {
	cleanup := setupTestServices(&mockPipeline{
		doc:      pendingDocument(),
		retryErr: domain.ErrInvalidTransition,
	}, nil)
	defer cleanup()

	_, err := execute("retry", "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestDocumentCmds_NotConfigured(t *testing.T) {
	cleanup := setupTestServices(nil, nil)
	defer cleanup()

	_, err := execute("status", "doc-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
