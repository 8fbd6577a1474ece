package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/archiva-labs/doclens/internal/core/domain"
)

// Stage selection flags for analyze.
var (
	skipClassify  bool
	skipEntities  bool
	skipSummarize bool
	skipEmbed     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Register and analyse a document",
	Long: `Registers a document file and runs the analysis pipeline:
text extraction, classification, entity extraction, summarisation and
embedding. Individual stages can be skipped with flags.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var retryCmd = &cobra.Command{
	Use:   "retry [doc-id]",
	Short: "Retry a failed analysis",
	Long: `Reruns the analysis of a document in the error state. Stages
that already produced a result are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetry,
}

var statusCmd = &cobra.Command{
	Use:   "status [doc-id]",
	Short: "Show document state and results",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	analyzeCmd.Flags().BoolVar(&skipClassify, "no-classify", false, "skip classification")
	analyzeCmd.Flags().BoolVar(&skipEntities, "no-entities", false, "skip entity extraction")
	analyzeCmd.Flags().BoolVar(&skipSummarize, "no-summary", false, "skip summarisation")
	analyzeCmd.Flags().BoolVar(&skipEmbed, "no-embed", false, "skip embedding and indexing")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(statusCmd)
}

func analysisOptions() domain.AnalysisOptions {
	opts := domain.DefaultAnalysisOptions()
	if skipClassify {
		opts.Classify = false
	}
	if skipEntities {
		opts.ExtractEntities = false
	}
	if skipSummarize {
		opts.Summarize = false
	}
	if skipEmbed {
		opts.Embed = false
	}
	return opts
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	ctx := context.Background()
	doc, err := pipelineService.Register(ctx, filepath.Base(path), path)
	if err != nil {
		return fmt.Errorf("register document: %w", err)
	}
	cmd.Printf("Registered %s as %s\n", doc.Filename, doc.ID)

	if err := pipelineService.StartAnalysis(ctx, doc.ID, analysisOptions()); err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	final, err := pipelineService.Status(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	printDocument(cmd, final)
	return nil
}

func runRetry(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	ctx := context.Background()
	if err := pipelineService.RetryAnalysis(ctx, args[0]); err != nil {
		return fmt.Errorf("retry failed: %w", err)
	}

	final, err := pipelineService.Status(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	printDocument(cmd, final)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	doc, err := pipelineService.Status(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	printDocument(cmd, doc)
	return nil
}

// printDocument renders a document record.
func printDocument(cmd *cobra.Command, doc *domain.Document) {
	cmd.Printf("Document: %s\n", doc.ID)
	cmd.Printf("  File:  %s\n", doc.Filename)
	cmd.Printf("  State: %s\n", doc.State)

	if doc.State == domain.StateError {
		cmd.Printf("  Failed stage: %s\n", doc.FailedStage)
		cmd.Printf("  Error: %s\n", doc.ErrorDetail)
	}

	if doc.Classification != nil {
		cmd.Printf("  Type:  %s (%.2f)", doc.Classification.Category, doc.Classification.Confidence)
		if doc.Classification.LowConfidence {
			cmd.Print(" [low confidence]")
		}
		cmd.Println()
	}

	if doc.Entities != nil && !doc.Entities.IsEmpty() {
		cmd.Println("  Entities:")
		printEntitySlot(cmd, "Dates", doc.Entities.Dates)
		printEntitySlot(cmd, "Amounts", doc.Entities.Amounts)
		printEntitySlot(cmd, "People", doc.Entities.People)
		printEntitySlot(cmd, "Organizations", doc.Entities.Organizations)
		printEntitySlot(cmd, "Locations", doc.Entities.Locations)
		printEntitySlot(cmd, "References", doc.Entities.References)
	}

	if doc.Summary != nil {
		cmd.Printf("  Summary: %s\n", doc.Summary.Text)
		for _, point := range doc.Summary.KeyPoints {
			cmd.Printf("    - %s\n", point)
		}
	}

	if len(doc.Embedding) > 0 {
		cmd.Printf("  Embedding: %d dimensions\n", len(doc.Embedding))
	}
}

func printEntitySlot(cmd *cobra.Command, label string, values []string) {
	if len(values) == 0 {
		return
	}
	cmd.Printf("    %s:\n", label)
	for _, v := range values {
		cmd.Printf("      - %s\n", v)
	}
}
