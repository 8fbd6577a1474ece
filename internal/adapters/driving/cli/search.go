package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/archiva-labs/doclens/internal/core/domain"
)

var (
	searchLimit     int
	searchThreshold float64
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search analysed documents",
	Long: `Performs semantic search across analysed documents. The query is
embedded and matched against document embeddings; results below the
similarity threshold are dropped.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().Float64VarP(&searchThreshold, "threshold", "t", -1, "similarity threshold (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	results, err := queryService.SemanticSearch(context.Background(), args[0], searchLimit, searchThreshold)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		doc := results[i].Document
		cmd.Printf("  [%d] %s (%.2f)\n", results[i].Rank, doc.Filename, results[i].Score)
		if doc.Type != "" {
			cmd.Printf("      Type: %s\n", doc.Type)
		}
		if doc.Summary != nil && doc.Summary.Text != "" {
			cmd.Printf("      %s\n", doc.Summary.Text)
		}
		cmd.Println()
	}
	return nil
}
