package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/archiva-labs/doclens/internal/core/domain"
)

var (
	statsJSON      bool
	timelineBucket string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate statistics over analysed documents",
	Long: `Groups analysed documents by type, period and entity, and computes
count, total amount and average classification confidence.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Document timeline by upload period",
	Args:  cobra.NoArgs,
	RunE:  runTimeline,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
	timelineCmd.Flags().StringVarP(&timelineBucket, "bucket", "b", "month", "period width: day, week, month or year")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(timelineCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	agg, err := queryService.Aggregate(context.Background(), domain.AggregateOptions{
		GroupBy: []domain.GroupDimension{domain.GroupByType, domain.GroupByPeriod, domain.GroupByEntity},
		Metrics: []domain.MetricKind{domain.MetricCount, domain.MetricTotalAmount, domain.MetricAvgConfidence},
	})
	if err != nil {
		return fmt.Errorf("aggregation failed: %w", err)
	}

	if statsJSON {
		data, err := json.MarshalIndent(agg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal aggregation: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Documents: %d\n", agg.Metrics.Count)
	cmd.Printf("Total amount: %.2f\n", agg.Metrics.TotalAmount)
	cmd.Printf("Average confidence: %.2f\n", agg.Metrics.AvgConfidence)

	if len(agg.ByType) > 0 {
		cmd.Println("\nBy type:")
		types := make([]string, 0, len(agg.ByType))
		for docType := range agg.ByType {
			types = append(types, string(docType))
		}
		sort.Strings(types)
		for _, docType := range types {
			cmd.Printf("  %-12s %d\n", docType, agg.ByType[domain.DocumentType(docType)])
		}
	}

	if len(agg.ByPeriod) > 0 {
		cmd.Println("\nBy month:")
		periods := make([]string, 0, len(agg.ByPeriod))
		for period := range agg.ByPeriod {
			periods = append(periods, period)
		}
		sort.Strings(periods)
		for _, period := range periods {
			cmd.Printf("  %s  %d\n", period, agg.ByPeriod[period])
		}
	}
	return nil
}

func runTimeline(cmd *cobra.Command, _ []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	entries, err := queryService.Timeline(context.Background(), domain.TimelineBucket(timelineBucket))
	if err != nil {
		return fmt.Errorf("timeline failed: %w", err)
	}

	if len(entries) == 0 {
		cmd.Println("No documents analysed yet.")
		return nil
	}

	for _, entry := range entries {
		cmd.Printf("%s  (%d documents)\n", entry.Period, entry.Count)
		for docType, count := range entry.ByType {
			cmd.Printf("    %s: %d\n", docType, count)
		}
		if len(entry.People) > 0 {
			cmd.Printf("    People: %v\n", entry.People)
		}
	}
	return nil
}
