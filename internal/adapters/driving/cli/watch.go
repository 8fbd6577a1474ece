package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/archiva-labs/doclens/internal/core/domain"
)

// watchRunner starts the inbox watcher; injected via ConfigureWatch.
var watchRunner func(ctx context.Context, opts domain.AnalysisOptions) error

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the inbox directory for new documents",
	Long: `Monitors the configured inbox directory and automatically analyses
every supported document dropped into it. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&skipClassify, "no-classify", false, "skip classification")
	watchCmd.Flags().BoolVar(&skipEntities, "no-entities", false, "skip entity extraction")
	watchCmd.Flags().BoolVar(&skipSummarize, "no-summary", false, "skip summarisation")
	watchCmd.Flags().BoolVar(&skipEmbed, "no-embed", false, "skip embedding and indexing")
	rootCmd.AddCommand(watchCmd)
}

// ConfigureWatch injects the watch runner.
func ConfigureWatch(run func(ctx context.Context, opts domain.AnalysisOptions) error) {
	watchRunner = run
}

func runWatch(_ *cobra.Command, _ []string) error {
	if watchRunner == nil {
		return errors.New("watcher not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := watchRunner(ctx, analysisOptions())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
