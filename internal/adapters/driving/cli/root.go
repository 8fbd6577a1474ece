// Package cli provides the doclens command line interface. Commands
// are thin shells over the driving ports; services are injected via
// Configure before Execute runs.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/archiva-labs/doclens/internal/core/ports/driving"
	"github.com/archiva-labs/doclens/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Injected services. Commands fail gracefully when unset.
var (
	pipelineService driving.AnalysisPipeline
	queryService    driving.QueryEngine
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "doclens",
	Short: "Document analysis and semantic retrieval",
	Long: `doclens ingests legal and financial documents, runs AI analysis
stages (classification, entity extraction, summarisation, embedding)
and answers semantic search and aggregation queries over the results.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Configure injects the services the commands operate on.
func Configure(pipeline driving.AnalysisPipeline, query driving.QueryEngine) {
	pipelineService = pipeline
	queryService = query
}

// SetVersion sets the version string reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
