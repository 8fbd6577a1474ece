// Command doclens is the document analysis and semantic retrieval CLI.
// It wires the configuration, storage, vector index, model provider and
// services together and hands control to the cli package.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/archiva-labs/doclens/internal/adapters/driven/config/file"
	"github.com/archiva-labs/doclens/internal/adapters/driven/provider/openai"
	"github.com/archiva-labs/doclens/internal/adapters/driven/storage/sqlite"
	"github.com/archiva-labs/doclens/internal/adapters/driven/vector/ivf"
	"github.com/archiva-labs/doclens/internal/adapters/driving/cli"
	"github.com/archiva-labs/doclens/internal/adapters/driving/watch"
	cachemem "github.com/archiva-labs/doclens/internal/cache/memory"
	"github.com/archiva-labs/doclens/internal/core/domain"
	"github.com/archiva-labs/doclens/internal/core/services"
	"github.com/archiva-labs/doclens/internal/extractors"
	"github.com/archiva-labs/doclens/internal/logger"
)

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	cfg := settings.Config

	store, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	defer store.Close()

	index, err := ivf.New(ivf.Config{
		Dimension: cfg.VectorDimension,
		Metric:    cfg.Metric,
		Lists:     cfg.IndexLists,
		Probes:    cfg.IndexProbes,
	})
	if err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	defer index.Close()

	if err := rebuildIndex(store, index); err != nil {
		return fmt.Errorf("rebuild vector index: %w", err)
	}

	// Without an API key the services stay unconfigured and the
	// commands that need them report that instead of failing midway.
	if settings.APIKey != "" {
		provider, err := openai.New(openai.Config{
			APIKey:         settings.APIKey,
			BaseURL:        settings.BaseURL,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
			Dimensions:     cfg.VectorDimension,
		})
		if err != nil {
			return fmt.Errorf("create provider: %w", err)
		}
		defer provider.Close()

		cache := cachemem.New(cfg.CacheCapacity)
		runner := services.NewStageRunner(cfg, provider, cache)

		pipeline, err := services.NewPipeline(cfg, extractors.NewRegistry(cfg), runner, store, index)
		if err != nil {
			return fmt.Errorf("create pipeline: %w", err)
		}
		query := services.NewQueryService(cfg, runner, store, index, cache)

		cli.Configure(pipeline, query)
		cli.ConfigureWatch(func(ctx context.Context, opts domain.AnalysisOptions) error {
			inbox, err := inboxDir(settings)
			if err != nil {
				return err
			}
			return watch.New(pipeline, cfg, inbox, opts).Run(ctx)
		})
	} else {
		logger.Debug("OPENAI_API_KEY not set, analysis commands unavailable")
	}

	cli.SetVersion(version)
	return cli.Execute()
}

// loadSettings reads the config file named by DOCLENS_CONFIG, falling
// back to the default location.
func loadSettings() (*file.Settings, error) {
	path := os.Getenv("DOCLENS_CONFIG")
	if path == "" {
		var err error
		path, err = file.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return file.Load(path)
}

// rebuildIndex reloads persisted embeddings into the in-process vector
// index, which is not durable across restarts.
func rebuildIndex(store *sqlite.Store, index *ivf.Index) error {
	ctx := context.Background()
	docs, err := store.ListDocuments(ctx)
	if err != nil {
		return err
	}

	for i := range docs {
		if docs[i].State != domain.StateCompleted || len(docs[i].Embedding) == 0 {
			continue
		}
		if err := index.Upsert(ctx, docs[i].ID, docs[i].Embedding); err != nil {
			return fmt.Errorf("index document %s: %w", docs[i].ID, err)
		}
	}
	return nil
}

// inboxDir resolves the watch directory, creating it if needed.
func inboxDir(settings *file.Settings) (string, error) {
	dir := settings.InboxDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".doclens", "inbox")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create inbox directory: %w", err)
	}
	return dir, nil
}
