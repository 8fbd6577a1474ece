// Package watch drives the analysis pipeline from a filesystem inbox:
// files dropped into the watched directory are registered and analysed
// automatically.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/archiva-labs/doclens/internal/core/domain"
	"github.com/archiva-labs/doclens/internal/core/ports/driving"
	"github.com/archiva-labs/doclens/internal/logger"
)

// settleDelay is how long a new file must be quiet before it is picked
// up, so partially copied files are not analysed mid-write.
const defaultSettleDelay = 500 * time.Millisecond

// Watcher monitors a directory and feeds new documents into the
// pipeline.
type Watcher struct {
	pipeline    driving.AnalysisPipeline
	cfg         domain.Config
	dir         string
	opts        domain.AnalysisOptions
	settleDelay time.Duration
}

// New creates a watcher for the given inbox directory.
func New(pipeline driving.AnalysisPipeline, cfg domain.Config, dir string, opts domain.AnalysisOptions) *Watcher {
	return &Watcher{
		pipeline:    pipeline,
		cfg:         cfg,
		dir:         dir,
		opts:        opts,
		settleDelay: defaultSettleDelay,
	}
}

// Run watches the inbox until the context ends. Each supported file
// that appears is registered and analysed; failures are logged and do
// not stop the watch loop.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	logger.Info("Watching %s for new documents", w.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			w.handle(ctx, event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watch error: %v", err)
		}
	}
}

// handle registers and analyses a newly created file.
func (w *Watcher) handle(ctx context.Context, path string) {
	ext := strings.ToLower(filepath.Ext(path))
	if !w.cfg.SupportsFormat(ext) {
		logger.Debug("Ignoring %s (unsupported format)", path)
		return
	}

	// Let the writer finish before reading.
	select {
	case <-ctx.Done():
		return
	case <-time.After(w.settleDelay):
	}

	doc, err := w.pipeline.Register(ctx, filepath.Base(path), path)
	if err != nil {
		logger.Warn("Failed to register %s: %v", path, err)
		return
	}

	if err := w.pipeline.StartAnalysis(ctx, doc.ID, w.opts); err != nil {
		logger.Warn("Analysis of %s failed: %v", path, err)
		return
	}
	logger.Info("Analysed %s as document %s", filepath.Base(path), doc.ID)
}
