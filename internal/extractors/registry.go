package extractors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/archiva-labs/doclens/internal/core/domain"
	"github.com/archiva-labs/doclens/internal/core/ports/driven"
	"github.com/archiva-labs/doclens/internal/extractors/pdf"
	"github.com/archiva-labs/doclens/internal/extractors/plaintext"
	"github.com/archiva-labs/doclens/internal/logger"
)

// Ensure Registry implements the interface.
var _ driven.TextExtractor = (*Registry)(nil)

// Extractor converts one file format into plain text.
type Extractor interface {
	// Extract returns the plain text content of the file at path.
	Extract(ctx context.Context, path string, opts driven.OCROptions) (string, error)
}

// Registry routes extraction requests to a format extractor by file
// extension. The format allowlist and the size ceiling are enforced
// here, before any extractor touches the file.
type Registry struct {
	cfg        domain.Config
	extractors map[string]Extractor
}

// NewRegistry creates a registry with the built-in format extractors.
func NewRegistry(cfg domain.Config) *Registry {
	plain := plaintext.New()
	return &Registry{
		cfg: cfg,
		extractors: map[string]Extractor{
			".txt": plain,
			".md":  plain,
			".pdf": pdf.New(),
		},
	}
}

// Register adds or replaces the extractor for an extension.
func (r *Registry) Register(ext string, extractor Extractor) {
	r.extractors[strings.ToLower(ext)] = extractor
}

// ExtractText returns the plain text content of the referenced file.
func (r *Registry) ExtractText(ctx context.Context, fileRef string, opts driven.OCROptions) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileRef))
	if !r.cfg.SupportsFormat(ext) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, ext)
	}

	extractor, ok := r.extractors[ext]
	if !ok {
		return "", fmt.Errorf("%w: no extractor for %s", domain.ErrUnsupportedFormat, ext)
	}

	info, err := os.Stat(fileRef)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}
	if r.cfg.MaxFileSizeBytes > 0 && info.Size() > r.cfg.MaxFileSizeBytes {
		return "", fmt.Errorf("%w: %d bytes (limit %d)", domain.ErrFileTooLarge, info.Size(), r.cfg.MaxFileSizeBytes)
	}

	logger.Debug("Extracting %s (%d bytes)", fileRef, info.Size())
	text, err := extractor.Extract(ctx, fileRef, opts)
	if err != nil {
		return "", err
	}
	return text, nil
}
