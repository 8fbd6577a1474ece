// Package plaintext extracts text from plain text and markdown files.
package plaintext

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/archiva-labs/doclens/internal/core/domain"
	"github.com/archiva-labs/doclens/internal/core/ports/driven"
)

// Extractor handles plain text documents. The file content is used as
// is, with line endings normalised to \n.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the file content as text.
func (e *Extractor) Extract(_ context.Context, path string, _ driven.OCROptions) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return text, nil
}
