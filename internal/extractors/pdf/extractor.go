// Package pdf extracts text from PDF documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	ledongthuc "github.com/ledongthuc/pdf"

	"github.com/archiva-labs/doclens/internal/core/domain"
	"github.com/archiva-labs/doclens/internal/core/ports/driven"
	"github.com/archiva-labs/doclens/internal/logger"
)

// Extractor handles PDF documents using a pure Go PDF reader. Image-only
// PDFs yield no text and are reported as extraction failures; OCR is
// not performed by this extractor.
type Extractor struct{}

// New creates a new PDF extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the text content of all pages.
func (e *Extractor) Extract(_ context.Context, path string, opts driven.OCROptions) (string, error) {
	if opts.Enabled {
		logger.Debug("OCR requested for %s but not supported; using embedded text", path)
	}

	file, reader, err := ledongthuc.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: opening pdf: %v", domain.ErrExtractionFailed, err)
	}
	defer file.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: reading pdf text: %v", domain.ErrExtractionFailed, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", fmt.Errorf("%w: reading pdf text: %v", domain.ErrExtractionFailed, err)
	}

	text := buf.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: pdf contains no extractable text", domain.ErrExtractionFailed)
	}
	return text, nil
}
