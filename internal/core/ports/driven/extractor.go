package driven

import "context"

// OCROptions configures optical character recognition during extraction.
type OCROptions struct {
	// Enabled requests OCR for image-only content.
	Enabled bool

	// Language is the OCR language hint (e.g. "ita").
	Language string
}

// TextExtractor converts a stored file reference into plain text.
// Extraction (including OCR) is an external collaborator; implementations
// report domain.ErrExtractionFailed when text cannot be recovered and
// domain.ErrUnsupportedFormat for unknown formats.
type TextExtractor interface {
	// ExtractText returns the plain text content of the referenced file.
	ExtractText(ctx context.Context, fileRef string, opts OCROptions) (string, error)
}
