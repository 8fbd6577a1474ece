// Package extractors converts stored document files into plain text.
//
// A Registry dispatches on the file extension to a format-specific
// extractor and enforces the configured format allowlist and size
// ceiling before any file content is read. Format extractors live in
// subpackages (plaintext, pdf) and are registered at construction.
package extractors
