// Package domain contains the core business entities for doclens:
// documents, chunks, analysis stage results, processing states and the
// pipeline configuration. It has no dependencies on adapters or services.
package domain
