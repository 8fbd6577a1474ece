// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): text extraction, metadata storage, the AI
// provider, the result cache and the vector index.
package driven
