// Package services contains the core application services: the stage
// runner that invokes the AI provider with caching and retry, the
// pipeline orchestrator that moves documents through their processing
// states, and the query engine for semantic search and aggregation.
package services
