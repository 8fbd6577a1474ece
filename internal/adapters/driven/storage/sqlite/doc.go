// Package sqlite provides a SQLite-backed implementation of the
// document store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation
// that requires no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in
// the migrations/ directory. Structured stage results (classification,
// entities, summary) are JSON columns; the embedding vector is stored
// as a little-endian float32 blob.
//
// # Data Location
//
// By default, the database is stored at ~/.doclens/data/documents.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode.
package sqlite
