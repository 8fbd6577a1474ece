package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/archiva-labs/doclens/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/archiva-labs/doclens/internal/core/domain"
	"github.com/archiva-labs/doclens/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.DocumentStore = (*Store)(nil)

// Store is a SQLite-backed document store. Structured stage results are
// stored as JSON columns and the embedding as a little-endian float32
// blob, so a record round-trips without loss.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.doclens/data/documents.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".doclens", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "documents.db")

	// WAL mode for concurrent reads during an analysis run.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_documents.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// SaveDocument stores or replaces a document record in one write.
func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	optionsJSON, err := json.Marshal(doc.Options)
	if err != nil {
		return fmt.Errorf("marshalling options: %w", err)
	}
	classificationJSON, err := marshalNullable(doc.Classification)
	if err != nil {
		return fmt.Errorf("marshalling classification: %w", err)
	}
	entitiesJSON, err := marshalNullable(doc.Entities)
	if err != nil {
		return fmt.Errorf("marshalling entities: %w", err)
	}
	summaryJSON, err := marshalNullable(doc.Summary)
	if err != nil {
		return fmt.Errorf("marshalling summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (
			id, filename, file_ref, mime_type, size_bytes, file_hash,
			content, type, state, options, classification, entities,
			summary, embedding, failed_stage, error_detail,
			uploaded_at, processed_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			file_ref = excluded.file_ref,
			mime_type = excluded.mime_type,
			size_bytes = excluded.size_bytes,
			file_hash = excluded.file_hash,
			content = excluded.content,
			type = excluded.type,
			state = excluded.state,
			options = excluded.options,
			classification = excluded.classification,
			entities = excluded.entities,
			summary = excluded.summary,
			embedding = excluded.embedding,
			failed_stage = excluded.failed_stage,
			error_detail = excluded.error_detail,
			uploaded_at = excluded.uploaded_at,
			processed_at = excluded.processed_at,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Filename, doc.FileRef, doc.MimeType, doc.SizeBytes, doc.FileHash,
		doc.Content, string(doc.Type), string(doc.State), string(optionsJSON),
		classificationJSON, entitiesJSON, summaryJSON,
		float32SliceToBytes(doc.Embedding), string(doc.FailedStage), doc.ErrorDetail,
		doc.UploadedAt.UTC(), nullTime(doc.ProcessedAt), doc.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, file_ref, mime_type, size_bytes, file_hash,
			content, type, state, options, classification, entities,
			summary, embedding, failed_stage, error_detail,
			uploaded_at, processed_at, updated_at
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns all persisted documents, oldest upload first.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, file_ref, mime_type, size_bytes, file_hash,
			content, type, state, options, classification, entities,
			summary, embedding, failed_stage, error_detail,
			uploaded_at, processed_at, updated_at
		FROM documents ORDER BY uploaded_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document record.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanDocument.
type scanner interface {
	Scan(dest ...any) error
}

// scanDocument reads one document row.
func scanDocument(row scanner) (*domain.Document, error) {
	var (
		doc                domain.Document
		docType            string
		state              string
		optionsJSON        string
		classificationJSON sql.NullString
		entitiesJSON       sql.NullString
		summaryJSON        sql.NullString
		embeddingBlob      []byte
		failedStage        string
		processedAt        sql.NullTime
	)

	if err := row.Scan(
		&doc.ID, &doc.Filename, &doc.FileRef, &doc.MimeType, &doc.SizeBytes, &doc.FileHash,
		&doc.Content, &docType, &state, &optionsJSON, &classificationJSON, &entitiesJSON,
		&summaryJSON, &embeddingBlob, &failedStage, &doc.ErrorDetail,
		&doc.UploadedAt, &processedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}

	doc.Type = domain.DocumentType(docType)
	doc.State = domain.ProcessingState(state)
	doc.FailedStage = domain.StageKind(failedStage)
	doc.Embedding = bytesToFloat32Slice(embeddingBlob)
	if processedAt.Valid {
		doc.ProcessedAt = processedAt.Time
	}

	if err := json.Unmarshal([]byte(optionsJSON), &doc.Options); err != nil {
		return nil, fmt.Errorf("unmarshalling options: %w", err)
	}
	if err := unmarshalNullable(classificationJSON, &doc.Classification); err != nil {
		return nil, fmt.Errorf("unmarshalling classification: %w", err)
	}
	if err := unmarshalNullable(entitiesJSON, &doc.Entities); err != nil {
		return nil, fmt.Errorf("unmarshalling entities: %w", err)
	}
	if err := unmarshalNullable(summaryJSON, &doc.Summary); err != nil {
		return nil, fmt.Errorf("unmarshalling summary: %w", err)
	}

	return &doc, nil
}

// marshalNullable encodes a result pointer as JSON, mapping nil to SQL
// NULL.
func marshalNullable(v any) (any, error) {
	switch ptr := v.(type) {
	case *domain.Classification:
		if ptr == nil {
			return nil, nil
		}
	case *domain.EntitySet:
		if ptr == nil {
			return nil, nil
		}
	case *domain.Summary:
		if ptr == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// unmarshalNullable decodes a nullable JSON column into a result
// pointer, leaving it nil for SQL NULL.
func unmarshalNullable(column sql.NullString, out any) error {
	if !column.Valid || column.String == "" || column.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(column.String), out)
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
