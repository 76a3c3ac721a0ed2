// Package store persists documents, chunks, sessions, and preferences in a
// local SQLite database. Embeddings are stored as JSON arrays alongside the
// chunk text; the vector index is rebuilt in memory from these rows at
// startup, so no vector database is involved.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Document is a persisted source document. Chunk content lives in separate
// rows keyed by DocumentID.
type Document struct {
	ID        string
	Title     string
	Source    string
	CreatedAt time.Time
}

// Chunk is a persisted retrieval unit with its embedding.
type Chunk struct {
	ID         string
	DocumentID string
	Seq        int
	Content    string
	Section    string
	Offset     int
	Embedding  []float32
}

// SessionRow is a raw persisted session. Data is the JSON session blob;
// decoding is the caller's concern so a corrupt blob never fails a listing.
type SessionRow struct {
	ID        string
	Data      []byte
	UpdatedAt time.Time
}

// Store wraps the SQLite connection.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. The caller owns the returned Store and must Close it.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// modernc.org/sqlite serializes writes itself; a single connection
	// avoids SQLITE_BUSY between concurrent goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutDocument inserts or replaces a document row.
func (s *Store) PutDocument(ctx context.Context, d Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, source, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, source = excluded.source`,
		d.ID, d.Title, d.Source, d.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("putting document %s: %w", d.ID, err)
	}
	return nil
}

// Document returns a single document or ErrNotFound.
func (s *Store) Document(ctx context.Context, id string) (Document, error) {
	var d Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, source, created_at FROM documents WHERE id = ?`, id).
		Scan(&d.ID, &d.Title, &d.Source, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("loading document %s: %w", id, err)
	}
	return d, nil
}

// Documents returns all documents, newest first.
func (s *Store) Documents(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, source, created_at FROM documents ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Source, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and all its chunks in one transaction.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete of %s: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	return tx.Commit()
}

// PutChunks inserts chunk rows in one transaction.
func (s *Store) PutChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning chunk insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (id, document_id, seq, content, section, start_offset, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		emb, err := json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding for chunk %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Seq, c.Content, c.Section, c.Offset, string(emb)); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// ChunksByDocument returns the chunks of one document in sequence order.
func (s *Store) ChunksByDocument(ctx context.Context, documentID string) ([]Chunk, error) {
	return s.queryChunks(ctx, `
		SELECT id, document_id, seq, content, section, start_offset, embedding
		FROM chunks WHERE document_id = ? ORDER BY seq`, documentID)
}

// AllChunks returns every chunk row. Rows with a malformed embedding are
// skipped so one corrupt row cannot prevent the index from loading.
func (s *Store) AllChunks(ctx context.Context) ([]Chunk, error) {
	return s.queryChunks(ctx, `
		SELECT id, document_id, seq, content, section, start_offset, embedding
		FROM chunks ORDER BY document_id, seq`)
}

func (s *Store) queryChunks(ctx context.Context, query string, args ...any) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var emb string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Seq, &c.Content, &c.Section, &c.Offset, &emb); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(emb), &c.Embedding); err != nil {
			// Corrupt embedding: skip the row rather than fail the load.
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// PutSession inserts or replaces a session blob. updatedAt is stored as
// given so writing the same snapshot twice leaves the row unchanged.
func (s *Store) PutSession(ctx context.Context, id string, data []byte, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		id, string(data), updatedAt.UTC())
	if err != nil {
		return fmt.Errorf("putting session %s: %w", id, err)
	}
	return nil
}

// SessionRow returns one raw session row or ErrNotFound.
func (s *Store) SessionRow(ctx context.Context, id string) (SessionRow, error) {
	var r SessionRow
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, data, updated_at FROM sessions WHERE id = ?`, id).
		Scan(&r.ID, &data, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRow{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return SessionRow{}, fmt.Errorf("loading session %s: %w", id, err)
	}
	r.Data = []byte(data)
	return r, nil
}

// SessionRows returns all raw session rows, most recently updated first.
func (s *Store) SessionRows(ctx context.Context) ([]SessionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data, updated_at FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		var data string
		if err := rows.Scan(&r.ID, &data, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		r.Data = []byte(data)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteSession removes a session row. Deleting a missing session is a no-op.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// SetPreference stores one preference value under a category.
func (s *Store) SetPreference(ctx context.Context, category, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (category, key, value) VALUES (?, ?, ?)
		ON CONFLICT(category, key) DO UPDATE SET value = excluded.value`,
		category, key, value)
	if err != nil {
		return fmt.Errorf("setting preference %s/%s: %w", category, key, err)
	}
	return nil
}

// Preference returns one preference value or ErrNotFound.
func (s *Store) Preference(ctx context.Context, category, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM preferences WHERE category = ? AND key = ?`, category, key).
		Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("preference %s/%s: %w", category, key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("loading preference %s/%s: %w", category, key, err)
	}
	return value, nil
}
