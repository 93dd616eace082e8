// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package docstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound indicates the requested document id does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store is closed")
)

// =============================================================================
// SCHEMA
// =============================================================================

// Schema for the document store. The body column holds the full document
// JSON; id/type/session_id/created_at are the only indexed projections.
// seq is a store-assigned monotonic insert sequence: created_at is
// millisecond-truncated, so documents written back-to-back (a user turn
// and its AI placeholder) routinely share a timestamp, and seq is what
// keeps them in insert order.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id         TEXT PRIMARY KEY,
    type       TEXT NOT NULL,
    session_id TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,  -- Unix milliseconds, the ordering key
    updated_at INTEGER NOT NULL,
    seq        INTEGER NOT NULL,  -- insert order, tiebreak within one millisecond
    body       TEXT NOT NULL
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(type, created_at);
CREATE INDEX IF NOT EXISTS idx_documents_session ON documents(session_id, created_at);
`

// =============================================================================
// DOCUMENT TYPE
// =============================================================================

// Document is one stored record. Body is the authoritative JSON; the other
// fields mirror what the store projects into columns for querying.
type Document struct {
	ID        string          `json:"_id"`
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Body      json.RawMessage `json:"-"`
}

// Decode unmarshals the document body into v.
func (d *Document) Decode(v any) error {
	return json.Unmarshal(d.Body, v)
}

// =============================================================================
// STORE
// =============================================================================

// Store is the SQLite-backed document store.
type Store struct {
	db   *sql.DB
	path string

	subs *subscriptions
}

// Open opens (creating if necessary) the document store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports one writer at a time; keep the pool at one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{
		db:   db,
		path: path,
		subs: newSubscriptions(),
	}, nil
}

// Close stops live queries and closes the database.
func (s *Store) Close() error {
	s.subs.close()
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// =============================================================================
// GET / PUT
// =============================================================================

// Get returns the document with the given id, or ErrNotFound.
func (s *Store) Get(id string) (*Document, error) {
	row := s.db.QueryRow(
		`SELECT id, type, session_id, created_at, body FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

// Put writes a document, assigning an id if it has none. Writes are
// last-write-wins per id: a Put for an existing id replaces the stored
// body wholesale. Returns the document id.
func (s *Store) Put(doc *Document) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if len(doc.Body) == 0 {
		body, err := json.Marshal(doc)
		if err != nil {
			return "", fmt.Errorf("failed to marshal document body: %w", err)
		}
		doc.Body = body
	}

	// A rewrite of an existing id keeps its original seq: last-write-wins
	// replaces content, never a document's position in the order.
	_, err := s.db.Exec(`
		INSERT INTO documents (id, type, session_id, created_at, updated_at, seq, body)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM documents), ?)
		ON CONFLICT(id) DO UPDATE SET
			type       = excluded.type,
			session_id = excluded.session_id,
			updated_at = excluded.updated_at,
			body       = excluded.body`,
		doc.ID, doc.Type, doc.SessionID,
		doc.CreatedAt.UnixMilli(), time.Now().UnixMilli(), string(doc.Body))
	if err != nil {
		return "", fmt.Errorf("failed to put document: %w", err)
	}

	// Wake live queries after the write is committed.
	s.subs.notify()

	return doc.ID, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Query selects documents by type and/or owning session, ordered by the
// created_at ordering key.
type Query struct {
	Type       string
	SessionID  string
	Descending bool
	Limit      int
}

// Find runs a query and returns the matching documents in order.
func (s *Store) Find(q Query) ([]*Document, error) {
	sqlStr := `SELECT id, type, session_id, created_at, body FROM documents WHERE 1=1`
	var args []any

	if q.Type != "" {
		sqlStr += ` AND type = ?`
		args = append(args, q.Type)
	}
	if q.SessionID != "" {
		sqlStr += ` AND session_id = ?`
		args = append(args, q.SessionID)
	}

	// Documents created in the same millisecond fall back to insert order.
	if q.Descending {
		sqlStr += ` ORDER BY created_at DESC, seq DESC`
	} else {
		sqlStr += ` ORDER BY created_at, seq`
	}

	if q.Limit > 0 {
		sqlStr += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*Document, error) {
	var doc Document
	var createdAt int64
	var body string

	if err := s.Scan(&doc.ID, &doc.Type, &doc.SessionID, &createdAt, &body); err != nil {
		return nil, err
	}
	doc.CreatedAt = time.UnixMilli(createdAt)
	doc.Body = json.RawMessage(body)
	return &doc, nil
}
