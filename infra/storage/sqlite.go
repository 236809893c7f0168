package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/porttrack/core/model"
	"github.com/kilianp07/porttrack/core/tracker"
)

// SQLiteStore persists the document as a single row so that each save is one
// atomic upsert.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS tracker_document (
        id INTEGER PRIMARY KEY CHECK (id = 1),
        updated_at INTEGER NOT NULL,
        vessels INTEGER NOT NULL,
        body TEXT NOT NULL
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Load returns the stored document or tracker.ErrNoDocument.
func (s *SQLiteStore) Load(ctx context.Context) (model.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM tracker_document WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, tracker.ErrNoDocument
	}
	if err != nil {
		return model.Document{}, err
	}
	var doc model.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return model.Document{}, fmt.Errorf("decode stored document: %w", err)
	}
	return doc, nil
}

// Save replaces the stored document.
func (s *SQLiteStore) Save(ctx context.Context, doc model.Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO tracker_document (id, updated_at, vessels, body)
        VALUES (1, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            updated_at = excluded.updated_at,
            vessels = excluded.vessels,
            body = excluded.body`,
		time.Now().Unix(), len(doc.Vessels), string(b))
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
