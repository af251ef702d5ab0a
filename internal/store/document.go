package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrVersionMismatch = errors.New("document version mismatch")

// Document is a stored JSON body with a monotonically increasing version.
type Document struct {
	Name      string
	Body      []byte
	Version   int64
	UpdatedAt time.Time
}

// DocumentStore backs the generic document endpoint.
type DocumentStore struct {
	db *sql.DB
}

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Get returns the named document, or nil if it does not exist.
func (s *DocumentStore) Get(ctx context.Context, name string) (*Document, error) {
	d := &Document{Name: name}
	err := s.db.QueryRowContext(ctx,
		`SELECT body, version, updated_at FROM documents WHERE name = ?`, name,
	).Scan(&d.Body, &d.Version, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document %q: %w", name, err)
	}
	return d, nil
}

// Seed stores body as version 1 unless the document already exists.
func (s *DocumentStore) Seed(ctx context.Context, name string, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO documents (name, body, version, updated_at) VALUES (?, ?, 1, ?)`,
		name, body, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("seed document %q: %w", name, err)
	}
	return nil
}

// Put writes body and returns the new version. A nil expected writes
// unconditionally. Otherwise the stored version must equal *expected, where
// 0 means the document must not exist yet. On a mismatch the returned
// version is the one currently stored.
//
// Each case is a single statement so the version check and the write happen
// under one write lock.
func (s *DocumentStore) Put(ctx context.Context, name string, expected *int64, body []byte) (int64, error) {
	now := time.Now().UTC()

	if expected == nil {
		var next int64
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO documents (name, body, version, updated_at) VALUES (?, ?, 1, ?)
			 ON CONFLICT(name) DO UPDATE SET body = excluded.body, version = documents.version + 1, updated_at = excluded.updated_at
			 RETURNING version`,
			name, body, now,
		).Scan(&next)
		if err != nil {
			return 0, fmt.Errorf("put document %q: %w", name, err)
		}
		return next, nil
	}

	var res sql.Result
	var err error
	next := *expected + 1
	if *expected == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO documents (name, body, version, updated_at) VALUES (?, ?, 1, ?)
			 ON CONFLICT(name) DO NOTHING`,
			name, body, now,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE documents SET body = ?, version = version + 1, updated_at = ?
			 WHERE name = ? AND version = ?`,
			body, now, name, *expected,
		)
	}
	if err != nil {
		return 0, fmt.Errorf("put document %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("put document %q: %w", name, err)
	}
	if n == 1 {
		return next, nil
	}

	var current int64
	err = s.db.QueryRowContext(ctx, `SELECT version FROM documents WHERE name = ?`, name).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("read document version: %w", err)
	}
	return current, fmt.Errorf("put document %q: have %d, want %d: %w", name, current, *expected, ErrVersionMismatch)
}
