package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CredentialStore keeps named secrets such as the GitHub access token.
type CredentialStore struct {
	db *sql.DB
}

func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Get returns the secret, or "" if none is stored.
func (s *CredentialStore) Get(ctx context.Context, name string) (string, error) {
	var secret string
	err := s.db.QueryRowContext(ctx, `SELECT secret FROM credentials WHERE name = ?`, name).Scan(&secret)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential %q: %w", name, err)
	}
	return secret, nil
}

func (s *CredentialStore) Set(ctx context.Context, name, secret string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (name, secret, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(name) DO UPDATE SET secret = excluded.secret, updated_at = excluded.updated_at`,
		name, secret,
	)
	if err != nil {
		return fmt.Errorf("set credential %q: %w", name, err)
	}
	return nil
}

func (s *CredentialStore) Clear(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("clear credential %q: %w", name, err)
	}
	return nil
}

// Named binds the store to one credential name.
func (s *CredentialStore) Named(name string) *NamedCredential {
	return &NamedCredential{store: s, name: name}
}

// NamedCredential is a single stored credential. It satisfies both
// remote.CredentialSource and syncer.Credentials.
type NamedCredential struct {
	store *CredentialStore
	name  string
}

func (c *NamedCredential) Credential(ctx context.Context) (string, error) {
	return c.store.Get(ctx, c.name)
}

func (c *NamedCredential) Set(ctx context.Context, secret string) error {
	return c.store.Set(ctx, c.name, secret)
}

func (c *NamedCredential) Clear(ctx context.Context) error {
	return c.store.Clear(ctx, c.name)
}
