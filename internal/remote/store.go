// Package remote talks to the shared inventory document. Every store exposes
// the same compare-and-swap contract: a write names the version it expects
// to replace and fails with ErrConflict when someone else got there first.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/fridgetracker/internal/model"
)

var (
	ErrConflict     = errors.New("remote version conflict")
	ErrUnauthorized = errors.New("remote rejected credentials")
	ErrNotFound     = errors.New("remote document not found")
	ErrUnavailable  = errors.New("remote unavailable")
)

// DefaultTimeout bounds every remote round trip.
const DefaultTimeout = 10 * time.Second

// Snapshot is a fetched document together with its version token.
type Snapshot struct {
	Document *model.Document
	Version  string
}

// Store is a remote holder of the inventory document.
type Store interface {
	// Fetch reads the document and its current version.
	Fetch(ctx context.Context) (Snapshot, error)
	// Version reads only the current version token.
	Version(ctx context.Context) (string, error)
	// Write replaces the document if its version still equals expected and
	// returns the new version. An empty expected version creates the
	// document and fails with ErrConflict if it already exists.
	Write(ctx context.Context, expected string, doc *model.Document) (string, error)
}

// Nop is the store used when no remote is configured.
type Nop struct{}

func (Nop) Fetch(context.Context) (Snapshot, error) {
	return Snapshot{}, fmt.Errorf("fetch: no remote configured: %w", ErrUnavailable)
}

func (Nop) Version(context.Context) (string, error) {
	return "", fmt.Errorf("version: no remote configured: %w", ErrUnavailable)
}

func (Nop) Write(context.Context, string, *model.Document) (string, error) {
	return "", fmt.Errorf("write: no remote configured: %w", ErrUnavailable)
}

// statusError maps an unexpected HTTP status onto the package errors.
// conflict lists the codes the backend uses for a stale version.
func statusError(op string, code int, conflict ...int) error {
	for _, c := range conflict {
		if code == c {
			return fmt.Errorf("%s: status %d: %w", op, code, ErrConflict)
		}
	}
	switch code {
	case 401, 403:
		return fmt.Errorf("%s: status %d: %w", op, code, ErrUnauthorized)
	case 404:
		return fmt.Errorf("%s: status %d: %w", op, code, ErrNotFound)
	default:
		return fmt.Errorf("%s: status %d: %w", op, code, ErrUnavailable)
	}
}

func decodeSnapshot(op string, data []byte, version string) (Snapshot, error) {
	doc, err := model.DecodeDocument(data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}
	return Snapshot{Document: doc, Version: version}, nil
}
