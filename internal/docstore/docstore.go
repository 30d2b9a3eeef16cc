// Package docstore combines the SQLite chunk table and the Bleve keyword index
// into the single document store used for ingestion and retrieval.
package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/policyqa/internal/models"
)

// ErrStoreUnavailable is returned by every operation when the store could not be opened.
var ErrStoreUnavailable = errors.New("database not available")

// Backend is the document store contract used by the orchestrators.
type Backend interface {
	// Insert appends one chunk. It assigns the chunk's Seq.
	Insert(ctx context.Context, chunk *models.Chunk) error
	// Search returns up to limit hits over the named fields, ordered by
	// descending score with ties in insertion order.
	Search(ctx context.Context, query string, limit int, fields []string) ([]*models.SearchHit, error)
	// ListSources returns the distinct source names in ascending order.
	ListSources(ctx context.Context) ([]string, error)
	// Clear destroys all chunks and recreates the schema empty.
	Clear(ctx context.Context) error
	Connected() bool
	Close() error
}

// disconnected is the Backend used when the store could not be opened at startup.
type disconnected struct {
	cause error
}

// Disconnected returns a Backend whose every operation fails with ErrStoreUnavailable.
func Disconnected(cause error) Backend {
	return &disconnected{cause: cause}
}

func (d *disconnected) err() error {
	if d.cause == nil {
		return ErrStoreUnavailable
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, d.cause)
}

func (d *disconnected) Insert(context.Context, *models.Chunk) error { return d.err() }

func (d *disconnected) Search(context.Context, string, int, []string) ([]*models.SearchHit, error) {
	return nil, d.err()
}

func (d *disconnected) ListSources(context.Context) ([]string, error) { return nil, d.err() }
func (d *disconnected) Clear(context.Context) error                   { return d.err() }
func (d *disconnected) Connected() bool                               { return false }
func (d *disconnected) Close() error                                  { return nil }
