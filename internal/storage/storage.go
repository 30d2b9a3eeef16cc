// Package storage defines the persistence interface for document chunks.
package storage

import (
	"context"

	"github.com/hyperjump/policyqa/internal/models"
)

// Storage defines chunk persistence operations. Chunks are append-only; the
// only removals are a single just-inserted chunk and clearing everything.
type Storage interface {
	// InsertChunk stores chunk and sets its Seq and CreatedAt.
	InsertChunk(ctx context.Context, chunk *models.Chunk) error
	GetChunk(ctx context.Context, seq int64) (*models.Chunk, error)
	GetChunksBySeq(ctx context.Context, seqs []int64) (map[int64]*models.Chunk, error)
	DeleteChunk(ctx context.Context, seq int64) error

	ListSources(ctx context.Context) ([]string, error)
	CountChunks(ctx context.Context) (int64, error)
	CountChunksBySource(ctx context.Context, source string) (int64, error)

	// Clear drops and recreates the schema.
	Clear(ctx context.Context) error

	Close() error
}
