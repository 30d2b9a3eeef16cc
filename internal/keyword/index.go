// Package keyword provides keyword (BM25-style) indexing and search over chunks.
package keyword

import (
	"context"

	"github.com/hyperjump/policyqa/internal/models"
)

// Searchable chunk fields.
const (
	FieldContent  = "content"
	FieldCategory = "category"
	FieldSource   = "source"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// Fields restricts matching to these chunk fields. Empty means content only.
	Fields []string
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 1 when FuzzyEnabled is true.
	Fuzziness int
}

// KeywordIndex defines keyword search operations. Entries are keyed by the
// chunk's insertion sequence.
type KeywordIndex interface {
	Index(ctx context.Context, chunk *models.Chunk) error
	// Search returns up to limit results ordered by descending score, ties broken
	// by ascending sequence.
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	Delete(ctx context.Context, seq int64) error
	// Reset destroys the index and recreates it empty.
	Reset(ctx context.Context) error
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	Seq   int64
	Score float64
}
