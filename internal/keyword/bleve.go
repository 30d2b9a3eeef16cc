package keyword

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/policyqa/internal/models"
)

var errIndexClosed = errors.New("keyword index is not open")

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	mu    sync.RWMutex
	path  string
	index bleve.Index
}

func newIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize + stop words, no stemming) keeps
	// policy terms matching exactly as written.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(FieldContent, textFieldMapping)
	docMapping.AddFieldMappingsAt(FieldCategory, textFieldMapping)
	docMapping.AddFieldMappingsAt(FieldSource, textFieldMapping)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{path: path, index: index}, nil
	}

	index, err := bleve.New(path, newIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{path: path, index: index}, nil
}

// docID encodes seq so that lexical ID order equals insertion order.
func docID(seq int64) string {
	return fmt.Sprintf("%020d", seq)
}

// Index adds a chunk under its sequence.
func (b *BleveIndex) Index(ctx context.Context, chunk *models.Chunk) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return errIndexClosed
	}
	return b.index.Index(docID(chunk.Seq), map[string]interface{}{
		FieldContent:  chunk.Content,
		FieldCategory: chunk.Category,
		FieldSource:   normalizeSourceForKeywordSearch(chunk.Source),
	})
}

// normalizeSourceForKeywordSearch returns the filename with underscores and hyphens
// replaced by spaces so "leave_policy-2024.pdf" matches "leave policy".
func normalizeSourceForKeywordSearch(source string) string {
	return strings.NewReplacer("_", " ", "-", " ").Replace(source)
}

// Search runs a match query over the requested fields and returns up to limit results.
// When opts.FuzzyEnabled is true, fuzzy matching is used for typo tolerance.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	fields := []string{FieldContent}
	fuzzyEnabled := false
	fuzziness := 1
	if opts != nil {
		if len(opts.Fields) > 0 {
			fields = opts.Fields
		}
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}
	for _, f := range fields {
		if f != FieldContent && f != FieldCategory && f != FieldSource {
			return nil, fmt.Errorf("unknown search field %q", f)
		}
	}
	if limit <= 0 {
		return []*KeywordResult{}, nil
	}

	queries := make([]blevequery.Query, 0, len(fields))
	for _, f := range fields {
		if fuzzyEnabled {
			queries = append(queries, buildFuzzyQuery(query, fuzziness, f))
		} else {
			mq := bleve.NewMatchQuery(query)
			mq.SetField(f)
			queries = append(queries, mq)
		}
	}
	var q blevequery.Query = queries[0]
	if len(queries) > 1 {
		q = bleve.NewDisjunctionQuery(queries...)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.SortBy([]string{"-_score", "_id"})

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return nil, errIndexClosed
	}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, 0, len(results.Hits))
	for _, hit := range results.Hits {
		seq, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, &KeywordResult{Seq: seq, Score: hit.Score})
	}
	return out, nil
}

// tokenizeQuery splits query into lowercase terms, filtering out empty strings.
func tokenizeQuery(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"'()")
		if w != "" {
			terms = append(terms, w)
		}
	}
	return terms
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries for each term in the query,
// restricted to field.
func buildFuzzyQuery(queryStr string, fuzziness int, field string) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField(field)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Delete removes a chunk from the index.
func (b *BleveIndex) Delete(ctx context.Context, seq int64) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return errIndexClosed
	}
	return b.index.Delete(docID(seq))
}

// Reset closes the index, removes it from disk and creates a new empty one at the same path.
// If recreation fails the index stays closed and every later call returns an error.
func (b *BleveIndex) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index != nil {
		if err := b.index.Close(); err != nil {
			return fmt.Errorf("failed to close Bleve index: %w", err)
		}
		b.index = nil
	}
	if err := os.RemoveAll(b.path); err != nil {
		return fmt.Errorf("failed to remove Bleve index: %w", err)
	}
	index, err := bleve.New(b.path, newIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to recreate Bleve index: %w", err)
	}
	b.index = index
	return nil
}

// DocCount returns the total number of chunks in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return 0, errIndexClosed
	}
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	return err
}
