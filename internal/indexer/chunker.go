// Package indexer provides PDF chunking and ingestion into the document store.
package indexer

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MinChunkLength is the trimmed length a chunk must exceed to be kept.
const MinChunkLength = 30

// ErrEmptyDocument is returned when no chunk of a document survives filtering.
var ErrEmptyDocument = errors.New("could not create chunks")

// separators are tried in order; the empty separator splits on characters.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits text into overlapping chunks of at most chunkSize characters,
// preferring paragraph, line, sentence and word boundaries in that order.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	minLength    int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		minLength:    MinChunkLength,
	}
}

// ExploratoryChunker returns the larger preset used for ad-hoc batch processing.
func ExploratoryChunker() *Chunker {
	return NewChunker(1000, 200)
}

// WithMinLength returns a copy of c that keeps chunks longer than n characters.
func (c *Chunker) WithMinLength(n int) *Chunker {
	cp := *c
	cp.minLength = n
	return &cp
}

// Size returns the maximum chunk length.
func (c *Chunker) Size() int { return c.chunkSize }

// Split divides text into chunks. Text no longer than the chunk size is
// returned unchanged as a single chunk.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= c.chunkSize {
		return []string{text}
	}
	var chunks []string
	for _, ch := range c.splitRecursive(text, separators) {
		if ch = strings.TrimSpace(ch); ch != "" {
			chunks = append(chunks, ch)
		}
	}
	return chunks
}

// ChunkDocument splits text and drops chunks whose trimmed length does not
// exceed the minimum. Returns ErrEmptyDocument if nothing is left.
func (c *Chunker) ChunkDocument(text string) ([]string, error) {
	var kept []string
	for _, ch := range c.Split(text) {
		ch = strings.TrimSpace(ch)
		if utf8.RuneCountInString(ch) > c.minLength {
			kept = append(kept, ch)
		}
	}
	if len(kept) == 0 {
		return nil, ErrEmptyDocument
	}
	return kept, nil
}

func (c *Chunker) splitRecursive(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	var rest []string
	for i, s := range seps {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		pieces = splitRunes(text, 1)
	} else {
		pieces = strings.SplitAfter(text, sep)
	}

	var out, good []string
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) <= c.chunkSize {
			good = append(good, p)
			continue
		}
		if len(good) > 0 {
			out = append(out, c.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, splitRunes(p, c.chunkSize)...)
		} else {
			out = append(out, c.splitRecursive(p, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, c.merge(good)...)
	}
	return out
}

// merge joins pieces greedily into chunks of at most chunkSize characters.
// When a chunk is emitted, trailing pieces totalling at most chunkOverlap
// characters are carried into the next chunk.
func (c *Chunker) merge(pieces []string) []string {
	var chunks []string
	var current []string
	total := 0
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > c.chunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, ""))
			for total > c.chunkOverlap || (total+n > c.chunkSize && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}

func splitRunes(text string, size int) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/size+1)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}
