package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hyperjump/policyqa/internal/docstore"
	"github.com/hyperjump/policyqa/internal/llm"
	"github.com/hyperjump/policyqa/internal/models"
	"go.uber.org/zap"
)

// DefaultMaxFiles is the largest batch accepted by ValidateBatch.
const DefaultMaxFiles = 3

// ErrNothingStored is returned when every chunk insert for a file failed.
var ErrNothingStored = errors.New("failed to store any chunks")

// FileError ties an ingestion failure to the file that caused it.
type FileError struct {
	Filename string
	Err      error
}

func (e *FileError) Error() string { return fmt.Sprintf("%s: %v", e.Filename, e.Err) }

func (e *FileError) Unwrap() error { return e.Err }

// TextExtractor returns the text of a PDF.
type TextExtractor interface {
	ExtractPDF(ctx context.Context, content []byte) (string, error)
}

// Categorizer labels chunks, one label per chunk.
type Categorizer interface {
	Categorize(ctx context.Context, chunks []string) llm.Outcome[[]string]
}

// Indexer runs the ingestion pipeline: extract, clean, chunk, classify, store.
type Indexer struct {
	store           docstore.Backend
	extractor       TextExtractor
	classifier      Categorizer
	chunker         *Chunker
	maxFiles        int
	defaultCategory string
	logger          *zap.Logger // optional; when set, logs debug events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (file ingested, chunk store failures, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithChunker replaces the default 500/50 chunker.
func WithChunker(c *Chunker) IndexerOption {
	return func(idx *Indexer) { idx.chunker = c }
}

// WithMaxFiles sets the largest accepted batch.
func WithMaxFiles(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.maxFiles = n
		}
	}
}

// WithDefaultCategory sets the label used when no classifier is configured.
func WithDefaultCategory(category string) IndexerOption {
	return func(idx *Indexer) {
		if category != "" {
			idx.defaultCategory = category
		}
	}
}

// NewIndexer creates an indexer with the given dependencies.
// classifier may be nil; when nil, every chunk gets the default category.
func NewIndexer(store docstore.Backend, extractor TextExtractor, classifier Categorizer, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		store:           store,
		extractor:       extractor,
		classifier:      classifier,
		chunker:         NewChunker(500, 50),
		maxFiles:        DefaultMaxFiles,
		defaultCategory: "document",
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// ValidateBatch checks the file count and that every name ends in ".pdf".
func (idx *Indexer) ValidateBatch(files []models.Upload) error {
	if len(files) > idx.maxFiles {
		return &models.ValidationError{Message: fmt.Sprintf("Maximum %d PDF files allowed", idx.maxFiles)}
	}
	if len(files) == 0 {
		return &models.ValidationError{Message: "At least 1 PDF file required"}
	}
	for _, f := range files {
		if !isPDFName(f.Filename) {
			return &models.ValidationError{Message: "Only PDF files supported: " + f.Filename}
		}
	}
	return nil
}

func isPDFName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}

// IngestBatch validates files and ingests them one after another. The first
// failing file stops the batch; files ingested before it stay stored.
func (idx *Indexer) IngestBatch(ctx context.Context, files []models.Upload) ([]*models.IngestionResult, error) {
	if err := idx.ValidateBatch(files); err != nil {
		return nil, err
	}
	if !idx.store.Connected() {
		return nil, docstore.ErrStoreUnavailable
	}
	results := make([]*models.IngestionResult, 0, len(files))
	for _, f := range files {
		res, err := idx.IngestFile(ctx, f)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// IngestFile runs the pipeline for one file. Chunks are stored one by one;
// individual insert failures are logged and skipped. Returns ErrNothingStored
// when no chunk could be stored.
func (idx *Indexer) IngestFile(ctx context.Context, f models.Upload) (*models.IngestionResult, error) {
	if !isPDFName(f.Filename) {
		return nil, &models.ValidationError{Message: "Only PDF files supported: " + f.Filename}
	}
	if !idx.store.Connected() {
		return nil, docstore.ErrStoreUnavailable
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer processing file", zap.String("filename", f.Filename), zap.Int("bytes", len(f.Content)))
	}

	raw, err := idx.extractor.ExtractPDF(ctx, f.Content)
	if err != nil {
		return nil, &FileError{Filename: f.Filename, Err: err}
	}
	text := Preprocess(raw)

	chunks, err := idx.chunker.ChunkDocument(text)
	if err != nil {
		return nil, &FileError{Filename: f.Filename, Err: err}
	}

	categories := idx.categorize(ctx, f.Filename, chunks)

	stored := 0
	now := time.Now()
	for i, content := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ch := &models.Chunk{
			ID:        uuid.New().String(),
			Source:    f.Filename,
			Content:   content,
			Category:  categories[i],
			CreatedAt: now,
		}
		if err := idx.store.Insert(ctx, ch); err != nil {
			if idx.logger != nil {
				idx.logger.Error("chunk store failed", zap.String("filename", f.Filename), zap.Int("chunk", i), zap.Error(err))
			}
			continue
		}
		stored++
	}
	if stored == 0 {
		return nil, &FileError{Filename: f.Filename, Err: ErrNothingStored}
	}

	if idx.logger != nil {
		idx.logger.Info("indexer file ingested",
			zap.String("filename", f.Filename),
			zap.Int("chunks_stored", stored),
			zap.Int("chunks_attempted", len(chunks)))
	}
	return &models.IngestionResult{
		Filename:      f.Filename,
		ChunksCreated: stored,
		TextLength:    utf8.RuneCountInString(text),
	}, nil
}

func (idx *Indexer) categorize(ctx context.Context, filename string, chunks []string) []string {
	defaults := func() []string {
		out := make([]string, len(chunks))
		for i := range out {
			out[i] = idx.defaultCategory
		}
		return out
	}
	if idx.classifier == nil {
		return defaults()
	}
	outcome := idx.classifier.Categorize(ctx, chunks)
	if outcome.Degraded() && idx.logger != nil {
		idx.logger.Debug("indexer using fallback categories", zap.String("filename", filename), zap.Error(outcome.Err))
	}
	if len(outcome.Value) != len(chunks) {
		return defaults()
	}
	return outcome.Value
}

// IngestPath reads the PDF at path and ingests it under its base name.
func (idx *Indexer) IngestPath(ctx context.Context, path string) (*models.IngestionResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return idx.IngestFile(ctx, models.Upload{Filename: filepath.Base(path), Content: content})
}
