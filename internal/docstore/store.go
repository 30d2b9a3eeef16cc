package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/policyqa/internal/config"
	"github.com/hyperjump/policyqa/internal/keyword"
	"github.com/hyperjump/policyqa/internal/models"
	"github.com/hyperjump/policyqa/internal/storage"
	"github.com/hyperjump/policyqa/pkg/utils"
	"go.uber.org/zap"
)

// Store is the connected Backend. SQLite holds the chunks and assigns insertion
// sequences; Bleve holds the keyword index keyed by sequence.
//
// Inserts and searches hold the shared lock, Clear holds the exclusive lock, so
// a clear never interleaves with an insert and an insert that has returned is
// visible to every later search.
type Store struct {
	mu       sync.RWMutex
	chunks   storage.Storage
	keywords keyword.KeywordIndex
	fuzzy    bool
	logger   *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithFuzzy enables fuzzy keyword matching.
func WithFuzzy(enabled bool) Option {
	return func(s *Store) { s.fuzzy = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New composes a Store from an opened chunk table and keyword index.
func New(chunks storage.Storage, keywords keyword.KeywordIndex, opts ...Option) *Store {
	s := &Store{chunks: chunks, keywords: keywords}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.LoggerOrNop(s.logger)
	return s
}

// Open opens the chunk database and keyword index named in cfg. When either
// cannot be opened, the error is logged and a Disconnected backend is returned
// so the process keeps serving requests that do not need the store.
func Open(cfg *config.Config, logger *zap.Logger) Backend {
	logger = utils.LoggerOrNop(logger)
	chunks, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("chunk database unavailable", zap.String("path", cfg.Storage.DatabasePath), zap.Error(err))
		return Disconnected(err)
	}
	keywords, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = chunks.Close()
		logger.Error("keyword index unavailable", zap.String("path", cfg.Storage.BleveIndexPath), zap.Error(err))
		return Disconnected(err)
	}
	return New(chunks, keywords, WithFuzzy(cfg.Search.Fuzzy), WithLogger(logger))
}

// Insert stores the chunk in SQLite, then indexes it. If indexing fails the row
// is removed so the two never disagree about which chunks exist.
func (s *Store) Insert(ctx context.Context, chunk *models.Chunk) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.chunks.InsertChunk(ctx, chunk); err != nil {
		return fmt.Errorf("failed to store chunk: %w", err)
	}
	if err := s.keywords.Index(ctx, chunk); err != nil {
		if delErr := s.chunks.DeleteChunk(context.WithoutCancel(ctx), chunk.Seq); delErr != nil {
			s.logger.Error("failed to roll back chunk after index error",
				zap.Int64("seq", chunk.Seq), zap.Error(delErr))
		}
		return fmt.Errorf("failed to index chunk: %w", err)
	}
	return nil
}

// Search runs a keyword query and resolves hits to stored chunks.
func (s *Store) Search(ctx context.Context, query string, limit int, fields []string) ([]*models.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results, err := s.keywords.Search(ctx, query, limit, &keyword.SearchOptions{
		Fields:       fields,
		FuzzyEnabled: s.fuzzy,
	})
	if err != nil {
		return nil, err
	}
	seqs := make([]int64, len(results))
	for i, r := range results {
		seqs[i] = r.Seq
	}
	chunks, err := s.chunks.GetChunksBySeq(ctx, seqs)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	hits := make([]*models.SearchHit, 0, len(results))
	for _, r := range results {
		ch, ok := chunks[r.Seq]
		if !ok {
			s.logger.Warn("keyword hit without stored chunk", zap.Int64("seq", r.Seq))
			continue
		}
		hits = append(hits, &models.SearchHit{Chunk: ch, Score: r.Score, Rank: len(hits) + 1})
	}
	return hits, nil
}

// ListSources returns the distinct sources of stored chunks.
func (s *Store) ListSources(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunks.ListSources(ctx)
}

// CountChunks returns the number of stored chunks.
func (s *Store) CountChunks(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunks.CountChunks(ctx)
}

// Clear empties both the chunk table and the keyword index.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.keywords.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset keyword index: %w", err)
	}
	if err := s.chunks.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	s.logger.Info("document store cleared")
	return nil
}

// Connected reports true; a Store only exists once both backends opened.
func (s *Store) Connected() bool { return true }

// Close closes the keyword index and the chunk database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kwErr := s.keywords.Close()
	dbErr := s.chunks.Close()
	if kwErr != nil {
		return kwErr
	}
	return dbErr
}
