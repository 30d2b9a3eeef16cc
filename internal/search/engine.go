// Package search answers natural-language questions from the document store.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/policyqa/internal/docstore"
	"github.com/hyperjump/policyqa/internal/llm"
	"github.com/hyperjump/policyqa/internal/models"
	"github.com/hyperjump/policyqa/pkg/utils"
	"go.uber.org/zap"
)

// ErrQueryFailed wraps unexpected failures while answering a query.
var ErrQueryFailed = errors.New("query failed")

const (
	noResultsAnswer      = "No relevant information found"
	noResultsExplanation = "I couldn't find any information in your uploaded documents that relates to your question. Please make sure you've uploaded PDF documents and try again."
)

// Synthesizer turns retrieved hits into an answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, hits []*models.SearchHit) llm.Outcome[*models.QueryResult]
}

// Engine runs the query pipeline: validate, retrieve, synthesize.
type Engine struct {
	store     docstore.Backend
	retriever *Retriever
	synth     Synthesizer
	limit     int
	logger    *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLimit sets how many chunks are retrieved per query.
func WithLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = utils.LoggerOrNop(l) }
}

// NewEngine creates a query engine.
func NewEngine(store docstore.Backend, retriever *Retriever, synth Synthesizer, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		retriever: retriever,
		synth:     synth,
		limit:     DefaultLimit,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query answers req from the stored documents.
// It returns models.ErrValidation for an empty query and
// docstore.ErrStoreUnavailable when the store is not connected. Any other
// failure is wrapped in ErrQueryFailed.
func (e *Engine) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResult, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !e.store.Connected() {
		return nil, docstore.ErrStoreUnavailable
	}

	hits, err := e.retriever.Retrieve(ctx, req.Query, e.limit)
	if err != nil {
		e.logger.Error("retrieval failed", zap.String("query", req.Query), zap.Error(err))
		if errors.Is(err, docstore.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	if len(hits) == 0 {
		return &models.QueryResult{
			Answer:      noResultsAnswer,
			Explanation: noResultsExplanation,
		}, nil
	}

	out := e.synth.Synthesize(ctx, req.Query, hits)
	if out.Value == nil {
		return nil, fmt.Errorf("%w: synthesizer returned no result", ErrQueryFailed)
	}
	e.logger.Info("query answered",
		zap.Int("hits", len(hits)),
		zap.Int("sources", len(out.Value.Sources)),
		zap.Bool("degraded", out.Degraded()),
		zap.Duration("took", time.Since(start)),
	)
	return out.Value, nil
}

// Search returns the ranked hits for query without synthesizing an answer.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]*models.SearchHit, error) {
	req := models.QueryRequest{Query: query}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !e.store.Connected() {
		return nil, docstore.ErrStoreUnavailable
	}
	if limit <= 0 {
		limit = e.limit
	}
	return e.retriever.Retrieve(ctx, req.Query, limit)
}
