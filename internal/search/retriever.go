package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/policyqa/internal/docstore"
	"github.com/hyperjump/policyqa/internal/llm"
	"github.com/hyperjump/policyqa/internal/models"
	"github.com/hyperjump/policyqa/pkg/utils"
	"go.uber.org/zap"
)

// DefaultLimit is the number of chunks retrieved to answer a query.
const DefaultLimit = 5

const enhancePrompt = "Enhance this search query for better semantic search results: %s"

// Retriever finds the chunks most relevant to a query.
type Retriever struct {
	store   docstore.Backend
	model   llm.Model
	enhance bool
	fields  []string
	logger  *zap.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithEnhancement rewrites each query through model before searching.
func WithEnhancement(model llm.Model) RetrieverOption {
	return func(r *Retriever) {
		r.model = model
		r.enhance = model != nil
	}
}

// WithFields restricts the searched fields. Empty means content only.
func WithFields(fields []string) RetrieverOption {
	return func(r *Retriever) {
		if len(fields) > 0 {
			r.fields = fields
		}
	}
}

// WithRetrieverLogger sets the logger.
func WithRetrieverLogger(l *zap.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = utils.LoggerOrNop(l) }
}

// NewRetriever creates a Retriever over store.
func NewRetriever(store docstore.Backend, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		store:  store,
		fields: []string{"content"},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to limit hits for query, best first. limit <= 0 uses DefaultLimit.
func (r *Retriever) Retrieve(ctx context.Context, query string, limit int) ([]*models.SearchHit, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := query
	if r.enhance {
		out := r.Enhance(ctx, query)
		if out.Degraded() {
			r.logger.Warn("query enhancement failed; using original query", zap.Error(out.Err))
		}
		q = out.Value
	}
	hits, err := r.store.Search(ctx, q, limit, r.fields)
	if err != nil {
		return nil, fmt.Errorf("failed to search store: %w", err)
	}
	r.logger.Debug("retrieved chunks",
		zap.String("query", q),
		zap.Int("hits", len(hits)),
	)
	return hits, nil
}

// Enhance asks the model to rewrite query. The original query is the fallback.
func (r *Retriever) Enhance(ctx context.Context, query string) llm.Outcome[string] {
	if r.model == nil {
		return llm.Fallback(query, fmt.Errorf("no language model configured"))
	}
	reply, err := r.model.Generate(ctx, fmt.Sprintf(enhancePrompt, query))
	if err != nil {
		return llm.Fallback(query, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return llm.Fallback(query, &llm.ErrLLM{Provider: "enhance", Message: "empty reply"})
	}
	return llm.Ok(reply)
}
