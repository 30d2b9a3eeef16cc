// Package synth turns retrieved chunks into an answer by prompting a language
// model and parsing its reply into a fixed schema.
package synth

import (
	"context"
	"fmt"

	"github.com/hyperjump/policyqa/internal/llm"
	"github.com/hyperjump/policyqa/internal/models"
	"github.com/hyperjump/policyqa/pkg/utils"
	"go.uber.org/zap"
)

// Synthesizer answers a query from retrieved hits.
type Synthesizer struct {
	model  llm.Model
	logger *zap.Logger
}

// New creates a Synthesizer. logger may be nil.
func New(model llm.Model, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{model: model, logger: utils.LoggerOrNop(logger)}
}

// Synthesize groups hits by source, asks the model for an answer and parses it.
// The result is always usable: when the model fails, a fallback answer naming
// the number of sources is returned and Err records the failure.
// hits must not be empty.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, hits []*models.SearchHit) llm.Outcome[*models.QueryResult] {
	excerpts := GroupBySource(hits)
	sources := Sources(excerpts)
	n := len(sources)

	reply, err := s.generate(ctx, BuildPrompt(query, excerpts))
	if err != nil {
		s.logger.Warn("answer synthesis failed; using fallback", zap.Int("sources", n), zap.Error(err))
		return llm.Fallback(&models.QueryResult{
			Answer:                "Found relevant information",
			Explanation:           fmt.Sprintf("I found information in %d document(s) that relates to your question.", n),
			Sources:               sources,
			CrossDocumentAnalysis: crossFor(n, nil),
		}, err)
	}

	parsed := Parse(reply, n, query)
	return llm.Ok(&models.QueryResult{
		Answer:                parsed.Answer,
		Explanation:           parsed.Explanation,
		Sources:               sources,
		CrossDocumentAnalysis: parsed.CrossDocumentAnalysis,
	})
}

func (s *Synthesizer) generate(ctx context.Context, prompt string) (string, error) {
	if s.model == nil {
		return "", fmt.Errorf("no language model configured")
	}
	return s.model.Generate(ctx, prompt)
}
