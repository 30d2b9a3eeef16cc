// Package classify assigns a one-word category to each chunk of a document
// with a single model call per batch.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/policyqa/internal/llm"
	"github.com/hyperjump/policyqa/pkg/utils"
	"go.uber.org/zap"
)

// DefaultCategory is assigned to every chunk when labels cannot be trusted.
const DefaultCategory = "document"

// DefaultPreviewLength is how many characters of each chunk the prompt includes.
const DefaultPreviewLength = 500

const promptHeader = "Categorize each of the following text chunks into a single word category. " +
	"Return only the categories, one per line, in the same order as the chunks:\n\n"

// Classifier labels chunks using a language model.
type Classifier struct {
	model           llm.Model
	previewLength   int
	defaultCategory string
	logger          *zap.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithPreviewLength sets how many characters of each chunk are sent to the model.
func WithPreviewLength(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.previewLength = n
		}
	}
}

// WithDefaultCategory sets the fallback label.
func WithDefaultCategory(category string) Option {
	return func(c *Classifier) {
		if category != "" {
			c.defaultCategory = category
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// New creates a Classifier. A nil model makes every batch fall back to the default category.
func New(model llm.Model, opts ...Option) *Classifier {
	c := &Classifier{
		model:           model,
		previewLength:   DefaultPreviewLength,
		defaultCategory: DefaultCategory,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.LoggerOrNop(c.logger)
	return c
}

// Categorize returns exactly one label per chunk, in input order. When the model
// fails or returns the wrong number of labels, every chunk gets the default
// category and Err records why.
func (c *Classifier) Categorize(ctx context.Context, chunks []string) llm.Outcome[[]string] {
	if len(chunks) == 0 {
		return llm.Ok([]string{})
	}
	if c.model == nil {
		return llm.Fallback(c.defaults(len(chunks)), fmt.Errorf("classification disabled"))
	}

	reply, err := c.model.Generate(ctx, c.Prompt(chunks))
	if err != nil {
		c.logger.Warn("chunk classification failed; using default category", zap.Error(err))
		return llm.Fallback(c.defaults(len(chunks)), err)
	}

	labels := parseLabels(reply)
	if len(labels) != len(chunks) {
		err := fmt.Errorf("model returned %d categories for %d chunks", len(labels), len(chunks))
		c.logger.Warn("chunk classification mismatch; using default category", zap.Error(err))
		return llm.Fallback(c.defaults(len(chunks)), err)
	}
	return llm.Ok(labels)
}

// Prompt builds the batch classification prompt.
func (c *Classifier) Prompt(chunks []string) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	for i, ch := range chunks {
		fmt.Fprintf(&b, "Chunk %d:\n%s...\n\n", i+1, utils.Prefix(ch, c.previewLength))
	}
	b.WriteString("Categories (one per line):")
	return b.String()
}

func (c *Classifier) defaults(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = c.defaultCategory
	}
	return out
}

func parseLabels(reply string) []string {
	var labels []string
	for _, line := range strings.Split(reply, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			labels = append(labels, line)
		}
	}
	return labels
}
