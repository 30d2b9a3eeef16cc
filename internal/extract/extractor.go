// Package extract provides text extraction from PDF documents.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
)

var (
	// ErrUnreadablePDF is returned when the content is not a parseable PDF.
	ErrUnreadablePDF = errors.New("unreadable PDF")
	// ErrNoText is returned when a PDF parses but no page yields any text.
	ErrNoText = errors.New("no text found in PDF")
)

// Extractor extracts plain text from PDF content.
type Extractor struct {
	tempDir string
	logger  *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTempDir sets the directory used to spool PDF content before parsing.
// Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(e *Extractor) {
		e.tempDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// ExtractFile reads the PDF at path and returns its text content.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractPDF(ctx, content)
}

// ExtractPDF returns the text of every page in order, joined by a single space.
// Pages without text contribute nothing. Returns ErrUnreadablePDF if the content
// cannot be parsed and ErrNoText if no page has any text.
func (e *Extractor) ExtractPDF(ctx context.Context, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := extractPDF(content, e.tempDir)
	if err != nil {
		e.logger.Debug("pdf extraction failed", zap.Int("bytes", len(content)), zap.Error(err))
		return "", err
	}
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
