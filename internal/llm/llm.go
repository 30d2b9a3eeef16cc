// Package llm provides the language model client used for classification,
// query rewriting and answer synthesis.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Model generates a text completion for a single prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ModelFunc adapts an ordinary function to the Model interface.
type ModelFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f(ctx, prompt).
func (f ModelFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Outcome is a value paired with the error that forced it to a default.
// Value is always usable; Err is nil unless the value is a fallback.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Degraded reports whether Value is a fallback.
func (o Outcome[T]) Degraded() bool { return o.Err != nil }

// Ok returns an outcome holding v.
func Ok[T any](v T) Outcome[T] { return Outcome[T]{Value: v} }

// Fallback returns an outcome holding the default v caused by err.
func Fallback[T any](v T, err error) Outcome[T] { return Outcome[T]{Value: v, Err: err} }

// ErrLLM is a provider-level failure that is not an HTTP status error.
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP is a non-2xx response from the provider.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
