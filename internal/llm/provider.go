package llm

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/policyqa/internal/config"
	"go.uber.org/zap"
)

// New creates the Model named by cfg.Provider.
func New(cfg *config.LLMConfig, logger *zap.Logger) (Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		return NewGemini(cfg.APIKey, cfg.Model,
			WithBaseURL(cfg.BaseURL),
			WithHTTPClient(newHTTPClient(cfg.Timeout)),
			WithRateLimit(cfg.RequestsPerSecond, cfg.Burst),
			WithRetry(cfg.MaxRetries, time.Second),
			WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
