package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultGeminiBaseURL is the public Generative Language API endpoint.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini calls the Gemini generateContent endpoint.
type Gemini struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryBase  time.Duration
	logger     *zap.Logger
}

// GeminiOption configures a Gemini client.
type GeminiOption func(*Gemini)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) GeminiOption {
	return func(g *Gemini) {
		if u != "" {
			g.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) GeminiOption {
	return func(g *Gemini) { g.httpClient = c }
}

// WithRateLimit throttles requests to rps with the given burst. rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) GeminiOption {
	return func(g *Gemini) {
		if rps <= 0 {
			g.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets the number of attempts for transient failures and the initial backoff.
func WithRetry(maxAttempts int, base time.Duration) GeminiOption {
	return func(g *Gemini) {
		g.maxRetries = maxAttempts
		g.retryBase = base
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) GeminiOption {
	return func(g *Gemini) { g.logger = l }
}

// NewGemini creates a Gemini client for model.
func NewGemini(apiKey, model string, opts ...GeminiOption) *Gemini {
	g := &Gemini{
		apiKey:     apiKey,
		model:      model,
		baseURL:    DefaultGeminiBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxRetries: 3,
		retryBase:  time.Second,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	return g
}

// Generate sends prompt as a single user turn and returns the concatenated text parts
// of the first candidate.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	return retryCall(ctx, g.maxRetries, g.retryBase, g.logger, func() (string, error) {
		return g.doGenerate(ctx, prompt)
	})
}

func (g *Gemini) doGenerate(ctx context.Context, prompt string) (string, error) {
	body := geminiRequest{Contents: []geminiContent{{
		Role:  "user",
		Parts: []geminiPart{{Text: prompt}},
	}}}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", g.wrapErr("marshal body: " + err.Error())
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", g.wrapErr("create request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", g.wrapErr("request failed: " + err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", g.wrapErr("failed to read response body: " + err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ErrHTTP{
			Status:     resp.StatusCode,
			Body:       string(respBody),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", g.wrapErr("failed to parse response JSON: " + err.Error())
	}
	if len(parsed.Candidates) == 0 {
		return "", g.wrapErr("no candidates in response")
	}
	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		if part.Thought {
			continue
		}
		text.WriteString(part.Text)
	}
	g.logger.Debug("gemini generate", zap.String("model", g.model), zap.Int("prompt_len", len(prompt)), zap.Int("reply_len", text.Len()))
	return text.String(), nil
}

func (g *Gemini) wrapErr(msg string) error {
	return &ErrLLM{Provider: "gemini", Message: msg}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text    string `json:"text,omitempty"`
	Thought bool   `json:"thought,omitempty"`
}
