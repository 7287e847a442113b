// Gemini generateContent client used by the classifier
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/prism/internal/retry"
	"github.com/desertthunder/prism/internal/shared"
)

const (
	DefaultGeminiModel   = "gemini-3-flash-preview"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
)

// GeminiError is a non-success response from the Gemini API.
type GeminiError struct {
	Status  int
	Code    string
	Message string
}

func (e *GeminiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gemini API error: HTTP %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("gemini API error: HTTP %d: %s", e.Status, e.Message)
}

func (e *GeminiError) Unwrap() error { return shared.ErrAPIRequest }

// RateLimited reports whether the request should be retried after a pause.
func (e *GeminiError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests || e.Code == "RESOURCE_EXHAUSTED"
}

// GeminiService calls models/{model}:generateContent with a JSON response schema.
type GeminiService struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	retry      retry.Config
	logger     *log.Logger
}

// GeminiOption configures a [GeminiService].
type GeminiOption func(*GeminiService)

// WithGeminiHTTPClient replaces the default client.
func WithGeminiHTTPClient(hc *http.Client) GeminiOption {
	return func(g *GeminiService) { g.httpClient = hc }
}

// WithGeminiRetry replaces the rate-limit retry policy.
func WithGeminiRetry(cfg retry.Config) GeminiOption {
	return func(g *GeminiService) { g.retry = cfg }
}

// WithGeminiLogger sets the logger.
func WithGeminiLogger(l *log.Logger) GeminiOption {
	return func(g *GeminiService) { g.logger = l }
}

// GeminiRetryConfig retries rate limiting three times, waiting 10s, 20s and 40s.
func GeminiRetryConfig() retry.Config {
	return retry.Config{MaxAttempts: 4, BaseDelay: 10 * time.Second, Multiplier: 2}
}

// NewGeminiService returns [shared.ErrMissingCredentials] when no API key is configured.
func NewGeminiService(cfg shared.GeminiConfig, opts ...GeminiOption) (*GeminiService, error) {
	key := cfg.ResolveAPIKey()
	if key == "" {
		return nil, fmt.Errorf("%w: gemini api key", shared.ErrMissingCredentials)
	}

	timeout := 120 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	g := &GeminiService{
		apiKey:     key,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retry:      GeminiRetryConfig(),
	}
	if g.model == "" {
		g.model = DefaultGeminiModel
	}
	if g.baseURL == "" {
		g.baseURL = DefaultGeminiBaseURL
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = shared.NewLogger(io.Discard)
	}
	return g, nil
}

// Model returns the model name recorded on classified entries.
func (g *GeminiService) Model() string { return g.model }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig map[string]any  `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateJSON sends prompt and returns the raw text of the first candidate. The caller parses it against schema.
//
// Rate-limit responses are retried per [GeminiRetryConfig]; other failures return immediately.
func (g *GeminiService) GenerateJSON(ctx context.Context, prompt string, schema map[string]any) (string, error) {
	var text string
	err := retry.Do(ctx, g.retryConfig(), isGeminiRateLimit, func(ctx context.Context) error {
		var err error
		text, err = g.generate(ctx, prompt, schema)
		return err
	})

	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return "", exhausted.Err
	}
	return text, err
}

func (g *GeminiService) retryConfig() retry.Config {
	cfg := g.retry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		g.logger.Warn("gemini rate limited, backing off", "attempt", attempt, "wait", delay)
	}
	return cfg
}

func isGeminiRateLimit(err error) bool {
	var gerr *GeminiError
	return errors.As(err, &gerr) && gerr.RateLimited()
}

func (g *GeminiService) generate(ctx context.Context, prompt string, schema map[string]any) (string, error) {
	genCfg := map[string]any{
		"responseMimeType": "application/json",
		"temperature":      0.2,
	}
	if schema != nil {
		genCfg["responseSchema"] = schema
	}

	data, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: genCfg,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		gerr := &GeminiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var eb geminiErrorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error.Message != "" {
			gerr.Code = eb.Error.Status
			gerr.Message = eb.Error.Message
		}
		return "", gerr
	}

	var result geminiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	var sb strings.Builder
	if len(result.Candidates) > 0 {
		for _, p := range result.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: empty gemini response", shared.ErrAPIRequest)
	}
	return sb.String(), nil
}
