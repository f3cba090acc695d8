package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cartmatch/backend/internal/domain"
	"golang.org/x/time/rate"
)

// ClientConfig holds configuration for the language-model client.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	Timeout        time.Duration
	MaxRetries     int
	RequestsPerMin int
	Debug          bool
}

// Client talks to an OpenAI-compatible chat-completions endpoint and
// implements every collaborator interface the engine consumes. Each call
// carries an explicit timeout and a bounded retry policy; authentication
// errors are never retried.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxRetries  int
	rateLimiter *rate.Limiter
	debug       bool
}

// NewClient creates a language-model client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	rpm := cfg.RequestsPerMin
	if rpm <= 0 {
		rpm = 60
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxRetries:  maxRetries,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 5),
		debug:       cfg.Debug,
	}
}

// SetDebug toggles request logging.
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// exponentialBackoff is the delay before retry attempt n (1-indexed).
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500<<(attempt-1)) * time.Millisecond
}

// complete sends one chat completion and returns the assistant's content.
// Transient failures are retried with exponential backoff up to the retry
// ceiling; 401/403 responses fail immediately.
func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.1,
		MaxTokens:   1500,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter error: %w", err)
		}

		content, retryable, err := c.doRequest(ctx, payload)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if c.debug {
			log.Printf("[LLM] request error (attempt %d): %v", attempt, err)
		}

		if !retryable || attempt > c.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(exponentialBackoff(attempt)):
		}
	}

	return "", lastErr
}

// doRequest executes one HTTP round trip. The second return value reports
// whether the failure is worth retrying.
func (c *Client) doRequest(ctx context.Context, payload []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("%w: %v", domain.ErrLLMFailure, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusPaymentRequired:
		return "", false, fmt.Errorf("%w: status %d", domain.ErrLLMFailure, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", true, fmt.Errorf("%w: status %d", domain.ErrRateLimited, resp.StatusCode)
	default:
		return "", true, fmt.Errorf("%w: status %d: %s", domain.ErrLLMFailure, resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("%w: empty completion", domain.ErrLLMFailure)
	}

	return parsed.Choices[0].Message.Content, false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
