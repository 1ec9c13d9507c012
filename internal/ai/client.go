// Package ai holds the reasoning-capability client and its adapters.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"
)

// Client talks to an OpenAI-compatible chat completion endpoint with retry,
// backoff, and request rate limiting.
type Client struct {
	httpClient       *http.Client
	apiKey           string
	baseURL          string
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	limiter          *rate.Limiter
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerateRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Choice struct {
	Message Message `json:"message"`
}

type GenerateResponse struct {
	ID        string   `json:"id"`
	Choices   []Choice `json:"choices"`
	Usage     Usage    `json:"usage"`
	RequestID string   `json:"-"`
}

// Content returns the first choice's message content.
func (r *GenerateResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

const defaultBaseURL = "https://openrouter.ai/api/v1"

// ClientOptions customize a Client. Zero values take defaults.
type ClientOptions struct {
	BaseURL          string
	HTTPTimeout      time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	// RequestsPerSecond throttles outgoing calls; zero disables the limiter.
	RequestsPerSecond float64
}

// NewClient builds a Client from options.
func NewClient(apiKey string, opt ClientOptions) *Client {
	if opt.BaseURL == "" {
		opt.BaseURL = defaultBaseURL
	}
	if opt.HTTPTimeout <= 0 {
		opt.HTTPTimeout = 60 * time.Second
	}
	if opt.RetryMaxAttempts <= 0 {
		opt.RetryMaxAttempts = 3
	}
	if opt.RetryBaseDelay <= 0 {
		opt.RetryBaseDelay = 500 * time.Millisecond
	}
	if opt.RetryMaxDelay <= 0 {
		opt.RetryMaxDelay = 4 * time.Second
	}
	var limiter *rate.Limiter
	if opt.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opt.RequestsPerSecond), 1)
	}
	return &Client{
		httpClient:       &http.Client{Timeout: opt.HTTPTimeout},
		apiKey:           apiKey,
		baseURL:          opt.BaseURL,
		retryMaxAttempts: opt.RetryMaxAttempts,
		retryBaseDelay:   opt.RetryBaseDelay,
		retryMaxDelay:    opt.RetryMaxDelay,
		limiter:          limiter,
	}
}

// Generate performs a chat completion, retrying transient failures with
// exponential backoff.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, errors.New("api key is missing")
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}
	endpoint := c.baseURL + "/chat/completions"

	backoff := c.retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, errors.Wrap(err, "build request")
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if isRetryableNetErr(err) && attempt < c.retryMaxAttempts {
				lastErr = err
				time.Sleep(withJitter(backoff))
				backoff *= 2
				continue
			}
			return nil, errors.Wrap(err, "http request")
		}

		out, retry, err := c.handleResponse(resp)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retry || attempt >= c.retryMaxAttempts {
			break
		}
		sleep := retryDelay(err, withJitter(backoff), c.retryMaxDelay)
		time.Sleep(sleep)
		backoff *= 2
	}
	return nil, lastErr
}

// handleResponse decodes a completed HTTP exchange. retry reports whether the
// error class is worth another attempt.
func (c *Client) handleResponse(resp *http.Response) (out *GenerateResponse, retry bool, err error) {
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var decoded GenerateResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return nil, false, errors.Wrap(err, "decode response")
		}
		decoded.RequestID = extractRequestID(resp)
		return &decoded, false, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw, RequestID: extractRequestID(resp)}
	if v, ok := raw["error"].(map[string]any); ok {
		apiErr.Message, _ = v["message"].(string)
		apiErr.Code, _ = v["code"].(string)
	} else {
		apiErr.Message, _ = raw["message"].(string)
		apiErr.Code, _ = raw["code"].(string)
	}

	classified := classifyAPIError(apiErr, resp)
	retryable := resp.StatusCode == http.StatusTooManyRequests ||
		(resp.StatusCode >= 500 && resp.StatusCode <= 599)
	return nil, retryable, classified
}

// retryDelay honors a RateLimitError's Retry-After when present, otherwise
// uses the backoff capped at maxDelay.
func retryDelay(err error, backoff, maxDelay time.Duration) time.Duration {
	var rle *RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		return rle.RetryAfter
	}
	if maxDelay > 0 && backoff > maxDelay {
		return maxDelay
	}
	return backoff
}

func classifyAPIError(apiErr *APIError, resp *http.Response) error {
	switch {
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case apiErr.StatusCode == http.StatusTooManyRequests:
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	case apiErr.StatusCode == http.StatusNotFound && apiErr.Code == "model_not_found":
		return &ModelNotFoundError{APIError: apiErr}
	case apiErr.StatusCode == http.StatusBadRequest:
		return &BadRequestError{APIError: apiErr}
	case apiErr.Code == "quota_exceeded":
		return &QuotaExceededError{APIError: apiErr}
	case apiErr.StatusCode >= 500 && apiErr.StatusCode <= 599:
		return &ServerError{APIError: apiErr}
	default:
		return apiErr
	}
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF)
}

// parseRetryAfterSeconds interprets a Retry-After value as integer seconds or
// an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, errors.Newf("invalid Retry-After: %q", v)
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	for _, k := range []string{"X-Request-Id", "X-Request-ID", "OpenAI-Request-ID", "Openrouter-Request-ID"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter applies +/- 20% jitter to a backoff duration.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}
