package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(url string) ClientOptions {
	return ClientOptions{
		BaseURL:          url,
		HTTPTimeout:      5 * time.Second,
		RetryMaxAttempts: 3,
		RetryBaseDelay:   time.Millisecond,
		RetryMaxDelay:    5 * time.Millisecond,
	}
}

func completionBody(content string) string {
	b, _ := json.Marshal(GenerateResponse{
		ID:      "gen-1",
		Choices: []Choice{{Message: Message{Role: "assistant", Content: content}}},
	})
	return string(b)
}

func TestGenerateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		w.Header().Set("X-Request-Id", "req-42")
		_, _ = w.Write([]byte(completionBody("hello")))
	}))
	defer srv.Close()

	c := NewClient("key", testOptions(srv.URL))
	resp, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content())
	assert.Equal(t, "req-42", resp.RequestID)
}

func TestGenerateRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(completionBody("recovered")))
	}))
	defer srv.Close()

	c := NewClient("key", testOptions(srv.URL))
	resp, err := c.Generate(context.Background(), GenerateRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content())
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateAuthErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewClient("key", testOptions(srv.URL))
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m"})
	require.Error(t, err)
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateRateLimitExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	c := NewClient("key", testOptions(srv.URL))
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m"})
	require.Error(t, err)
	var rle *RateLimitError
	assert.ErrorAs(t, err, &rle)
}

func TestGenerateRequiresKeyAndModel(t *testing.T) {
	c := NewClient("", testOptions("http://unused"))
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m"})
	assert.Error(t, err)

	c = NewClient("key", testOptions("http://unused"))
	_, err = c.Generate(context.Background(), GenerateRequest{})
	assert.Error(t, err)
}

func TestParseRetryAfterSeconds(t *testing.T) {
	s, err := parseRetryAfterSeconds("7")
	require.NoError(t, err)
	assert.Equal(t, 7, s)

	_, err = parseRetryAfterSeconds("soon")
	assert.Error(t, err)
}

func TestCapabilityInvoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, `"rows":3`)
		_, _ = w.Write([]byte(completionBody("```json\n{\"ok\":true}\n```")))
	}))
	defer srv.Close()

	capability := &Capability{Runtime: NewClient("key", testOptions(srv.URL)), Model: "m"}
	out, err := capability.Invoke(context.Background(), map[string]int{"rows": 3}, "analyze")
	require.NoError(t, err)

	var decoded struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, DecodeJSON(out, &decoded))
	assert.True(t, decoded.OK)
}

func TestDecodeJSON(t *testing.T) {
	var v map[string]any

	require.NoError(t, DecodeJSON(`{"a":1}`, &v))
	require.NoError(t, DecodeJSON("```json\n{\"a\":1}\n```", &v))
	require.NoError(t, DecodeJSON("Here you go:\n{\"a\":1}\nenjoy", &v))
	assert.Error(t, DecodeJSON("no json here", &v))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, "plain", StripFences("plain"))
}
