package ai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// Runtime is the minimal chat-completion backend interface.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Invoker is the opaque reasoning capability: structured input plus an
// instruction in, text (often JSON) out.
type Invoker interface {
	Invoke(ctx context.Context, input any, instruction string) (string, error)
}

// Renderer is the opaque chart-rendering capability: it turns an indicator
// payload and an intent into a renderer-specific configuration object.
type Renderer interface {
	Render(ctx context.Context, payload any, intent string) (json.RawMessage, error)
}

// Capability adapts a Runtime into both the Invoker and Renderer roles.
type Capability struct {
	Runtime     Runtime
	Model       string
	MaxTokens   int
	Temperature float64
}

// Invoke serializes the structured input, sends it with the instruction, and
// returns the model's text output.
func (c *Capability) Invoke(ctx context.Context, input any, instruction string) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", errors.Wrap(err, "marshal capability input")
	}
	resp, err := c.Runtime.Generate(ctx, GenerateRequest{
		Model: c.Model,
		Messages: []Message{
			{Role: "system", Content: instruction},
			{Role: "user", Content: string(body)},
		},
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	})
	if err != nil {
		return "", err
	}
	content := resp.Content()
	if content == "" {
		return "", errors.New("capability returned empty content")
	}
	return content, nil
}

// Render asks the capability for a chart configuration and returns the raw
// JSON object.
func (c *Capability) Render(ctx context.Context, payload any, intent string) (json.RawMessage, error) {
	instruction := "Produce a single chart configuration as a JSON object for the given indicators. Intent: " + intent
	content, err := c.Invoke(ctx, payload, instruction)
	if err != nil {
		return nil, err
	}
	var cfg json.RawMessage
	if err := DecodeJSON(content, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DecodeJSON unmarshals model output into out, tolerating Markdown code
// fences and prose around the JSON object.
func DecodeJSON(content string, out any) error {
	cleaned := StripFences(content)
	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}
	// Fall back to the outermost braces.
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err == nil {
			return nil
		}
	}
	return errors.Newf("capability output is not valid JSON: %.80s", cleaned)
}

// StripFences removes a surrounding Markdown code fence, if any.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
