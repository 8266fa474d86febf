// Package model implements the external model collaborator: an HTTP client
// speaking OpenAI- or Anthropic-shaped chat payloads, plus a circuit
// breaker wrapper so a failing provider degrades to fast ModelUnavailable
// responses instead of a pile-up of slow timeouts.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wagerproof/wagerproof/internal/config"
)

// Client is the orchestrator's view of the external model. Implementations
// may be slow and may fail; callers own the timeout via ctx.
type Client interface {
	// Generate sends system + user prompt text and returns the raw model
	// output (expected, but not guaranteed, to be the requested JSON).
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// chatMessage is the wire shape shared by both provider payloads.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HTTPClient calls a configured provider endpoint.
type HTTPClient struct {
	cfg    config.ModelConfig
	client *http.Client
}

// NewHTTPClient creates a provider client from config.
func NewHTTPClient(cfg config.ModelConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Generate dispatches on the configured provider kind. Unknown kinds are
// treated as OpenAI-compatible endpoints.
func (c *HTTPClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()

	var out string
	var err error
	switch c.cfg.Kind {
	case "anthropic":
		out, err = c.callAnthropic(ctx, systemPrompt, userPrompt)
	default:
		out, err = c.callOpenAI(ctx, systemPrompt, userPrompt)
	}
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("kind", c.cfg.Kind).
		Str("model", c.cfg.Model).
		Dur("latency", time.Since(start)).
		Msg("Model call completed")
	return out, nil
}

// ── OpenAI-compatible provider ──────────────────────────────

type openAIRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *HTTPClient) callOpenAI(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	endpoint := c.cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("openai: api key not configured")
	}

	body, _ := json.Marshal(openAIRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return "", fmt.Errorf("openai: status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var oaiResp openAIResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&oaiResp); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if len(oaiResp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices")
	}
	return oaiResp.Choices[0].Message.Content, nil
}

// ── Anthropic provider ──────────────────────────────────────

type anthropicRequest struct {
	Model     string        `json:"model"`
	System    string        `json:"system"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *HTTPClient) callAnthropic(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	endpoint := c.cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.anthropic.com"
	}
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("anthropic: api key not configured")
	}

	body, _ := json.Marshal(anthropicRequest{
		Model:     c.cfg.Model,
		System:    systemPrompt,
		Messages:  []chatMessage{{Role: "user", Content: userPrompt}},
		MaxTokens: 4096,
	})

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return "", fmt.Errorf("anthropic: status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var anthResp anthropicResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&anthResp); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	for _, block := range anthResp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic: no text block in response")
}
