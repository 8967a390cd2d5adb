package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"RegulationScanner/internal/config"
	"RegulationScanner/internal/infrastructure/httpjson"
	"RegulationScanner/internal/ports"
)

// ErrNotConfigured is returned when a client lacks its key, endpoint or model.
var ErrNotConfigured = errors.New("llm client misconfigured")

// ChatGPTClient implements ports.ChatClient backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
	limiter      *rate.Limiter
}

var _ ports.ChatClient = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.LLMConfig) *ChatGPTClient {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &ChatGPTClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

type chatRequest struct {
	Model       string          `json:"model"`
	Messages    []ports.Message `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the conversation, prefixed with the configured system prompt when
// the caller supplied none, and returns the first choice's content.
func (c *ChatGPTClient) Complete(ctx context.Context, messages []ports.Message) (string, error) {
	if c == nil {
		return "", fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	payload := chatRequest{
		Model:    c.model,
		Messages: withSystemPrompt(c.systemPrompt, messages),
	}

	var resp chatResponse
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := httpjson.Post(ctx, c.httpClient, c.endpoint, headers, payload, &resp); err != nil {
		return "", fmt.Errorf("chatgpt completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chatgpt completion: empty choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func withSystemPrompt(prompt string, messages []ports.Message) []ports.Message {
	for _, m := range messages {
		if m.Role == "system" {
			return messages
		}
	}
	out := make([]ports.Message, 0, len(messages)+1)
	out = append(out, ports.Message{Role: "system", Content: safePrompt(prompt)})
	return append(out, messages...)
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are an expert regulatory analyst."
	}
	return prompt
}
