package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"RegulationScanner/internal/config"
	"RegulationScanner/internal/ports"
)

// GeminiClient implements ports.ChatClient on top of the Gemini SDK.
type GeminiClient struct {
	client       *genai.Client
	model        string
	systemPrompt string
	limiter      *rate.Limiter
}

var _ ports.ChatClient = (*GeminiClient)(nil)

// NewGeminiClient opens an SDK client; the caller must Close it.
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig, llmCfg config.LLMConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, ErrNotConfigured
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	limit := rate.Inf
	if llmCfg.RequestsPerSecond > 0 {
		limit = rate.Limit(llmCfg.RequestsPerSecond)
	}

	return &GeminiClient{
		client:       client,
		model:        cfg.Model,
		systemPrompt: llmCfg.SystemPrompt,
		limiter:      rate.NewLimiter(limit, 1),
	}, nil
}

// Complete folds system messages into the model's system instruction and sends the rest as one prompt.
func (g *GeminiClient) Complete(ctx context.Context, messages []ports.Message) (string, error) {
	if g == nil || g.client == nil {
		return "", ErrNotConfigured
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	system, prompt := splitMessages(withSystemPrompt(g.systemPrompt, messages))

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0)
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}

	var out strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out.WriteString(string(text))
			}
		}
		break
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("gemini completion: empty response")
	}
	return strings.TrimSpace(out.String()), nil
}

// Close releases the SDK client.
func (g *GeminiClient) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

func splitMessages(messages []ports.Message) (string, string) {
	var system, prompt []string
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		prompt = append(prompt, m.Content)
	}
	return strings.Join(system, "\n\n"), strings.Join(prompt, "\n\n")
}
