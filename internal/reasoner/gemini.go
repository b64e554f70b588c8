package reasoner

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini API backend.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Pricing Pricing
}

// GeminiClient calls Gemini through the genai SDK.
type GeminiClient struct {
	cfg    GeminiConfig
	client *genai.Client
}

// NewGeminiClient creates the SDK client. An empty API key yields a client
// that reports itself unavailable.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	c := &GeminiClient{cfg: cfg}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return c, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	c.client = client
	return c, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) Available() bool {
	return c.client != nil && strings.TrimSpace(c.cfg.Model) != ""
}

func (c *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	if !c.Available() {
		return Response{}, ErrNotConfigured
	}
	maxTokens, err := c.cfg.Pricing.OutputBudget(req.System+req.Prompt, req.MaxCostUSD, defaultMaxTokens)
	if err != nil {
		return Response{}, err
	}

	temperature := float32(0)
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  int32(maxTokens),
		ResponseMIMEType: "application/json",
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	content := genai.NewContentFromText(req.Prompt, genai.RoleUser)
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, []*genai.Content{content}, config)
	if err != nil {
		return Response{}, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, fmt.Errorf("no response candidates from Gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}

	out := Response{Content: text.String(), Model: c.cfg.Model}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	out.CostUSD = c.cfg.Pricing.Cost(out.InputTokens, out.OutputTokens)
	return out, nil
}
