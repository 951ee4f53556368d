package ai

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"jsonprompt-saas/internal/domain/ports/adapter"
)

var _ adapter.PromptEnhancer = (*GeminiEnhancer)(nil)

const enhanceInstruction = "You refine JSON prompt artifacts. Return only the improved JSON document, " +
	"keeping every existing key and tightening task, context and constraints. No prose, no markdown fences."

// GeminiEnhancer rewrites draft artifacts through the Gemini API. It is the
// premium-tier enhancer; generation falls back to the draft when it fails.
type GeminiEnhancer struct {
	client *genai.Client
	model  string
	maxOut int
}

func NewGeminiEnhancer(ctx context.Context, apiKey, baseURL, model string, maxOut int) (*GeminiEnhancer, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiEnhancer{client: c, model: model, maxOut: maxOut}, nil
}

func (g *GeminiEnhancer) Name() string { return "gemini" }

func (g *GeminiEnhancer) Enhance(ctx context.Context, draft string) (string, error) {
	history := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: enhanceInstruction}},
	}}
	chat, err := g.client.Chats.Create(
		ctx,
		g.model,
		&genai.GenerateContentConfig{
			MaxOutputTokens: int32(g.maxOut),
		},
		history,
	)
	if err != nil {
		return "", err
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: draft})
	if err != nil {
		return "", err
	}

	if resp == nil || len(resp.Candidates) == 0 ||
		resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini: empty response")
	}
	text := resp.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}
