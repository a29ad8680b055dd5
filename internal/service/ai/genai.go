package ai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"servicechat/internal/config"
	"servicechat/internal/models"
	"servicechat/internal/observability"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAIGateway calls Gemini directly, with Google's hosted search and URL
// context tools when enabled.
type GenAIGateway struct {
	models         contentGenerator
	model          string
	thinkingBudget int32
	webSearch      bool
	urlContext     bool
}

// geminiClientConfig targets the Gemini API, or baseURL when set.
func geminiClientConfig(apiKey, baseURL string) *genai.ClientConfig {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	return clientCfg
}

func NewGenAIGateway(ctx context.Context, cfg *config.Config) (*GenAIGateway, error) {
	apiKey := cfg.APIKey(cfg.Completion.Provider)
	if apiKey == "" {
		return nil, errors.New("gemini api key is not configured")
	}
	client, err := genai.NewClient(ctx, geminiClientConfig(apiKey, cfg.BaseURL(cfg.Completion.Provider)))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	observability.Logger().Info("completion gateway ready",
		"engine", config.EngineGenAI,
		"model", cfg.Completion.Model,
		"web_search", *cfg.Completion.WebSearch,
		"url_context", *cfg.Completion.URLContext,
	)
	return &GenAIGateway{
		models:         client.Models,
		model:          cfg.Completion.Model,
		thinkingBudget: cfg.Completion.ThinkingBudget,
		webSearch:      *cfg.Completion.WebSearch,
		urlContext:     *cfg.Completion.URLContext,
	}, nil
}

func (g *GenAIGateway) Complete(ctx context.Context, window []models.Turn) (string, error) {
	contents := toGenAIContents(window)
	if len(contents) == 0 {
		return "", unavailable("generate content", errors.New("no user or model turns to send"))
	}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, g.generateConfig(systemText(window)))
	if err != nil {
		return "", unavailable("generate content", err)
	}
	text := resp.Text()
	if text == "" {
		return "", unavailable("generate content", errors.New("model returned empty text"))
	}
	return text, nil
}

func (g *GenAIGateway) generateConfig(system string) *genai.GenerateContentConfig {
	budget := g.thinkingBudget
	cfg := &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: &budget},
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if g.urlContext {
		cfg.Tools = append(cfg.Tools, &genai.Tool{URLContext: &genai.URLContext{}})
	}
	if g.webSearch {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	return cfg
}

// toGenAIContents maps the non-system turns onto Gemini contents. System turns
// travel as the system instruction instead.
func toGenAIContents(window []models.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(window))
	for _, turn := range window {
		var role genai.Role
		switch turn.Role {
		case models.RoleSystem:
			continue
		case models.RoleModel:
			role = genai.RoleModel
		default:
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	return contents
}
