package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"servicechat/internal/config"
	"servicechat/internal/models"
	"servicechat/internal/observability"
)

type generateFunc func(ctx context.Context, input []*schema.Message) (*schema.Message, error)

// EinoGateway serves any provider eino has a chat model for. Side tools run
// through a react agent.
type EinoGateway struct {
	provider string
	generate generateFunc
}

func NewEinoGateway(ctx context.Context, cfg *config.Config) (*EinoGateway, error) {
	provider := cfg.Completion.Provider
	chatModel, err := newChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tools := InitToolsChain(ToolOptions{
		WebSearch:  *cfg.Completion.WebSearch,
		URLContext: *cfg.Completion.URLContext,
	})
	gw := &EinoGateway{provider: provider}
	if len(tools) > 0 {
		agent, err := react.NewAgent(ctx, &react.AgentConfig{
			ToolCallingModel: chatModel,
			ToolsConfig: compose.ToolsNodeConfig{
				Tools: tools,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("init react agent: %w", err)
		}
		gw.generate = func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
			return agent.Generate(ctx, input)
		}
	} else {
		gw.generate = func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
			return chatModel.Generate(ctx, input)
		}
	}

	observability.Logger().Info("completion gateway ready",
		"engine", config.EngineEino,
		"provider", provider,
		"model", cfg.Completion.Model,
		"tools", len(tools),
	)
	return gw, nil
}

func newChatModel(ctx context.Context, cfg *config.Config) (model.ToolCallingChatModel, error) {
	provider := cfg.Completion.Provider
	apiKey := cfg.APIKey(provider)
	if apiKey == "" {
		return nil, fmt.Errorf("api key for provider %s is not configured", provider)
	}
	baseURL := cfg.BaseURL(provider)
	modelName := cfg.Completion.Model

	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: baseURL,
			Model:   modelName,
			APIKey:  apiKey,
		})
	case "gemini":
		client, cerr := genai.NewClient(ctx, geminiClientConfig(apiKey, baseURL))
		if cerr != nil {
			return nil, fmt.Errorf("create genai client: %w", cerr)
		}
		budget := cfg.Completion.ThinkingBudget
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
			ThinkingConfig: &genai.ThinkingConfig{
				ThinkingBudget: &budget,
			},
		})
	case "claude":
		var baseURLPtr *string
		if baseURL != "" {
			baseURLPtr = &baseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    apiKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s chat model: %w", provider, err)
	}
	return chatModel, nil
}

func (g *EinoGateway) Complete(ctx context.Context, window []models.Turn) (string, error) {
	msg, err := g.generate(ctx, toSchemaMessages(window))
	if err != nil {
		return "", unavailable("generate "+g.provider, err)
	}
	if msg == nil || msg.Content == "" {
		return "", unavailable("generate "+g.provider, errors.New("model returned empty text"))
	}
	return msg.Content, nil
}

func toSchemaMessages(window []models.Turn) []*schema.Message {
	messages := make([]*schema.Message, 0, len(window))
	for _, turn := range window {
		var role schema.RoleType
		switch turn.Role {
		case models.RoleSystem:
			role = schema.System
		case models.RoleModel:
			role = schema.Assistant
		default:
			role = schema.User
		}
		messages = append(messages, &schema.Message{
			Role:    role,
			Content: turn.Text,
		})
	}
	return messages
}
