package ai

import (
	"context"
	"errors"
	"fmt"

	"servicechat/internal/config"
	"servicechat/internal/models"
)

// ErrCompletionUnavailable wraps every failure of the external model call.
var ErrCompletionUnavailable = errors.New("completion unavailable")

// Completer turns an ordered conversation window into the model's reply.
type Completer interface {
	Complete(ctx context.Context, window []models.Turn) (string, error)
}

// New builds the completion gateway selected by cfg.Completion.Engine.
func New(ctx context.Context, cfg *config.Config) (Completer, error) {
	switch cfg.Completion.Engine {
	case config.EngineGenAI:
		return NewGenAIGateway(ctx, cfg)
	case config.EngineEino:
		return NewEinoGateway(ctx, cfg)
	default:
		return nil, fmt.Errorf("invalid completion engine: %s", cfg.Completion.Engine)
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrCompletionUnavailable, err)
}

// systemText joins every system turn in window into one instruction.
func systemText(window []models.Turn) string {
	var out string
	for _, turn := range window {
		if turn.Role != models.RoleSystem || turn.Text == "" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += turn.Text
	}
	return out
}
