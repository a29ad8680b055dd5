package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"servicechat/internal/config"
	"servicechat/internal/models"
	"servicechat/internal/observability"
	"servicechat/internal/router"
	"servicechat/internal/scenario"
	"servicechat/internal/service/ai"
	"servicechat/internal/session"
)

var (
	ErrMissingUser = errors.New("user_id is required")
	ErrInvalidRole = errors.New("only user messages are accepted")
)

// Classifier turns a raw message into a routing decision.
type Classifier interface {
	Classify(raw string) (router.Decision, error)
}

// Executor runs completion calls on behalf of a user.
type Executor interface {
	Do(ctx context.Context, userID string, fn func(ctx context.Context) error) error
}

type Options struct {
	WindowLimit int
	ResetScope  string
	Timeout     time.Duration
}

// Service drives one chat exchange: classify, record the user turn, ask the
// model, record the reply.
type Service struct {
	catalog   *scenario.Catalog
	store     *session.Store
	router    Classifier
	completer ai.Completer
	executor  Executor
	opts      Options
}

func NewService(catalog *scenario.Catalog, store *session.Store, classifier Classifier, completer ai.Completer, executor Executor, opts Options) *Service {
	if opts.ResetScope == "" {
		opts.ResetScope = config.ResetScopeAll
	}
	return &Service{
		catalog:   catalog,
		store:     store,
		router:    classifier,
		completer: completer,
		executor:  executor,
		opts:      opts,
	}
}

// ChatRequest is one inbound message.
type ChatRequest struct {
	UserID  string
	Role    string
	Message string
}

// Chat handles one inbound message and returns the text to send back: the
// model's reply or a reset confirmation.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (string, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return "", ErrMissingUser
	}
	if role := strings.ToLower(strings.TrimSpace(req.Role)); role != "" && role != string(models.RoleUser) {
		return "", fmt.Errorf("role %q: %w", req.Role, ErrInvalidRole)
	}

	log := observability.LoggerFromContext(ctx).With("user_id", userID)
	decision, err := s.router.Classify(req.Message)
	if err != nil {
		log.Info("message rejected", "error", err)
		return "", err
	}
	log.Info("message classified", "kind", decision.Kind.String(), "scenario", decision.ScenarioID)

	if decision.Kind == router.KindReset {
		return s.Reset(ctx, userID, decision.ScenarioID), nil
	}
	if decision.UserText == "" {
		return "", fmt.Errorf("chat %s: %w", decision.ScenarioID, router.ErrEmptyMessage)
	}
	return s.converse(ctx, models.SessionKey{UserID: userID, ScenarioID: decision.ScenarioID}, decision.UserText)
}

func (s *Service) converse(ctx context.Context, key models.SessionKey, text string) (string, error) {
	log := observability.LoggerFromContext(ctx).With("user_id", key.UserID, "scenario", key.ScenarioID)

	conv, err := s.store.AppendOrCreate(key, models.Turn{Role: models.RoleUser, Text: text})
	if err != nil {
		return "", err
	}
	window := conv.Window(s.opts.WindowLimit)
	log.Debug("sending window", "turns", len(window), "history", conv.Len(), "text", text)

	callCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	var reply string
	err = s.executor.Do(callCtx, key.UserID, func(ctx context.Context) error {
		out, err := s.completer.Complete(ai.WithToolUser(ctx, key.UserID), window)
		if err != nil {
			return err
		}
		reply = out
		return nil
	})
	if err != nil {
		log.Warn("completion failed", "error", err, "duration", time.Since(start))
		if !errors.Is(err, ai.ErrCompletionUnavailable) && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return "", fmt.Errorf("complete %s: %w: %w", key, ai.ErrCompletionUnavailable, err)
		}
		return "", fmt.Errorf("complete %s: %w", key, err)
	}

	if err := s.store.Append(key, models.Turn{Role: models.RoleModel, Text: reply}); err != nil {
		// the session was evicted while the model was answering
		log.Warn("reply not recorded", "error", err)
	}
	log.Info("reply sent", "duration", time.Since(start))
	log.Debug("reply text", "text", reply)
	return reply, nil
}

// Reset clears scenarioID's history, for every user or only userID depending
// on the configured scope. Unknown scenarios and absent sessions are no-ops.
func (s *Service) Reset(ctx context.Context, userID, scenarioID string) string {
	log := observability.LoggerFromContext(ctx)
	switch s.opts.ResetScope {
	case config.ResetScopeUser:
		ok := s.store.ResetUser(userID, scenarioID)
		log.Info("session reset", "scope", config.ResetScopeUser, "user_id", userID, "scenario", scenarioID, "reset", ok)
	default:
		n := s.store.Reset(scenarioID)
		log.Info("session reset", "scope", config.ResetScopeAll, "scenario", scenarioID, "affected", n)
	}
	return ResetConfirmation(scenarioID)
}

// History returns the stored conversation of one user and scenario.
func (s *Service) History(userID, scenarioID string) ([]models.Turn, error) {
	conv, ok := s.store.Get(models.SessionKey{UserID: userID, ScenarioID: scenarioID})
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return conv.Turns(), nil
}

func (s *Service) Scenarios() []string {
	return s.catalog.Names()
}

func (s *Service) SessionCount() int {
	return s.store.Len()
}
