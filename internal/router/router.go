package router

import (
	"errors"
	"fmt"
	"strings"

	"servicechat/internal/scenario"
)

const (
	// ResetMarker introduces a reset command; the scenario follows it.
	ResetMarker = "User requested to clean the chat history for this scenario:"
	// SpeakerMarker precedes the user's own words in a chat message.
	SpeakerMarker = "User:"
)

// ErrEmptyMessage is returned for messages with no visible text.
var ErrEmptyMessage = errors.New("empty message")

type Kind int

const (
	KindChat Kind = iota
	KindReset
)

func (k Kind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindReset:
		return "reset"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Decision is the outcome of classifying one inbound message.
// UserText is only set for KindChat.
type Decision struct {
	Kind       Kind
	ScenarioID string
	UserText   string
}

// Matcher finds the scenario named in a piece of text.
type Matcher interface {
	Match(text string) (string, bool)
}

// Router classifies raw messages. It holds no mutable state.
type Router struct {
	matcher Matcher
}

func New(matcher Matcher) *Router {
	return &Router{matcher: matcher}
}

// Classify decides whether raw is a reset command or a chat turn.
//
// Reset commands take the text after the last reset marker verbatim (trimmed)
// and are not checked against the catalog. Chat turns take the first catalog
// scenario found in the first line of raw.
func (r *Router) Classify(raw string) (Decision, error) {
	if strings.TrimSpace(raw) == "" {
		return Decision{}, ErrEmptyMessage
	}

	if idx := strings.LastIndex(raw, ResetMarker); idx >= 0 {
		return Decision{
			Kind:       KindReset,
			ScenarioID: strings.TrimSpace(raw[idx+len(ResetMarker):]),
		}, nil
	}

	scenarioID, ok := r.matcher.Match(firstLine(raw))
	if !ok {
		return Decision{}, fmt.Errorf("classify message: %w", scenario.ErrUnknownScenario)
	}
	return Decision{
		Kind:       KindChat,
		ScenarioID: scenarioID,
		UserText:   UserText(raw),
	}, nil
}

// UserText returns the text after the last speaker marker, or all of raw when
// there is none. The result is trimmed.
func UserText(raw string) string {
	if idx := strings.LastIndex(raw, SpeakerMarker); idx >= 0 {
		return strings.TrimSpace(raw[idx+len(SpeakerMarker):])
	}
	return strings.TrimSpace(raw)
}

// ResetMessage renders the text-protocol form of a reset command.
func ResetMessage(scenarioID string) string {
	return ResetMarker + " " + scenarioID
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSuffix(s, "\r")
}
