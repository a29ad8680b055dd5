package assistant

import (
	"context"
	"errors"

	"servicechat/internal/ratelimit"
	"servicechat/internal/router"
	"servicechat/internal/scenario"
	"servicechat/internal/service/ai"
	"servicechat/internal/worker"
)

const (
	MsgUnknownScenario = "Error: No valid scenario name found in the message."
	MsgUnavailable     = "Error: The assistant is currently unavailable, please try again."
	MsgBusy            = "Error: Server is busy, please retry."
	MsgRateLimited     = "Error: Too many requests, please slow down."
	MsgInvalidRole     = "Error: Only user messages are accepted."
	MsgMissingUser     = "Error: user_id is required."
)

func ResetConfirmation(scenarioID string) string {
	return "Chat history cleared for scenario: " + scenarioID
}

// UserMessage is the text shown to the user for err.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingUser):
		return MsgMissingUser
	case errors.Is(err, ErrInvalidRole):
		return MsgInvalidRole
	case errors.Is(err, scenario.ErrUnknownScenario), errors.Is(err, router.ErrEmptyMessage):
		return MsgUnknownScenario
	case errors.Is(err, ratelimit.ErrLimited):
		return MsgRateLimited
	case errors.Is(err, worker.ErrDispatcherBusy), errors.Is(err, worker.ErrDispatcherClosed):
		return MsgBusy
	default:
		return MsgUnavailable
	}
}

// Class groups errors by who is at fault, for transports that report status codes.
type Class int

const (
	ClassInternal Class = iota
	ClassInvalid
	ClassThrottled
	ClassUpstream
)

func Classify(err error) Class {
	switch {
	case errors.Is(err, ErrMissingUser), errors.Is(err, ErrInvalidRole),
		errors.Is(err, scenario.ErrUnknownScenario), errors.Is(err, router.ErrEmptyMessage):
		return ClassInvalid
	case errors.Is(err, ratelimit.ErrLimited),
		errors.Is(err, worker.ErrDispatcherBusy), errors.Is(err, worker.ErrDispatcherClosed):
		return ClassThrottled
	case errors.Is(err, ai.ErrCompletionUnavailable), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ClassUpstream
	default:
		return ClassInternal
	}
}
