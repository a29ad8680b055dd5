package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"servicechat/internal/models"
	"servicechat/internal/observability"
	"servicechat/internal/ratelimit"
	"servicechat/internal/service/assistant"
	"servicechat/internal/session"
	"servicechat/internal/worker"
)

// Handler wires HTTP routes to the assistant service.
type Handler struct {
	assistant        *assistant.Service
	limiter          ratelimit.Limiter
	workers          *worker.Dispatcher
	errorStatusCodes bool
}

type Options struct {
	Limiter ratelimit.Limiter
	Workers *worker.Dispatcher
	// ErrorStatusCodes reports failures with 4xx/5xx instead of 200 plus error text.
	ErrorStatusCodes bool
}

// NewHandler constructs a Handler instance.
func NewHandler(service *assistant.Service, opts Options) *Handler {
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &Handler{
		assistant:        service,
		limiter:          limiter,
		workers:          opts.Workers,
		errorStatusCodes: opts.ErrorStatusCodes,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.POST("/chat", h.chat)
	router.POST("/chat/reset", h.reset)
	router.GET("/scenarios", h.listScenarios)
	router.GET("/sessions/:user_id/:scenario_id", h.getSession)
	router.GET("/healthz", h.health)
}

type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
}

type chatResponse struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ctx := c.Request.Context()

	if userID := strings.TrimSpace(req.UserID); userID != "" {
		err := h.limiter.Allow(ctx, userID)
		if errors.Is(err, ratelimit.ErrLimited) {
			h.writeChatError(c, req.UserID, err)
			return
		}
		if err != nil {
			// fail open when the limiter backend is down
			observability.LoggerFromContext(ctx).Error("rate limiter failed", "error", err)
		}
	}

	reply, err := h.assistant.Chat(ctx, assistant.ChatRequest{
		UserID:  req.UserID,
		Role:    req.Role,
		Message: req.Message,
	})
	if err != nil {
		h.writeChatError(c, req.UserID, err)
		return
	}
	c.JSON(http.StatusOK, chatResponse{UserID: req.UserID, Message: reply})
}

type resetRequest struct {
	UserID     string `json:"user_id"`
	ScenarioID string `json:"scenario_id"`
}

func (h *Handler) reset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		h.writeChatError(c, req.UserID, assistant.ErrMissingUser)
		return
	}
	scenarioID := strings.TrimSpace(req.ScenarioID)
	message := h.assistant.Reset(c.Request.Context(), userID, scenarioID)
	c.JSON(http.StatusOK, chatResponse{UserID: req.UserID, Message: message})
}

func (h *Handler) listScenarios(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"scenarios": h.assistant.Scenarios()})
}

type sessionResponse struct {
	UserID     string        `json:"user_id"`
	ScenarioID string        `json:"scenario_id"`
	Turns      []models.Turn `json:"turns"`
}

func (h *Handler) getSession(c *gin.Context) {
	userID := c.Param("user_id")
	scenarioID := c.Param("scenario_id")
	turns, err := h.assistant.History(userID, scenarioID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sessionResponse{UserID: userID, ScenarioID: scenarioID, Turns: turns})
}

func (h *Handler) health(c *gin.Context) {
	body := gin.H{
		"status":   "ok",
		"sessions": h.assistant.SessionCount(),
	}
	if h.workers != nil {
		body["workers"] = h.workers.Stats()
	}
	c.JSON(http.StatusOK, body)
}

// writeChatError answers with the user-facing text for err, inside a 200 unless
// status codes are enabled.
func (h *Handler) writeChatError(c *gin.Context, userID string, err error) {
	status := http.StatusOK
	if h.errorStatusCodes {
		status = statusFor(err)
	}
	c.JSON(status, chatResponse{UserID: userID, Message: assistant.UserMessage(err)})
}

func statusFor(err error) int {
	switch assistant.Classify(err) {
	case assistant.ClassInvalid:
		return http.StatusBadRequest
	case assistant.ClassThrottled:
		return http.StatusTooManyRequests
	case assistant.ClassUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
