package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/leauyn/openavatarchat/internal/session"
	"github.com/leauyn/openavatarchat/internal/websocket"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, store *session.Store, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "openavatarchat-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Connected sessions, for operational checks
	v1.GET("/sessions", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"sessions": hub.Sessions(),
		})
	})

	// The front desk posts the subject binding here before the client's
	// first turn; the chat handler resolves it when rendering prompts.
	v1.POST("/session/user", func(c echo.Context) error {
		return bindUser(c, store, logger)
	})

	// WebSocket endpoint driving the turn pipeline
	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})
}

func bindUser(c echo.Context, store *session.Store, logger *zap.Logger) error {
	var req BindUserRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind session user request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.SessionID == "" || req.UserID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "session_id and user_id are required",
		})
	}

	store.Put(req.SessionID, req.UserID)
	logger.Info("Subject bound to session",
		zap.String("session_id", req.SessionID),
		zap.String("user_id", req.UserID))

	return c.JSON(http.StatusOK, BindUserResponse{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		BoundAt:   time.Now(),
	})
}
