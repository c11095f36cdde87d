package handlers

import (
	"time"

	"pharmahub/internal/models"
	"pharmahub/internal/notify"
	"pharmahub/internal/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	wsIdentity = "ws_identity"
)

// NotificationHandler streams order events to connected vendors and
// pharmacies over WebSocket.
type NotificationHandler struct {
	hub    *notify.Hub
	tokens *services.TokenService
	logger *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(hub *notify.Hub, tokens *services.TokenService, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{hub: hub, tokens: tokens, logger: logger}
}

// RegisterRoutes mounts GET /ws. Browsers cannot set headers on the upgrade
// request, so the token travels in the "token" query parameter.
func (h *NotificationHandler) RegisterRoutes(router fiber.Router) {
	router.Use("/ws", h.upgrade)
	router.Get("/ws", websocket.New(h.stream))
}

func (h *NotificationHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	identity, err := h.tokens.ValidateToken(c.Query("token"))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid or expired token",
			"error":   err.Error(),
		})
	}
	c.Locals(wsIdentity, identity)
	return c.Next()
}

func (h *NotificationHandler) stream(conn *websocket.Conn) {
	identity, ok := conn.Locals(wsIdentity).(models.Identity)
	if !ok {
		conn.Close()
		return
	}

	sub := h.hub.Subscribe(identity)
	defer sub.Close()

	// Inbound frames are ignored; reading is how a closed peer is noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case evt, open := <-sub.Events():
			if !open {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				h.logger.Debug("websocket write failed", zap.String("subscription_id", sub.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
