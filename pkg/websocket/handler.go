package websocket

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	hub *Hub
}

func NewHandler(sink Sink) *Handler {
	hub := NewHub(sink)
	go hub.Run()

	return &Handler{
		hub: hub,
	}
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	deviceID, exists := c.Get("device_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	deviceIDStr, ok := deviceID.(string)
	if !ok || deviceIDStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid device ID"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(h.hub, conn, deviceIDStr)
	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// NotifyDevice pushes a session lifecycle update to a connected device.
func (h *Handler) NotifyDevice(deviceID string, eventType string, data map[string]interface{}) {
	h.hub.SendToDevice(deviceID, eventType, data)
}

func (h *Handler) GetHub() *Hub {
	return h.hub
}
