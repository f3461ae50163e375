package routes

import (
	"safeguard/internal/handlers"
	"safeguard/internal/middleware"
	"safeguard/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// SetupTelemetryRoutes sets up routes for device telemetry ingest
func SetupTelemetryRoutes(r *gin.RouterGroup, telemetryHandler *handlers.TelemetryHandler, wsHandler *websocket.Handler, jwtSecret string) {
	telemetry := r.Group("/telemetry")
	telemetry.Use(middleware.AuthRequired(jwtSecret))
	{
		telemetry.POST("", telemetryHandler.ReportTelemetry)
		telemetry.GET("/latest", telemetryHandler.GetLatestTelemetry)
		telemetry.GET("/ws", wsHandler.HandleWebSocket)
	}
}
