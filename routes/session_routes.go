package routes

import (
	"safeguard/internal/handlers"
	"safeguard/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupSessionRoutes sets up routes for emergency session management
func SetupSessionRoutes(r *gin.RouterGroup, sessionHandler *handlers.SessionHandler, jwtSecret string) {
	sessions := r.Group("/sessions")
	sessions.Use(middleware.AuthRequired(jwtSecret))
	{
		sessions.POST("", sessionHandler.StartSession)
		sessions.GET("", sessionHandler.GetSessionHistory)
		sessions.GET("/active", sessionHandler.GetActiveSession)
		sessions.GET("/:id", sessionHandler.GetSession)
		sessions.POST("/:id/extend", sessionHandler.ExtendSession)
		sessions.POST("/:id/stop", sessionHandler.StopSession)
		sessions.POST("/:id/checkin", sessionHandler.Checkin)
	}
}
