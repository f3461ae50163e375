package routes

import (
	"safeguard/internal/handlers"
	"safeguard/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupSosRoutes sets up routes for the SOS siren lock
func SetupSosRoutes(r *gin.RouterGroup, sosHandler *handlers.SosHandler, jwtSecret string) {
	sos := r.Group("/sos")
	sos.Use(middleware.AuthRequired(jwtSecret))
	{
		sos.PUT("/pin", sosHandler.SetPin)
		sos.POST("/arm", sosHandler.Arm)
		sos.POST("/silence", sosHandler.Silence)
		sos.GET("/lock", sosHandler.GetLockStatus)
	}
}
