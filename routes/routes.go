package routes

import (
	"time"

	"deviceinventory/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterDeviceRoutes registers device inventory endpoints.
// Static segments (flush, brand, state) sit alongside :id.
func RegisterDeviceRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/devices")
	{
		api.POST("", hb.CreateDeviceHandler)
		api.GET("", hb.GetAllDevicesHandler)
		api.GET("/:id", hb.GetDeviceByIDHandler)
		api.GET("/brand/:brand", hb.GetDevicesByBrandHandler)
		api.GET("/state/:state", hb.GetDevicesByStateHandler)
		api.PUT("/:id", hb.UpdateDeviceHandler)
		api.DELETE("/flush", hb.FlushDevicesHandler)
		api.DELETE("/:id", hb.DeleteDeviceHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.HealthHandler)
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	RegisterDeviceRoutes(r, hb)
	RegisterHealthRoute(r, hb)
}
