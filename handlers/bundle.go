package handlers

import (
	"net/http"

	"deviceinventory/utils"

	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	// Device endpoints
	CreateDeviceHandler      gin.HandlerFunc
	GetAllDevicesHandler     gin.HandlerFunc
	GetDeviceByIDHandler     gin.HandlerFunc
	GetDevicesByBrandHandler gin.HandlerFunc
	GetDevicesByStateHandler gin.HandlerFunc
	UpdateDeviceHandler      gin.HandlerFunc
	DeleteDeviceHandler      gin.HandlerFunc
	FlushDevicesHandler      gin.HandlerFunc

	HealthHandler gin.HandlerFunc
}

// NewHandlerBundle wires the device handler and the health probe.
func NewHandlerBundle(dh *DeviceHandler, monitor *utils.HealthMonitor) *HandlerBundle {
	return &HandlerBundle{
		CreateDeviceHandler:      dh.CreateDeviceHandler,
		GetAllDevicesHandler:     dh.GetAllDevicesHandler,
		GetDeviceByIDHandler:     dh.GetDeviceByIDHandler,
		GetDevicesByBrandHandler: dh.GetDevicesByBrandHandler,
		GetDevicesByStateHandler: dh.GetDevicesByStateHandler,
		UpdateDeviceHandler:      dh.UpdateDeviceHandler,
		DeleteDeviceHandler:      dh.DeleteDeviceHandler,
		FlushDevicesHandler:      dh.FlushDevicesHandler,
		HealthHandler:            HealthHandler(monitor),
	}
}

// HealthHandler reports the last dependency snapshot. It answers 503 when the store is down.
func HealthHandler(monitor *utils.HealthMonitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		if monitor == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		status := monitor.Status()
		if status.CheckedAt.IsZero() {
			status = monitor.Check(c.Request.Context())
		}
		if !status.Store {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "dependencies": status})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "dependencies": status})
	}
}
