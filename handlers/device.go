package handlers

import (
	"errors"
	"net/http"
	"strings"

	"deviceinventory/models"
	"deviceinventory/services/device"
	"deviceinventory/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeviceHandler exposes DeviceService over HTTP.
type DeviceHandler struct {
	DeviceService device.DeviceService
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(svc device.DeviceService) *DeviceHandler {
	return &DeviceHandler{DeviceService: svc}
}

// CreateDeviceHandler handles POST /api/devices.
func (h *DeviceHandler) CreateDeviceHandler(c *gin.Context) {
	logger := getLogger(c)

	var req models.Device
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, logger, err)
		return
	}
	logger.Info("Received request to create device", zap.String("name", req.Name), zap.String("brand", req.Brand))

	created, err := h.DeviceService.CreateDevice(c.Request.Context(), req)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	logger.Info("Device created", zap.String("id", created.ID))
	c.JSON(http.StatusCreated, created)
}

// GetAllDevicesHandler handles GET /api/devices.
func (h *DeviceHandler) GetAllDevicesHandler(c *gin.Context) {
	devices, err := h.DeviceService.GetAllDevices(c.Request.Context())
	if err != nil {
		writeError(c, getLogger(c), err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

// GetDeviceByIDHandler handles GET /api/devices/:id.
func (h *DeviceHandler) GetDeviceByIDHandler(c *gin.Context) {
	logger := getLogger(c)
	id, ok := deviceID(c, logger)
	if !ok {
		return
	}

	d, err := h.DeviceService.GetDeviceByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// GetDevicesByBrandHandler handles GET /api/devices/brand/:brand.
func (h *DeviceHandler) GetDevicesByBrandHandler(c *gin.Context) {
	brand := c.Param("brand")
	devices, err := h.DeviceService.GetDevicesByBrand(c.Request.Context(), brand)
	if err != nil {
		writeError(c, getLogger(c), err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

// GetDevicesByStateHandler handles GET /api/devices/state/:state.
// An unknown state never reaches the service.
func (h *DeviceHandler) GetDevicesByStateHandler(c *gin.Context) {
	logger := getLogger(c)
	state, err := models.ParseDeviceState(c.Param("state"))
	if err != nil {
		logger.Warn("Invalid state in path", zap.String("state", c.Param("state")))
		utils.JSONError(c, http.StatusBadRequest, "Invalid state",
			"state must be one of "+strings.Join(models.DeviceStateNames(), ", "))
		return
	}

	devices, err := h.DeviceService.GetDevicesByState(c.Request.Context(), state)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

// UpdateDeviceHandler handles PUT /api/devices/:id.
func (h *DeviceHandler) UpdateDeviceHandler(c *gin.Context) {
	logger := getLogger(c)
	id, ok := deviceID(c, logger)
	if !ok {
		return
	}

	var req models.Device
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, logger, err)
		return
	}
	logger.Info("Trying to update device", zap.String("id", id))

	updated, err := h.DeviceService.UpdateDevice(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteDeviceHandler handles DELETE /api/devices/:id.
func (h *DeviceHandler) DeleteDeviceHandler(c *gin.Context) {
	logger := getLogger(c)
	id, ok := deviceID(c, logger)
	if !ok {
		return
	}
	logger.Info("Trying to delete device", zap.String("id", id))

	if err := h.DeviceService.DeleteDevice(c.Request.Context(), id); err != nil {
		writeError(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// FlushDevicesHandler handles DELETE /api/devices/flush.
func (h *DeviceHandler) FlushDevicesHandler(c *gin.Context) {
	logger := getLogger(c)
	logger.Info("Flushing all devices")

	if err := h.DeviceService.FlushDevices(c.Request.Context()); err != nil {
		writeError(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// deviceID validates the :id path parameter. Ids are UUIDs; anything else is a bad request.
func deviceID(c *gin.Context, logger *zap.Logger) (string, bool) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		logger.Warn("Invalid device id", zap.String("id", raw))
		utils.JSONError(c, http.StatusBadRequest, "Invalid device id", err.Error())
		return "", false
	}
	return id.String(), true
}

func invalidBody(c *gin.Context, logger *zap.Logger, err error) {
	logger.Warn("Invalid device request", zap.Error(err))
	details := err.Error()
	if errors.Is(err, models.ErrUnknownDeviceState) {
		details = "state must be one of " + strings.Join(models.DeviceStateNames(), ", ")
	}
	utils.JSONError(c, http.StatusBadRequest, "Invalid input or malformed JSON request", details)
}

// statusFor maps a service failure kind to its HTTP status.
func statusFor(kind device.Kind) int {
	switch kind {
	case device.KindInvalidInput, device.KindInvalidState:
		return http.StatusBadRequest
	case device.KindNotFound:
		return http.StatusNotFound
	case device.KindNotAllowed:
		return http.StatusNotAcceptable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, logger *zap.Logger, err error) {
	kind := device.KindOf(err)
	status := statusFor(kind)

	var de *device.DeviceError
	if !errors.As(err, &de) || kind == device.KindInternal {
		logger.Error("Device request failed", zap.Error(err))
		utils.JSONError(c, status, "Internal Server Error", "")
		return
	}
	logger.Warn(de.Message, zap.String("kind", kind.String()))
	utils.JSONError(c, status, de.Message, "")
}
