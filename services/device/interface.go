package device

import (
	"context"

	deviceRepo "deviceinventory/database/repository/device"
	"deviceinventory/models"
	"deviceinventory/services/dispatch"
	"deviceinventory/services/events"

	"go.uber.org/zap"
)

// DeviceService exposes the inventory use cases. Every failure is a *DeviceError.
type DeviceService interface {
	// CreateDevice persists a new device. The store assigns its ID and CreationTime.
	CreateDevice(ctx context.Context, device models.Device) (*models.Device, error)
	// GetAllDevices returns every device. An empty inventory is a NotFound failure.
	GetAllDevices(ctx context.Context) ([]models.Device, error)
	// GetDeviceByID returns the device with the given id.
	GetDeviceByID(ctx context.Context, id string) (*models.Device, error)
	// GetDevicesByBrand returns devices whose brand matches exactly. No match is NotFound.
	GetDevicesByBrand(ctx context.Context, brand string) ([]models.Device, error)
	// GetDevicesByState returns devices in state. No match is NotFound.
	GetDevicesByState(ctx context.Context, state models.DeviceState) ([]models.Device, error)
	// UpdateDevice replaces name, brand and state of an existing device, subject to the lifecycle policy.
	UpdateDevice(ctx context.Context, id string, device models.Device) (*models.Device, error)
	// DeleteDevice removes a device, subject to the lifecycle policy.
	DeleteDevice(ctx context.Context, id string) error
	// FlushDevices removes every device without consulting the policy.
	FlushDevices(ctx context.Context) error
}

// DefaultDeviceService is the production implementation.
type DefaultDeviceService struct {
	Repo       deviceRepo.DeviceRepository
	Dispatcher dispatch.Dispatcher
	Events     events.Publisher
	Logger     *zap.Logger

	locks keyedMutex
}

// NewDeviceService wires a service. The service owns dispatcher and closes it in Close.
func NewDeviceService(repo deviceRepo.DeviceRepository, dispatcher dispatch.Dispatcher, publisher events.Publisher, logger *zap.Logger) *DefaultDeviceService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &DefaultDeviceService{
		Repo:       repo,
		Dispatcher: dispatcher,
		Events:     publisher,
		Logger:     logger,
	}
}

// Close waits for in-flight operations and stops the dispatcher.
func (s *DefaultDeviceService) Close() {
	s.Dispatcher.Close()
}
