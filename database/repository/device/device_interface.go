package deviceRepo

import (
	"context"
	"errors"
	"time"

	"deviceinventory/models"

	"github.com/google/uuid"
)

// ErrDeviceNotFound is returned when no record has the requested id.
var ErrDeviceNotFound = errors.New("device not found")

// DeviceRepository defines methods for device data access.
type DeviceRepository interface {
	// Create inserts a new record. The repository assigns ID and CreationTime,
	// overwriting whatever the caller put there.
	Create(ctx context.Context, device *models.Device) error
	// GetByID retrieves a device by its unique ID. Returns ErrDeviceNotFound if absent.
	GetByID(ctx context.Context, id string) (*models.Device, error)
	// GetAll retrieves every device.
	GetAll(ctx context.Context) ([]models.Device, error)
	// GetByBrand retrieves devices whose brand matches exactly.
	GetByBrand(ctx context.Context, brand string) ([]models.Device, error)
	// GetByState retrieves devices in the given state.
	GetByState(ctx context.Context, state models.DeviceState) ([]models.Device, error)
	// Replace overwrites the record with device.ID. Returns ErrDeviceNotFound if absent.
	Replace(ctx context.Context, device *models.Device) error
	// Delete removes a device by its ID. Returns ErrDeviceNotFound if absent.
	Delete(ctx context.Context, id string) error
	// DeleteAll removes every device.
	DeleteAll(ctx context.Context) error
}

// stampNew assigns the store-owned fields of a fresh record.
// Times are truncated to milliseconds, the coarsest precision among the backends.
func stampNew(device *models.Device) {
	device.ID = uuid.New().String()
	device.CreationTime = time.Now().UTC().Truncate(time.Millisecond)
}

// newContext derives a context bounded by the repository timeout.
func newContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
