package deviceRepo

import (
	"context"
	"sort"
	"sync"

	"deviceinventory/models"
)

type memoryDeviceRepo struct {
	mu      sync.RWMutex
	devices map[string]models.Device
}

// NewMemoryDeviceRepo returns a process-local DeviceRepository. Records are lost on exit.
func NewMemoryDeviceRepo() DeviceRepository {
	return &memoryDeviceRepo{
		devices: make(map[string]models.Device),
	}
}

func (r *memoryDeviceRepo) Create(_ context.Context, device *models.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stampNew(device)
	r.devices[device.ID] = *device
	return nil
}

func (r *memoryDeviceRepo) GetByID(_ context.Context, id string) (*models.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return &device, nil
}

func (r *memoryDeviceRepo) GetAll(_ context.Context) ([]models.Device, error) {
	return r.filter(func(models.Device) bool { return true }), nil
}

func (r *memoryDeviceRepo) GetByBrand(_ context.Context, brand string) ([]models.Device, error) {
	return r.filter(func(d models.Device) bool { return d.Brand == brand }), nil
}

func (r *memoryDeviceRepo) GetByState(_ context.Context, state models.DeviceState) ([]models.Device, error) {
	return r.filter(func(d models.Device) bool { return d.State == state }), nil
}

func (r *memoryDeviceRepo) Replace(_ context.Context, device *models.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[device.ID]; !ok {
		return ErrDeviceNotFound
	}
	r.devices[device.ID] = *device
	return nil
}

func (r *memoryDeviceRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return ErrDeviceNotFound
	}
	delete(r.devices, id)
	return nil
}

func (r *memoryDeviceRepo) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices = make(map[string]models.Device)
	return nil
}

// filter returns matching records ordered like the other backends: creation time, then id.
func (r *memoryDeviceRepo) filter(match func(models.Device) bool) []models.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := []models.Device{}
	for _, d := range r.devices {
		if match(d) {
			devices = append(devices, d)
		}
	}
	sort.Slice(devices, func(i, j int) bool {
		if !devices[i].CreationTime.Equal(devices[j].CreationTime) {
			return devices[i].CreationTime.Before(devices[j].CreationTime)
		}
		return devices[i].ID < devices[j].ID
	})
	return devices
}
