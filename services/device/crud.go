package device

import (
	"context"
	"errors"
	"time"

	deviceRepo "deviceinventory/database/repository/device"
	"deviceinventory/models"
	"deviceinventory/services/dispatch"
	"deviceinventory/services/events"

	"go.uber.org/zap"
)

// CreateDevice validates the state before dispatching; the write itself runs on the pool.
func (s *DefaultDeviceService) CreateDevice(ctx context.Context, device models.Device) (*models.Device, error) {
	if !IsValidState(device.State) {
		s.Logger.Error("Invalid state", zap.String("state", device.State.String()))
		return nil, newError(KindInvalidState, msgInvalidState)
	}

	return run(ctx, s, func(ctx context.Context) (*models.Device, error) {
		created := device
		if err := s.Repo.Create(ctx, &created); err != nil {
			s.Logger.Error("Failed to create device", zap.Error(err))
			return nil, internalError("Failed to create device", err)
		}
		s.Logger.Info("Device created", zap.String("id", created.ID), zap.String("state", created.State.String()))
		s.publish(ctx, events.NewDeviceEvent(events.DeviceCreated, created))
		return &created, nil
	})
}

func (s *DefaultDeviceService) GetAllDevices(ctx context.Context) ([]models.Device, error) {
	return run(ctx, s, func(ctx context.Context) ([]models.Device, error) {
		devices, err := s.Repo.GetAll(ctx)
		if err != nil {
			s.Logger.Error("Failed to fetch devices", zap.Error(err))
			return nil, internalError("Failed to fetch devices", err)
		}
		if len(devices) == 0 {
			s.Logger.Warn("No devices found")
			return nil, newError(KindNotFound, "No devices found")
		}
		return devices, nil
	})
}

func (s *DefaultDeviceService) GetDeviceByID(ctx context.Context, id string) (*models.Device, error) {
	return run(ctx, s, func(ctx context.Context) (*models.Device, error) {
		return s.lookup(ctx, id)
	})
}

func (s *DefaultDeviceService) GetDevicesByBrand(ctx context.Context, brand string) ([]models.Device, error) {
	return run(ctx, s, func(ctx context.Context) ([]models.Device, error) {
		s.Logger.Debug("Getting devices by brand", zap.String("brand", brand))
		devices, err := s.Repo.GetByBrand(ctx, brand)
		if err != nil {
			s.Logger.Error("Failed to fetch devices by brand", zap.String("brand", brand), zap.Error(err))
			return nil, internalError("Failed to fetch devices", err)
		}
		if len(devices) == 0 {
			s.Logger.Warn("No devices found for brand", zap.String("brand", brand))
			return nil, newError(KindNotFound, "No devices found for brand "+brand)
		}
		return devices, nil
	})
}

func (s *DefaultDeviceService) GetDevicesByState(ctx context.Context, state models.DeviceState) ([]models.Device, error) {
	return run(ctx, s, func(ctx context.Context) ([]models.Device, error) {
		s.Logger.Debug("Getting devices by state", zap.String("state", state.String()))
		devices, err := s.Repo.GetByState(ctx, state)
		if err != nil {
			s.Logger.Error("Failed to fetch devices by state", zap.String("state", state.String()), zap.Error(err))
			return nil, internalError("Failed to fetch devices", err)
		}
		if len(devices) == 0 {
			s.Logger.Warn("No devices found for state", zap.String("state", state.String()))
			return nil, newError(KindNotFound, "No devices found for state "+state.String())
		}
		return devices, nil
	})
}

// UpdateDevice overwrites name, brand and state. ID and CreationTime always come
// from the stored record, whatever the request carried. A missing device is
// reported before an invalid state.
func (s *DefaultDeviceService) UpdateDevice(ctx context.Context, id string, device models.Device) (*models.Device, error) {
	return run(ctx, s, func(ctx context.Context) (*models.Device, error) {
		unlock := s.locks.Lock(id)
		defer unlock()

		existing, err := s.lookupStored(ctx, id)
		if err != nil {
			return nil, err
		}
		if !IsValidState(device.State) {
			s.Logger.Error("Invalid state", zap.String("id", id), zap.String("state", device.State.String()))
			return nil, newError(KindInvalidState, msgInvalidState)
		}
		if err := CanUpdate(*existing, device); err != nil {
			s.Logger.Error("Device is in use and cannot be updated", zap.String("id", id))
			return nil, err
		}

		updated := device
		updated.ID = id
		updated.CreationTime = existing.CreationTime
		if err := s.Repo.Replace(ctx, &updated); err != nil {
			if errors.Is(err, deviceRepo.ErrDeviceNotFound) {
				return nil, newError(KindNotFound, msgDeviceNotFound)
			}
			s.Logger.Error("Failed to update device", zap.String("id", id), zap.Error(err))
			return nil, internalError("Failed to update device", err)
		}
		s.publish(ctx, events.NewDeviceEvent(events.DeviceUpdated, updated))
		return &updated, nil
	})
}

func (s *DefaultDeviceService) DeleteDevice(ctx context.Context, id string) error {
	_, err := run(ctx, s, func(ctx context.Context) (struct{}, error) {
		unlock := s.locks.Lock(id)
		defer unlock()

		existing, err := s.lookupStored(ctx, id)
		if err != nil {
			return struct{}{}, err
		}
		if err := CanDelete(*existing); err != nil {
			s.Logger.Error("Device is in use and cannot be deleted", zap.String("id", id))
			return struct{}{}, err
		}

		if err := s.Repo.Delete(ctx, id); err != nil {
			if errors.Is(err, deviceRepo.ErrDeviceNotFound) {
				return struct{}{}, newError(KindNotFound, msgDeviceNotFound)
			}
			s.Logger.Error("Failed to delete device", zap.String("id", id), zap.Error(err))
			return struct{}{}, internalError("Failed to delete device", err)
		}
		s.publish(ctx, events.NewDeviceEvent(events.DeviceDeleted, *existing))
		return struct{}{}, nil
	})
	return err
}

func (s *DefaultDeviceService) FlushDevices(ctx context.Context) error {
	_, err := run(ctx, s, func(ctx context.Context) (struct{}, error) {
		s.Logger.Info("Flushing all devices")
		if err := s.Repo.DeleteAll(ctx); err != nil {
			s.Logger.Error("Failed to flush devices", zap.Error(err))
			return struct{}{}, internalError("Failed to flush devices", err)
		}
		s.publish(ctx, events.LifecycleEvent{Type: events.DevicesFlushed, OccurredAt: time.Now().UTC()})
		return struct{}{}, nil
	})
	return err
}

// lookup maps a missing record to NotFound.
func (s *DefaultDeviceService) lookup(ctx context.Context, id string) (*models.Device, error) {
	return s.lookupIn(ctx, s.Repo, id)
}

// lookupStored bypasses any cache. Policy checks must see the committed record.
func (s *DefaultDeviceService) lookupStored(ctx context.Context, id string) (*models.Device, error) {
	return s.lookupIn(ctx, deviceRepo.Authoritative(s.Repo), id)
}

func (s *DefaultDeviceService) lookupIn(ctx context.Context, repo deviceRepo.DeviceRepository, id string) (*models.Device, error) {
	device, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, deviceRepo.ErrDeviceNotFound) {
			s.Logger.Error("Device not found", zap.String("id", id))
			return nil, newError(KindNotFound, msgDeviceNotFound)
		}
		s.Logger.Error("Failed to fetch device", zap.String("id", id), zap.Error(err))
		return nil, internalError("Failed to fetch device", err)
	}
	return device, nil
}

// publish is best effort: a lost event never fails the mutation that caused it.
func (s *DefaultDeviceService) publish(ctx context.Context, event events.LifecycleEvent) {
	if err := s.Events.Publish(ctx, event); err != nil {
		s.Logger.Warn("Failed to publish lifecycle event", zap.String("type", event.Type), zap.Error(err))
	}
}

// run dispatches fn on the service's pool. Once dispatched, fn runs to completion
// even if the caller stops waiting, so it gets a context that is never cancelled.
func run[T any](ctx context.Context, s *DefaultDeviceService, fn func(ctx context.Context) (T, error)) (T, error) {
	workCtx := context.WithoutCancel(ctx)
	val, err := dispatch.Run(ctx, s.Dispatcher, func() (T, error) {
		return fn(workCtx)
	})
	if err != nil {
		var de *DeviceError
		if !errors.As(err, &de) {
			s.Logger.Error("Device operation did not complete", zap.Error(err))
			return val, internalError("Device operation did not complete", err)
		}
	}
	return val, err
}
