package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	deviceRepo "deviceinventory/database/repository/device"
	"deviceinventory/models"
	"deviceinventory/services/dispatch"
	"deviceinventory/services/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LifecycleEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// failingRepo fails every call with err.
type failingRepo struct{ err error }

func (r failingRepo) Create(context.Context, *models.Device) error { return r.err }
func (r failingRepo) GetByID(context.Context, string) (*models.Device, error) {
	return nil, r.err
}
func (r failingRepo) GetAll(context.Context) ([]models.Device, error) { return nil, r.err }
func (r failingRepo) GetByBrand(context.Context, string) ([]models.Device, error) {
	return nil, r.err
}
func (r failingRepo) GetByState(context.Context, models.DeviceState) ([]models.Device, error) {
	return nil, r.err
}
func (r failingRepo) Replace(context.Context, *models.Device) error { return r.err }
func (r failingRepo) Delete(context.Context, string) error          { return r.err }
func (r failingRepo) DeleteAll(context.Context) error               { return r.err }

func newTestService(t *testing.T, repo deviceRepo.DeviceRepository) (*DefaultDeviceService, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	svc := NewDeviceService(repo, dispatch.NewPool(4, 16, zap.NewNop()), pub, zap.NewNop())
	t.Cleanup(svc.Close)
	return svc, pub
}

func mustCreate(t *testing.T, svc DeviceService, name, brand string, state models.DeviceState) *models.Device {
	t.Helper()
	d, err := svc.CreateDevice(context.Background(), models.Device{Name: name, Brand: brand, State: state})
	require.NoError(t, err)
	return d
}

func TestCreateDevice(t *testing.T) {
	for _, state := range []models.DeviceState{models.StateAvailable, models.StateInUse, models.StateInactive} {
		t.Run(string(state), func(t *testing.T) {
			svc, pub := newTestService(t, deviceRepo.NewMemoryDeviceRepo())
			before := time.Now().Add(-time.Millisecond)

			d, err := svc.CreateDevice(context.Background(), models.Device{
				ID:           "ignored",
				Name:         "X",
				Brand:        "B",
				State:        state,
				CreationTime: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
			})
			require.NoError(t, err)

			assert.NotEmpty(t, d.ID)
			assert.NotEqual(t, "ignored", d.ID)
			assert.False(t, d.CreationTime.Before(before))
			assert.Equal(t, state, d.State)
			assert.Equal(t, []string{events.DeviceCreated}, pub.types())
		})
	}

	t.Run("invalid state", func(t *testing.T) {
		for _, state := range []models.DeviceState{"", "BROKEN"} {
			svc, pub := newTestService(t, deviceRepo.NewMemoryDeviceRepo())

			_, err := svc.CreateDevice(context.Background(), models.Device{Name: "X", Brand: "B", State: state})
			require.Error(t, err)
			assert.True(t, IsKind(err, KindInvalidState))
			assert.Equal(t, "Invalid state", err.Error())

			_, err = svc.GetAllDevices(context.Background())
			assert.True(t, IsKind(err, KindNotFound), "nothing may be persisted")
			assert.Empty(t, pub.types())
		}
	})
}

func TestEmptyResultsAreNotFound(t *testing.T) {
	svc, _ := newTestService(t, deviceRepo.NewMemoryDeviceRepo())
	ctx := context.Background()

	_, err := svc.GetAllDevices(ctx)
	assert.True(t, IsKind(err, KindNotFound))
	assert.Equal(t, "No devices found", err.Error())

	_, err = svc.GetDeviceByID(ctx, uuid.New().String())
	assert.True(t, IsKind(err, KindNotFound))
	assert.Equal(t, "Device not found", err.Error())

	_, err = svc.GetDevicesByBrand(ctx, "BrandA")
	assert.True(t, IsKind(err, KindNotFound))
	assert.Equal(t, "No devices found for brand BrandA", err.Error())

	_, err = svc.GetDevicesByState(ctx, models.StateAvailable)
	assert.True(t, IsKind(err, KindNotFound))
	assert.Equal(t, "No devices found for state AVAILABLE", err.Error())
}

func TestListings(t *testing.T) {
	svc, _ := newTestService(t, deviceRepo.NewMemoryDeviceRepo())
	ctx := context.Background()

	mustCreate(t, svc, "a", "BrandA", models.StateAvailable)
	mustCreate(t, svc, "b", "BrandA", models.StateInUse)
	mustCreate(t, svc, "c", "BrandB", models.StateInUse)

	all, err := svc.GetAllDevices(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byBrand, err := svc.GetDevicesByBrand(ctx, "BrandA")
	require.NoError(t, err)
	assert.Len(t, byBrand, 2)

	_, err = svc.GetDevicesByBrand(ctx, "branda")
	assert.True(t, IsKind(err, KindNotFound), "brand match is case-sensitive")

	inUse, err := svc.GetDevicesByState(ctx, models.StateInUse)
	require.NoError(t, err)
	assert.Len(t, inUse, 2)

	_, err = svc.GetDevicesByState(ctx, models.StateInactive)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestUpdateDevice(t *testing.T) {
	ctx := context.Background()

	t.Run("preserves id and creation time", func(t *testing.T) {
		svc, pub := newTestService(t, deviceRepo.NewMemoryDeviceRepo())
		d := mustCreate(t, svc, "X", "B", models.StateAvailable)

		updated, err := svc.UpdateDevice(ctx, d.ID, models.Device{
			ID:           "other-id",
			Name:         "Y",
			Brand:        "C",
			State:        models.StateInactive,
			CreationTime: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.Equal(t, d.ID, updated.ID)
		assert.True(t, d.CreationTime.Equal(updated.CreationTime))
		assert.Equal(t, "Y", updated.Name)
		assert.Equal(t, "C", updated.Brand)

		stored, err := svc.GetDeviceByID(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, *updated, *stored)
		assert.Equal(t, []string{events.DeviceCreated, events.DeviceUpdated}, pub.types())
	})

	t.Run("missing device", func(t *testing.T) {
		svc, _ := newTestService(t, deviceRepo.NewMemoryDeviceRepo())
		_, err := svc.UpdateDevice(ctx, uuid.New().String(), models.Device{Name: "X", Brand: "B", State: models.StateAvailable})
		assert.True(t, IsKind(err, KindNotFound))

		// Existence is checked before the state.
		_, err = svc.UpdateDevice(ctx, uuid.New().String(), models.Device{Name: "X", Brand: "B"})
		assert.True(t, IsKind(err, KindNotFound))
	})

	t.Run("invalid state", func(t *testing.T) {
		svc, _ := newTestService(t, deviceRepo.NewMemoryDeviceRepo())
		d := mustCreate(t, svc, "X", "B", models.StateAvailable)

		_, err := svc.UpdateDevice(ctx, d.ID, models.Device{Name: "X", Brand: "B"})
		assert.True(t, IsKind(err, KindInvalidState))
	})

	t.Run("in use blocks name and brand but not state", func(t *testing.T) {
		svc, _ := newTestService(t, deviceRepo.NewMemoryDeviceRepo())
		d := mustCreate(t, svc, "X", "B", models.StateInUse)

		_, err := svc.UpdateDevice(ctx, d.ID, models.Device{Name: "Y", Brand: "B", State: models.StateInUse})
		assert.True(t, IsKind(err, KindNotAllowed))

		_, err = svc.UpdateDevice(ctx, d.ID, models.Device{Name: "X", Brand: "C", State: models.StateInUse})
		assert.True(t, IsKind(err, KindNotAllowed))

		updated, err := svc.UpdateDevice(ctx, d.ID, models.Device{Name: "X", Brand: "B", State: models.StateInactive})
		require.NoError(t, err)
		assert.Equal(t, models.StateInactive, updated.State)
	})
}

func TestDeleteDevice(t *testing.T) {
	ctx := context.Background()

	for _, state := range []models.DeviceState{models.StateAvailable, models.StateInactive} {
		t.Run(string(state), func(t *testing.T) {
			svc, pub := newTestService(t, deviceRepo.NewMemoryDeviceRepo())
			d := mustCreate(t, svc, "X", "B", state)

			require.NoError(t, svc.DeleteDevice(ctx, d.ID))

			_, err := svc.GetDeviceByID(ctx, d.ID)
			assert.True(t, IsKind(err, KindNotFound))
			assert.Equal(t, []string{events.DeviceCreated, events.DeviceDeleted}, pub.types())
		})
	}

	t.Run("in use", func(t *testing.T) {
		svc, _ := newTestService(t, deviceRepo.NewMemoryDeviceRepo())
		d := mustCreate(t, svc, "X", "B", models.StateInUse)

		err := svc.DeleteDevice(ctx, d.ID)
		assert.True(t, IsKind(err, KindNotAllowed))
		assert.Equal(t, "In-use devices cannot be deleted", err.Error())

		_, err = svc.GetDeviceByID(ctx, d.ID)
		assert.NoError(t, err)
	})

	t.Run("missing device", func(t *testing.T) {
		svc, _ := newTestService(t, deviceRepo.NewMemoryDeviceRepo())
		err := svc.DeleteDevice(ctx, uuid.New().String())
		assert.True(t, IsKind(err, KindNotFound))
	})
}

func TestFlushDevices(t *testing.T) {
	svc, pub := newTestService(t, deviceRepo.NewMemoryDeviceRepo())
	ctx := context.Background()

	// Flushing an empty inventory succeeds.
	require.NoError(t, svc.FlushDevices(ctx))

	mustCreate(t, svc, "a", "B", models.StateInUse)
	mustCreate(t, svc, "b", "B", models.StateAvailable)

	require.NoError(t, svc.FlushDevices(ctx))

	_, err := svc.GetAllDevices(ctx)
	assert.True(t, IsKind(err, KindNotFound))
	assert.Contains(t, pub.types(), events.DevicesFlushed)
}

func TestStoreFailuresAreInternal(t *testing.T) {
	storeErr := errors.New("connection reset")
	svc, _ := newTestService(t, failingRepo{err: storeErr})
	ctx := context.Background()

	_, err := svc.CreateDevice(ctx, models.Device{Name: "X", Brand: "B", State: models.StateAvailable})
	assert.True(t, IsKind(err, KindInternal))
	assert.ErrorIs(t, err, storeErr)

	_, err = svc.GetAllDevices(ctx)
	assert.True(t, IsKind(err, KindInternal))

	_, err = svc.GetDeviceByID(ctx, "x")
	assert.True(t, IsKind(err, KindInternal))

	err = svc.DeleteDevice(ctx, "x")
	assert.True(t, IsKind(err, KindInternal))

	err = svc.FlushDevices(ctx)
	assert.True(t, IsKind(err, KindInternal))
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	svc, pub := newTestService(t, deviceRepo.NewMemoryDeviceRepo())
	pub.err = errors.New("queue down")

	d, err := svc.CreateDevice(context.Background(), models.Device{Name: "X", Brand: "B", State: models.StateAvailable})
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
}

func TestClosedServiceRejectsWork(t *testing.T) {
	svc := NewDeviceService(deviceRepo.NewMemoryDeviceRepo(), dispatch.NewPool(1, 1, zap.NewNop()), nil, zap.NewNop())
	svc.Close()

	_, err := svc.GetAllDevices(context.Background())
	assert.True(t, IsKind(err, KindInternal))
	assert.ErrorIs(t, err, dispatch.ErrPoolClosed)
}

func TestConcurrentMutationsOnOneDevice(t *testing.T) {
	svc, _ := newTestService(t, deviceRepo.NewMemoryDeviceRepo())
	ctx := context.Background()
	d := mustCreate(t, svc, "X", "B", models.StateAvailable)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.UpdateDevice(ctx, d.ID, models.Device{Name: "X", Brand: "B", State: models.StateInUse})
		results <- err
	}()
	go func() {
		defer wg.Done()
		results <- svc.DeleteDevice(ctx, d.ID)
	}()
	wg.Wait()
	close(results)

	var errs []error
	for err := range results {
		errs = append(errs, err)
	}

	// Either the update ran first (device is IN_USE, delete refused) or the
	// delete ran first (device gone, update NotFound). Never both succeed.
	stored, getErr := svc.GetDeviceByID(ctx, d.ID)
	if getErr == nil {
		assert.Equal(t, models.StateInUse, stored.State)
		assert.Contains(t, kinds(errs), KindNotAllowed)
	} else {
		assert.True(t, IsKind(getErr, KindNotFound))
		assert.Contains(t, kinds(errs), KindNotFound)
	}
}

func kinds(errs []error) []Kind {
	var out []Kind
	for _, err := range errs {
		if err != nil {
			out = append(out, KindOf(err))
		}
	}
	return out
}
