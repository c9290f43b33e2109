package deviceRepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"deviceinventory/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	cacheKeyPrefix = "device:"
	// Write counters. A miss only fills the cache when neither counter moved
	// while the record was being loaded.
	genKeyPrefix = "devicegen:"
	flushGenKey  = "devicegen:all"
)

var errConcurrentWrite = errors.New("device changed while loading")

// CachedDeviceRepo is a read-through Redis cache for point lookups.
// List queries always go to the wrapped repository. Reads fall back to the
// wrapped repository when Redis fails; writes fail when the cache cannot be
// invalidated, so a stale entry never outlives a change.
type CachedDeviceRepo struct {
	next   DeviceRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedDeviceRepo wraps next with a cache stored in client.
func NewCachedDeviceRepo(next DeviceRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedDeviceRepo {
	return &CachedDeviceRepo{next: next, client: client, ttl: ttl, logger: logger}
}

// Authoritative strips cache layers off repo. Reads that feed a write
// decision go here.
func Authoritative(repo DeviceRepository) DeviceRepository {
	for {
		cached, ok := repo.(*CachedDeviceRepo)
		if !ok {
			return repo
		}
		repo = cached.next
	}
}

func cacheKey(id string) string {
	return cacheKeyPrefix + id
}

func genKey(id string) string {
	return genKeyPrefix + id
}

// generations is a snapshot of the write counters guarding one id.
type generations [2]string

type mgetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func readGenerations(ctx context.Context, c mgetter, id string) (generations, error) {
	vals, err := c.MGet(ctx, genKey(id), flushGenKey).Result()
	if err != nil {
		return generations{}, err
	}
	var gens generations
	for i, v := range vals {
		if s, ok := v.(string); ok {
			gens[i] = s
		}
	}
	return gens, nil
}

func (r *CachedDeviceRepo) Create(ctx context.Context, device *models.Device) error {
	// A fresh id has no writes yet; only a racing flush may invalidate the fill.
	flushGen, genErr := r.client.Get(ctx, flushGenKey).Result()
	if errors.Is(genErr, redis.Nil) {
		genErr = nil
	}
	if err := r.next.Create(ctx, device); err != nil {
		return err
	}
	if genErr == nil {
		r.fill(ctx, device, generations{"", flushGen})
	}
	return nil
}

func (r *CachedDeviceRepo) GetByID(ctx context.Context, id string) (*models.Device, error) {
	raw, err := r.client.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case err == nil:
		var device models.Device
		if jsonErr := json.Unmarshal(raw, &device); jsonErr == nil {
			return &device, nil
		}
		r.logger.Warn("discarding undecodable cache entry", zap.String("id", id))
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("device cache read failed", zap.String("id", id), zap.Error(err))
	}

	gens, genErr := readGenerations(ctx, r.client, id)
	device, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if genErr == nil {
		r.fill(ctx, device, gens)
	}
	return device, nil
}

func (r *CachedDeviceRepo) GetAll(ctx context.Context) ([]models.Device, error) {
	return r.next.GetAll(ctx)
}

func (r *CachedDeviceRepo) GetByBrand(ctx context.Context, brand string) ([]models.Device, error) {
	return r.next.GetByBrand(ctx, brand)
}

func (r *CachedDeviceRepo) GetByState(ctx context.Context, state models.DeviceState) ([]models.Device, error) {
	return r.next.GetByState(ctx, state)
}

// Replace invalidates before and after the write. The second pass catches a
// fill that loaded the old record between the first pass and the write.
func (r *CachedDeviceRepo) Replace(ctx context.Context, device *models.Device) error {
	if err := r.invalidate(ctx, device.ID); err != nil {
		return err
	}
	if err := r.next.Replace(ctx, device); err != nil {
		return err
	}
	return r.invalidate(ctx, device.ID)
}

func (r *CachedDeviceRepo) Delete(ctx context.Context, id string) error {
	if err := r.invalidate(ctx, id); err != nil {
		return err
	}
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	return r.invalidate(ctx, id)
}

func (r *CachedDeviceRepo) DeleteAll(ctx context.Context) error {
	if err := r.invalidateAll(ctx); err != nil {
		return err
	}
	if err := r.next.DeleteAll(ctx); err != nil {
		return err
	}
	return r.invalidateAll(ctx)
}

// fill caches device unless a write bumped a counter since seen was read.
func (r *CachedDeviceRepo) fill(ctx context.Context, device *models.Device, seen generations) {
	raw, err := json.Marshal(device)
	if err != nil {
		r.logger.Warn("device cache encode failed", zap.String("id", device.ID), zap.Error(err))
		return
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGenerations(ctx, tx, device.ID)
		if err != nil {
			return err
		}
		if current != seen {
			return errConcurrentWrite
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(device.ID), raw, r.ttl)
			return nil
		})
		return err
	}, genKey(device.ID), flushGenKey)

	switch {
	case err == nil:
	case errors.Is(err, errConcurrentWrite), errors.Is(err, redis.TxFailedErr):
		r.logger.Debug("skipping device cache fill after concurrent write", zap.String("id", device.ID))
	default:
		r.logger.Warn("device cache write failed", zap.String("id", device.ID), zap.Error(err))
	}
}

// genTTL outlives any in-flight fill by a wide margin.
func (r *CachedDeviceRepo) genTTL() time.Duration {
	return r.ttl + time.Hour
}

func (r *CachedDeviceRepo) invalidate(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(id))
		pipe.Expire(ctx, genKey(id), r.genTTL())
		pipe.Del(ctx, cacheKey(id))
		return nil
	})
	if err != nil {
		r.logger.Error("device cache invalidation failed", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to invalidate cached device %s: %w", id, err)
	}
	return nil
}

func (r *CachedDeviceRepo) invalidateAll(ctx context.Context) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, flushGenKey)
		pipe.Expire(ctx, flushGenKey, r.genTTL())
		return nil
	})
	if err != nil {
		r.logger.Error("device cache flush failed", zap.Error(err))
		return fmt.Errorf("failed to invalidate device cache: %w", err)
	}

	iter := r.client.Scan(ctx, 0, cacheKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.logger.Error("device cache scan failed", zap.Error(err))
		return fmt.Errorf("failed to scan device cache: %w", err)
	}
	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			r.logger.Error("device cache flush failed", zap.Int("keys", len(keys)), zap.Error(err))
			return fmt.Errorf("failed to flush device cache: %w", err)
		}
	}
	return nil
}
