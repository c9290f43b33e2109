package deviceRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deviceinventory/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const devicesCollection = "devices"

// MongoDeviceRepo implements DeviceRepository using MongoDB.
type MongoDeviceRepo struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// NewMongoDeviceRepo creates a DeviceRepository backed by the devices collection of db.
func NewMongoDeviceRepo(db *mongo.Database, timeout time.Duration, logger *zap.Logger) DeviceRepository {
	repo := &MongoDeviceRepo{coll: db.Collection(devicesCollection), timeout: timeout}

	if err := repo.ensureIndexes(); err != nil {
		logger.Warn("failed to create device indexes", zap.Error(err))
	}
	return repo
}

// ensureIndexes creates the primary key index and the two lookup indexes.
func (r *MongoDeviceRepo) ensureIndexes() error {
	ctx, cancel := newContext(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "brand", Value: 1}}},
		{Keys: bson.D{{Key: "state", Value: 1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Create inserts a new device document.
func (r *MongoDeviceRepo) Create(ctx context.Context, device *models.Device) error {
	ctx, cancel := newContext(ctx, r.timeout)
	defer cancel()

	stampNew(device)
	if _, err := r.coll.InsertOne(ctx, device); err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

// GetByID retrieves a device by its unique ID.
func (r *MongoDeviceRepo) GetByID(ctx context.Context, id string) (*models.Device, error) {
	ctx, cancel := newContext(ctx, r.timeout)
	defer cancel()

	var device models.Device
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&device); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to fetch device with id %s: %w", id, err)
	}
	return &device, nil
}

// GetAll retrieves every device.
func (r *MongoDeviceRepo) GetAll(ctx context.Context) ([]models.Device, error) {
	return r.find(ctx, bson.M{})
}

// GetByBrand retrieves devices with an exactly matching brand.
func (r *MongoDeviceRepo) GetByBrand(ctx context.Context, brand string) ([]models.Device, error) {
	return r.find(ctx, bson.M{"brand": brand})
}

// GetByState retrieves devices in the given state.
func (r *MongoDeviceRepo) GetByState(ctx context.Context, state models.DeviceState) ([]models.Device, error) {
	return r.find(ctx, bson.M{"state": state})
}

func (r *MongoDeviceRepo) find(ctx context.Context, filter bson.M) ([]models.Device, error) {
	ctx, cancel := newContext(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "creationTime", Value: 1}, {Key: "id", Value: 1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve devices: %w", err)
	}
	defer cursor.Close(ctx)

	devices := []models.Device{}
	if err := cursor.All(ctx, &devices); err != nil {
		return nil, fmt.Errorf("failed to decode devices: %w", err)
	}
	return devices, nil
}

// Replace overwrites the device document with the same ID.
func (r *MongoDeviceRepo) Replace(ctx context.Context, device *models.Device) error {
	ctx, cancel := newContext(ctx, r.timeout)
	defer cancel()

	result, err := r.coll.ReplaceOne(ctx, bson.M{"id": device.ID}, device)
	if err != nil {
		return fmt.Errorf("failed to update device with id %s: %w", device.ID, err)
	}
	if result.MatchedCount == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Delete removes a device document by its ID.
func (r *MongoDeviceRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := newContext(ctx, r.timeout)
	defer cancel()

	result, err := r.coll.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete device with id %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// DeleteAll removes every device document.
func (r *MongoDeviceRepo) DeleteAll(ctx context.Context) error {
	ctx, cancel := newContext(ctx, r.timeout)
	defer cancel()

	if _, err := r.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to delete devices: %w", err)
	}
	return nil
}
