package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"deviceinventory/models"

	"github.com/hibiken/asynq"
)

// TypeDeviceLifecycle is the asynq task type carrying a LifecycleEvent.
const TypeDeviceLifecycle = "device:lifecycle"

// Lifecycle event kinds.
const (
	DeviceCreated  = "device.created"
	DeviceUpdated  = "device.updated"
	DeviceDeleted  = "device.deleted"
	DevicesFlushed = "devices.flushed"
)

// LifecycleEvent records a successful mutation of the inventory.
type LifecycleEvent struct {
	Type       string             `json:"type"`
	DeviceID   string             `json:"deviceId,omitempty"`
	Name       string             `json:"name,omitempty"`
	Brand      string             `json:"brand,omitempty"`
	State      models.DeviceState `json:"state,omitempty"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// NewDeviceEvent builds an event describing device after the mutation.
func NewDeviceEvent(kind string, device models.Device) LifecycleEvent {
	return LifecycleEvent{
		Type:       kind,
		DeviceID:   device.ID,
		Name:       device.Name,
		Brand:      device.Brand,
		State:      device.State,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher hands lifecycle events to whoever consumes them.
type Publisher interface {
	Publish(ctx context.Context, event LifecycleEvent) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, LifecycleEvent) error { return nil }

// NewLifecycleTask encodes event as an asynq task.
func NewLifecycleTask(event LifecycleEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lifecycle event: %w", err)
	}
	return asynq.NewTask(TypeDeviceLifecycle, payload, asynq.MaxRetry(3)), nil
}

// DecodeLifecycleTask is the inverse of NewLifecycleTask.
func DecodeLifecycleTask(task *asynq.Task) (LifecycleEvent, error) {
	var event LifecycleEvent
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		return LifecycleEvent{}, fmt.Errorf("invalid lifecycle payload: %w", err)
	}
	return event, nil
}

// AsynqPublisher enqueues events on a Redis-backed asynq queue.
type AsynqPublisher struct {
	client *asynq.Client
}

// NewAsynqPublisher connects a publisher to the given Redis database.
func NewAsynqPublisher(opt asynq.RedisClientOpt) *AsynqPublisher {
	return &AsynqPublisher{client: asynq.NewClient(opt)}
}

func (p *AsynqPublisher) Publish(ctx context.Context, event LifecycleEvent) error {
	task, err := NewLifecycleTask(event)
	if err != nil {
		return err
	}
	if _, err := p.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue %s event: %w", event.Type, err)
	}
	return nil
}

// Close releases the Redis connection.
func (p *AsynqPublisher) Close() error {
	return p.client.Close()
}
